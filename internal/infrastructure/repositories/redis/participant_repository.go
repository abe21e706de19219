package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisParticipantRepository struct {
	client *redis.Client
}

func NewRedisParticipantRepository(client *redis.Client) ports.ParticipantRepository {
	return &RedisParticipantRepository{client: client}
}

func (r *RedisParticipantRepository) participantsKey(sessionID domain.SessionID) string {
	return key("session", string(sessionID), "participants")
}

func (r *RedisParticipantRepository) Add(ctx context.Context, participant *domain.Participant) error {
	data, err := json.Marshal(participant)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}

	key := r.participantsKey(participant.SessionID)
	if err := r.client.HSet(ctx, key, string(participant.DeviceID), data).Err(); err != nil {
		return fmt.Errorf("failed to add participant in Redis: %w", err)
	}
	return nil
}

func (r *RedisParticipantRepository) Remove(ctx context.Context, sessionID domain.SessionID, deviceID domain.DeviceID) error {
	key := r.participantsKey(sessionID)
	if err := r.client.HDel(ctx, key, string(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to remove participant in Redis: %w", err)
	}
	return nil
}

func (r *RedisParticipantRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error) {
	entries, err := r.client.HGetAll(ctx, r.participantsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participants from Redis: %w", err)
	}

	participants := make([]*domain.Participant, 0, len(entries))
	for _, data := range entries {
		var participant domain.Participant
		if err := json.Unmarshal([]byte(data), &participant); err != nil {
			continue
		}
		participants = append(participants, &participant)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}
