package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisScreenShareRepository struct {
	client *redis.Client
}

func NewRedisScreenShareRepository(client *redis.Client) ports.ScreenShareRepository {
	return &RedisScreenShareRepository{client: client}
}

func (r *RedisScreenShareRepository) shareKey(id domain.ShareID) string {
	return key("share", string(id))
}

func (r *RedisScreenShareRepository) activeKey(sessionID domain.SessionID) string {
	return key("session", string(sessionID), "shares")
}

func (r *RedisScreenShareRepository) Create(ctx context.Context, share *domain.ScreenShare) error {
	data, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("failed to marshal screen share: %w", err)
	}

	if err := r.client.Set(ctx, r.shareKey(share.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set screen share in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.activeKey(share.SessionID), string(share.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add screen share to active set: %w", err)
	}
	return nil
}

func (r *RedisScreenShareRepository) GetByID(ctx context.Context, id domain.ShareID) (*domain.ScreenShare, error) {
	data, err := r.client.Get(ctx, r.shareKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screen share from Redis: %w", err)
	}

	var share domain.ScreenShare
	if err := json.Unmarshal([]byte(data), &share); err != nil {
		return nil, fmt.Errorf("failed to unmarshal screen share: %w", err)
	}
	return &share, nil
}

func (r *RedisScreenShareRepository) End(ctx context.Context, id domain.ShareID, endedAt time.Time) error {
	share, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	share.Active = false
	share.EndedAt = &endedAt

	data, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("failed to marshal screen share: %w", err)
	}
	if err := r.client.Set(ctx, r.shareKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update screen share in Redis: %w", err)
	}
	if err := r.client.SRem(ctx, r.activeKey(share.SessionID), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove screen share from active set: %w", err)
	}
	return nil
}

func (r *RedisScreenShareRepository) ListActiveBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.ScreenShare, error) {
	ids, err := r.client.SMembers(ctx, r.activeKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active screen shares from Redis: %w", err)
	}

	var shares []*domain.ScreenShare
	for _, id := range ids {
		share, err := r.GetByID(ctx, domain.ShareID(id))
		if err != nil {
			continue
		}
		if share.Active {
			shares = append(shares, share)
		}
	}
	return shares, nil
}
