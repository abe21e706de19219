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

type RedisSessionRepository struct {
	client *redis.Client
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) sessionKey(id domain.SessionID) string {
	return key("session", string(id))
}

func (r *RedisSessionRepository) teacherKey(teacherID domain.UserID) string {
	return key("teacher", string(teacherID), "sessions")
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}

	if err := r.client.SAdd(ctx, r.teacherKey(session.TeacherID), string(session.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add session to teacher set: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.LiveSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	exists, err := r.client.Exists(ctx, r.sessionKey(session.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session in Redis: %w", err)
	}
	if exists == 0 {
		return domain.ErrSessionNotFound
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) ListByTeacher(ctx context.Context, teacherID domain.UserID) ([]*domain.LiveSession, error) {
	ids, err := r.client.SMembers(ctx, r.teacherKey(teacherID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher sessions from Redis: %w", err)
	}

	var sessions []*domain.LiveSession
	for _, id := range ids {
		session, err := r.GetByID(ctx, domain.SessionID(id))
		if err != nil {
			// Skip sessions that no longer exist
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}
