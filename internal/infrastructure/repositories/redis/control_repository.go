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

type RedisControlActionRepository struct {
	client *redis.Client
}

func NewRedisControlActionRepository(client *redis.Client) ports.ControlActionRepository {
	return &RedisControlActionRepository{client: client}
}

func (r *RedisControlActionRepository) actionKey(id domain.ActionID) string {
	return key("action", string(id))
}

func (r *RedisControlActionRepository) pendingKey(deviceID domain.DeviceID) string {
	return key("device", string(deviceID), "pending")
}

func (r *RedisControlActionRepository) Create(ctx context.Context, action *domain.ControlAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal control action: %w", err)
	}

	if err := r.client.Set(ctx, r.actionKey(action.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set control action in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.pendingKey(action.TargetDeviceID), string(action.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add action to pending set: %w", err)
	}
	return nil
}

func (r *RedisControlActionRepository) GetByID(ctx context.Context, id domain.ActionID) (*domain.ControlAction, error) {
	data, err := r.client.Get(ctx, r.actionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get control action from Redis: %w", err)
	}

	var action domain.ControlAction
	if err := json.Unmarshal([]byte(data), &action); err != nil {
		return nil, fmt.Errorf("failed to unmarshal control action: %w", err)
	}
	return &action, nil
}

func (r *RedisControlActionRepository) UpdateStatus(ctx context.Context, id domain.ActionID, status domain.ActionStatus, response json.RawMessage) error {
	action, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	action.Status = status
	action.Response = response

	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal control action: %w", err)
	}
	if err := r.client.Set(ctx, r.actionKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update control action in Redis: %w", err)
	}

	if status != domain.ActionPending {
		if err := r.client.SRem(ctx, r.pendingKey(action.TargetDeviceID), string(id)).Err(); err != nil {
			return fmt.Errorf("failed to remove action from pending set: %w", err)
		}
	}
	return nil
}

func (r *RedisControlActionRepository) ListPending(ctx context.Context, deviceID domain.DeviceID) ([]*domain.ControlAction, error) {
	ids, err := r.client.SMembers(ctx, r.pendingKey(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending actions from Redis: %w", err)
	}

	var pending []*domain.ControlAction
	for _, id := range ids {
		action, err := r.GetByID(ctx, domain.ActionID(id))
		if err != nil {
			continue
		}
		if action.Status == domain.ActionPending {
			pending = append(pending, action)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}
