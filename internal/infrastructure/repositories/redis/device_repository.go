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

type RedisDeviceRepository struct {
	client *redis.Client
}

func NewRedisDeviceRepository(client *redis.Client) ports.DeviceRepository {
	return &RedisDeviceRepository{client: client}
}

func (r *RedisDeviceRepository) deviceKey(id domain.DeviceID) string {
	return key("device", string(id))
}

func (r *RedisDeviceRepository) Register(ctx context.Context, record *domain.DeviceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal device record: %w", err)
	}

	if err := r.client.Set(ctx, r.deviceKey(record.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set device in Redis: %w", err)
	}
	return nil
}

func (r *RedisDeviceRepository) GetByID(ctx context.Context, id domain.DeviceID) (*domain.DeviceRecord, error) {
	data, err := r.client.Get(ctx, r.deviceKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device from Redis: %w", err)
	}

	var record domain.DeviceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device record: %w", err)
	}
	return &record, nil
}

func (r *RedisDeviceRepository) UpdateHeartbeat(ctx context.Context, id domain.DeviceID, at time.Time) error {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	record.LastHeartbeat = at
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal device record: %w", err)
	}
	if err := r.client.Set(ctx, r.deviceKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update device heartbeat in Redis: %w", err)
	}
	return nil
}
