package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// All coordinator state lives under one namespace so a shared instance can
// be inspected or swept by prefix without touching other keyspaces.
const keyNamespace = "classhub"

// key joins parts into a namespaced key: key("session", id, "participants")
// yields "classhub:session:<id>:participants". Every repository in this
// package builds its keys through it.
func key(parts ...string) string {
	return keyNamespace + ":" + strings.Join(parts, ":")
}

const connectTimeout = 5 * time.Second

// NewRedisClient opens a pooled client and verifies the instance is
// reachable before any repository is handed out. The factory treats a
// failure here as its cue to fall back to the in-memory store.
func NewRedisClient(address, password string, db, poolSize int, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: 5,
		DialTimeout:  connectTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable at %s: %w", address, err)
	}

	if logger != nil {
		logger.Infow("connected to redis",
			"address", address,
			"db", db,
			"namespace", keyNamespace,
		)
	}

	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
