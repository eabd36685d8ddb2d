// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Thermoquad/dl24log/pkg/config"
)

// redisClient is the subset of *redis.Client used here
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// Redis publishes every payload on a channel and keeps the most recent
// payloads of the session in a capped list
type Redis struct {
	client    redisClient
	channel   string
	listLimit int64
}

// NewRedis connects and pings the server
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return newRedis(client, cfg.Channel, cfg.ListLimit), nil
}

func newRedis(client redisClient, channel string, listLimit int64) *Redis {
	return &Redis{client: client, channel: channel, listLimit: listLimit}
}

// ListKey returns the list holding the readings of a session
func ListKey(sessionID string) string {
	return fmt.Sprintf("dl24:%s:readings", sessionID)
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Publish(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}

	listKey := ListKey(key)
	if err := r.client.LPush(ctx, listKey, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", listKey, err)
	}
	if r.listLimit > 0 {
		if err := r.client.LTrim(ctx, listKey, 0, r.listLimit-1).Err(); err != nil {
			return fmt.Errorf("ltrim %s: %w", listKey, err)
		}
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
