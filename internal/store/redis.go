package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// NewRedisClient connects to the redis server at addr
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisCheckpoint keeps the checkpoint as a JSON string under one key
type RedisCheckpoint struct {
	client *redis.Client
	key    string
}

// NewRedisCheckpoint stores the checkpoint for slot under "<prefix>:checkpoint:<slot>"
func NewRedisCheckpoint(client *redis.Client, prefix, slot string) *RedisCheckpoint {
	return &RedisCheckpoint{client: client, key: prefix + ":checkpoint:" + slot}
}

func (r *RedisCheckpoint) Write(ctx context.Context, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, r.key, string(data), 0).Err(); err != nil {
		return fmt.Errorf("redis set failure: %w", err)
	}
	return nil
}

func (r *RedisCheckpoint) Read(ctx context.Context) ([]types.Record, error) {
	data, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return []types.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failure: %w", err)
	}
	return decodeRecords([]byte(data))
}

func (r *RedisCheckpoint) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del failure: %w", err)
	}
	return nil
}

// RedisSignal is a stop flag shared by every process talking to the same server
type RedisSignal struct {
	client *redis.Client
	key    string
}

// NewRedisSignal stores the flag under "<prefix>:stop"
func NewRedisSignal(client *redis.Client, prefix string) *RedisSignal {
	return &RedisSignal{client: client, key: prefix + ":stop"}
}

func (s *RedisSignal) RequestStop(ctx context.Context) error {
	if err := s.client.Set(ctx, s.key, "1", 0).Err(); err != nil {
		return fmt.Errorf("redis set failure: %w", err)
	}
	return nil
}

// ConsumeStop reads and deletes the flag in one GETDEL
func (s *RedisSignal) ConsumeStop(ctx context.Context) (bool, error) {
	_, err := s.client.GetDel(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis getdel failure: %w", err)
	}
	return true, nil
}
