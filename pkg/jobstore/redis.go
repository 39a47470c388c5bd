package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/certifyhq/certgen/pkg/observability"
)

const redisKeyPrefix = "certgen:job:"

// RedisConfig configures the Redis-backed job store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL applied to every stored job. Zero means DefaultTTL.
	TTL time.Duration
}

// RedisStore stores jobs in Redis with native key expiration.
// Use this backend when the server runs as multiple instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(jobID string) string {
	return redisKeyPrefix + jobID
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := s.client.Get(ctx, redisKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.Store().OnStoreGet(ctx, "jobs", false)
		return nil, nil
	}
	if err != nil {
		observability.Store().OnStoreError(ctx, "jobs", err)
		return nil, fmt.Errorf("get job: %w", err)
	}
	observability.Store().OnStoreGet(ctx, "jobs", true)

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if job.IsExpired() {
		s.client.Del(ctx, redisKey(jobID))
		return nil, nil
	}
	return &job, nil
}

func (s *RedisStore) Set(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(job.ID), data, s.ttl).Err(); err != nil {
		observability.Store().OnStoreError(ctx, "jobs", err)
		return fmt.Errorf("set job: %w", err)
	}
	observability.Store().OnStoreSet(ctx, "jobs")
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, redisKey(jobID)).Err(); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// Cleanup is a no-op: Redis expires keys via TTL.
func (s *RedisStore) Cleanup(ctx context.Context) error { return nil }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
