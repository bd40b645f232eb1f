package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

const (
	jobQueueKey    = "bulk_import:queue"
	jobKeyFormat   = "bulk_import:job:%s"
	jobTTL         = 24 * time.Hour
	jobPollTimeout = 5 * time.Second
)

// RedisJobStore keeps async import job metadata in Redis and queues job ids
// on a list consumed by the import worker.
type RedisJobStore struct {
	rdb         *redis.Client
	pollTimeout time.Duration
}

func NewRedisJobStore(rdb *redis.Client) *RedisJobStore {
	return &RedisJobStore{rdb: rdb, pollTimeout: jobPollTimeout}
}

func jobKey(id string) string {
	return fmt.Sprintf(jobKeyFormat, id)
}

// Create stores the job and queues it.
func (s *RedisJobStore) Create(ctx context.Context, job models.ImportJob) error {
	if err := s.Save(ctx, job); err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, jobQueueKey, job.ID).Err(); err != nil {
		s.rdb.Del(ctx, jobKey(job.ID))
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	val, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job metadata: %w", err)
	}
	var job models.ImportJob
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job metadata: %w", err)
	}
	return &job, nil
}

func (s *RedisJobStore) Save(ctx context.Context, job models.ImportJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job info: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), b, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job metadata: %w", err)
	}
	return nil
}

// Next waits up to the poll timeout for a queued id. It returns "" when
// nothing arrived so the worker can check for shutdown.
func (s *RedisJobStore) Next(ctx context.Context) (string, error) {
	res, err := s.rdb.BLPop(ctx, s.pollTimeout, jobQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("redis BLPop failed: %w", err)
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}
