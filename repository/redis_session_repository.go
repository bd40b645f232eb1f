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

const sessionKeyPrefix = "import:session:"

// RedisSessionRepository stores each session as one JSON value that expires
// ttl after its last save.
type RedisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionRepository(rdb *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisSessionRepository) Save(ctx context.Context, batch *models.ImportBatch) error {
	b, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(batch.ID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// SaveIfState watches the session key so a write from another replica
// between the read and the SET aborts the transaction.
func (r *RedisSessionRepository) SaveIfState(ctx context.Context, batch *models.ImportBatch, expected models.SubmissionState) error {
	b, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(batch.ID)

	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get session: %w", err)
		}
		var current struct {
			State models.SubmissionState `json:"state"`
		}
		if err := json.Unmarshal(val, &current); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if current.State != expected {
			return ErrStateConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStateConflict
	}
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrStateConflict) {
		return fmt.Errorf("redis set session: %w", err)
	}
	return err
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*models.ImportBatch, error) {
	val, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var batch models.ImportBatch
	if err := json.Unmarshal(val, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &batch, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
