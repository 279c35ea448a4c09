package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	applogger "CryptoFactors/pkg/logger"
)

// RedisDateQueue implements DateQueue on Redis. Layout under the key prefix:
//
//	{prefix}:pending     LIST  dates awaiting processing, earliest first
//	{prefix}:in_progress LIST  dates currently being processed
//	{prefix}:queued      SET   dedupe membership for both lists
//	{prefix}:stages      HASH  date -> last completed stage
//
// Dequeue uses LMOVE so a crash mid-pass leaves the date parked in
// in_progress instead of lost; Release moves it back to the front of
// pending with its recorded stage intact.
type RedisDateQueue struct {
	client *redis.Client
	prefix string
	l      *applogger.Logger
}

// NewRedisDateQueue creates a Redis-backed date queue.
func NewRedisDateQueue(client *redis.Client, prefix string, l *applogger.Logger) *RedisDateQueue {
	if prefix == "" {
		prefix = "cryptofactors:dates"
	}
	return &RedisDateQueue{client: client, prefix: prefix, l: l}
}

var _ domrepo.DateQueue = (*RedisDateQueue)(nil)

func (q *RedisDateQueue) pendingKey() string    { return q.prefix + ":pending" }
func (q *RedisDateQueue) inProgressKey() string { return q.prefix + ":in_progress" }
func (q *RedisDateQueue) queuedKey() string     { return q.prefix + ":queued" }
func (q *RedisDateQueue) stagesKey() string     { return q.prefix + ":stages" }

func (q *RedisDateQueue) Enqueue(ctx context.Context, dates ...models.Date) error {
	for _, d := range dates {
		added, err := q.client.SAdd(ctx, q.queuedKey(), d.String()).Result()
		if err != nil {
			return fmt.Errorf("enqueue sadd: %w", err)
		}
		if added == 0 {
			continue // already queued or in progress
		}
		pipe := q.client.TxPipeline()
		pipe.RPush(ctx, q.pendingKey(), d.String())
		pipe.HSetNX(ctx, q.stagesKey(), d.String(), string(models.StagePending))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("enqueue push: %w", err)
		}
		q.l.Debug("date enqueued", applogger.String("date", d.String()))
	}
	return nil
}

func (q *RedisDateQueue) Dequeue(ctx context.Context) (models.Date, models.Stage, error) {
	raw, err := q.client.LMove(ctx, q.pendingKey(), q.inProgressKey(), "LEFT", "RIGHT").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", models.ErrQueueEmpty
		}
		return "", "", fmt.Errorf("dequeue lmove: %w", err)
	}

	date, err := models.ParseDate(raw)
	if err != nil {
		// drop the malformed entry rather than wedging the queue
		q.l.Warn("dropping malformed queue entry", applogger.String("raw", raw))
		q.client.LRem(ctx, q.inProgressKey(), 1, raw)
		q.client.SRem(ctx, q.queuedKey(), raw)
		return q.Dequeue(ctx)
	}

	stage := models.StagePending
	if s, err := q.client.HGet(ctx, q.stagesKey(), raw).Result(); err == nil && s != "" {
		stage = models.Stage(s)
	}
	return date, stage, nil
}

func (q *RedisDateQueue) SaveStage(ctx context.Context, date models.Date, stage models.Stage) error {
	if err := q.client.HSet(ctx, q.stagesKey(), date.String(), string(stage)).Err(); err != nil {
		return fmt.Errorf("save stage: %w", err)
	}
	return nil
}

func (q *RedisDateQueue) Complete(ctx context.Context, date models.Date) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.inProgressKey(), 1, date.String())
	pipe.SRem(ctx, q.queuedKey(), date.String())
	pipe.HDel(ctx, q.stagesKey(), date.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

func (q *RedisDateQueue) Release(ctx context.Context, date models.Date) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.inProgressKey(), 1, date.String())
	pipe.LPush(ctx, q.pendingKey(), date.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

func (q *RedisDateQueue) Pending(ctx context.Context) ([]models.Date, error) {
	raws, err := q.client.LRange(ctx, q.pendingKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}
	out := make([]models.Date, 0, len(raws))
	for _, raw := range raws {
		d, err := models.ParseDate(raw)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (q *RedisDateQueue) Close() error {
	return nil // client shared with the cache, closed by its owner
}
