package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"printsync/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPrefix namespaces the task queue keys
const DefaultPrefix = "printsync:tasks"

// ErrEmpty is returned by Dequeue when no task is due
var ErrEmpty = errors.New("no task due")

// Options for a single enqueue call
type Options struct {
	Delay time.Duration
	// Unique drops the task when an identical one is already queued or running
	Unique bool
}

// Envelope is a dequeued task plus the bookkeeping needed to acknowledge it
type Envelope struct {
	Task      domain.Task `json:"task"`
	UniqueKey string      `json:"unique_key,omitempty"`
	ID        string      `json:"id"`
}

// TaskQueue schedules deferred import/sync tasks
type TaskQueue interface {
	Enqueue(ctx context.Context, task domain.Task, opts Options) (bool, error)
	Dequeue(ctx context.Context) (*Envelope, error)
	Ack(ctx context.Context, env *Envelope) error
}

// RedisQueue stores tasks in a sorted set scored by their run-at time.
// Unique tasks hold a SET NX key until acknowledged or the TTL expires.
type RedisQueue struct {
	client    *redis.Client
	key       string
	uniqueTTL time.Duration
	logger    *zap.Logger
}

// NewRedisQueue creates a queue stored under the given key prefix
func NewRedisQueue(client *redis.Client, prefix string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:    client,
		key:       prefix + ":scheduled",
		uniqueTTL: time.Hour,
		logger:    logger,
	}
}

// Enqueue schedules task; it returns false when a unique duplicate was dropped
func (q *RedisQueue) Enqueue(ctx context.Context, task domain.Task, opts Options) (bool, error) {
	env := Envelope{
		Task: task,
		ID:   uuid.NewString(),
	}

	if opts.Unique {
		env.UniqueKey = q.uniqueKey(task)
		acquired, err := q.client.SetNX(ctx, env.UniqueKey, env.ID, q.uniqueTTL+opts.Delay).Result()
		if err != nil {
			return false, fmt.Errorf("failed to reserve unique task: %w", err)
		}
		if !acquired {
			q.logger.Debug("Duplicate task dropped",
				zap.String("task", task.Name),
				zap.String("external_id", task.ExternalID),
			)
			return false, nil
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("failed to encode task: %w", err)
	}

	runAt := time.Now().Add(opts.Delay)
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(runAt.UnixMilli()), Member: payload}).Err(); err != nil {
		if env.UniqueKey != "" {
			q.client.Del(ctx, env.UniqueKey)
		}
		return false, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return true, nil
}

// Dequeue claims the oldest due task, or returns ErrEmpty
func (q *RedisQueue) Dequeue(ctx context.Context) (*Envelope, error) {
	for {
		members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
			Count: 1,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read due tasks: %w", err)
		}
		if len(members) == 0 {
			return nil, ErrEmpty
		}

		// ZREM decides the winner when several workers race for the same member
		removed, err := q.client.ZRem(ctx, q.key, members[0]).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim task: %w", err)
		}
		if removed == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal([]byte(members[0]), &env); err != nil {
			q.logger.Error("Dropping undecodable task", zap.Error(err))
			continue
		}
		return &env, nil
	}
}

// Ack releases the unique reservation of a finished task
func (q *RedisQueue) Ack(ctx context.Context, env *Envelope) error {
	if env.UniqueKey == "" {
		return nil
	}
	if err := q.client.Del(ctx, env.UniqueKey).Err(); err != nil {
		return fmt.Errorf("failed to release unique task: %w", err)
	}
	return nil
}

// Len returns the number of scheduled tasks, due or not
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

func (q *RedisQueue) uniqueKey(task domain.Task) string {
	key := q.key + ":unique:" + task.Name + ":" + task.ExternalID
	if task.LocalID != nil {
		key += ":" + task.LocalID.String()
	}
	return key
}
