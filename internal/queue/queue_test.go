package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"printsync/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisQueue(client, "test_tasks", zap.NewNop()), mr
}

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	localID := uuid.New()
	task := domain.Task{Name: domain.TaskSync, ExternalID: "abc", LocalID: &localID}

	ok, err := q.Enqueue(ctx, task, Options{Unique: true})
	if err != nil || !ok {
		t.Fatalf("Enqueue failed: %v (%v)", ok, err)
	}

	env, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if env.Task.Name != domain.TaskSync || env.Task.ExternalID != "abc" || *env.Task.LocalID != localID {
		t.Errorf("unexpected task %+v", env.Task)
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}

	// still reserved until acknowledged
	ok, _ = q.Enqueue(ctx, task, Options{Unique: true})
	if ok {
		t.Error("expected duplicate to be dropped while the first task is running")
	}

	if err := q.Ack(ctx, env); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	ok, _ = q.Enqueue(ctx, task, Options{Unique: true})
	if !ok {
		t.Error("expected task to be accepted after ack")
	}
}

func TestDelayedTaskIsNotDueYet(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if _, err := q.Enqueue(ctx, domain.Task{Name: domain.TaskImport, ExternalID: "later"}, Options{Delay: time.Hour}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected delayed task not to be due, got %v", err)
	}

	n, err := q.Len(ctx)
	if err != nil || n != 1 {
		t.Errorf("expected 1 scheduled task, got %d (%v)", n, err)
	}
}

// Property: unique enqueues of the same task collapse to one scheduled entry
func TestProperty_UniqueTasksAreDeduplicated(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("n unique enqueues of one task schedule it once", prop.ForAll(
		func(externalID string, attempts int) bool {
			ctx := context.Background()
			q, _ := newTestQueue(t)

			accepted := 0
			for i := 0; i < attempts; i++ {
				ok, err := q.Enqueue(ctx, domain.Task{Name: domain.TaskImport, ExternalID: externalID}, Options{Unique: true})
				if err != nil {
					return false
				}
				if ok {
					accepted++
				}
			}

			n, err := q.Len(ctx)
			return err == nil && accepted == 1 && n == 1
		},
		gen.RegexMatch(`[a-f0-9]{24}`),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
