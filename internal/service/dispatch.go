package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"printsync/internal/domain"
	"printsync/internal/metrics"
	"printsync/internal/printify"
	"printsync/internal/queue"
	"printsync/internal/repository"

	"go.uber.org/zap"
)

// Internal trigger names accepted alongside Printify product events
const (
	EventScheduled = "scheduled"
	EventManual    = "manual"
)

// ErrEventIgnored is returned for events that never produce a task
var ErrEventIgnored = errors.New("event ignored")

// Dispatcher turns webhook and scheduler triggers into queued import/sync tasks
type Dispatcher interface {
	// Dispatch returns the task it scheduled; a nil task with a nil error means an
	// identical task was already pending.
	Dispatch(ctx context.Context, event, externalID string) (*domain.Task, error)
}

type dispatcher struct {
	productRepo repository.ProductRepository
	queue       queue.TaskQueue
	delay       time.Duration
	logger      *zap.Logger
}

// NewDispatcher creates a new instance of Dispatcher
func NewDispatcher(productRepo repository.ProductRepository, taskQueue queue.TaskQueue, delay time.Duration, logger *zap.Logger) Dispatcher {
	return &dispatcher{
		productRepo: productRepo,
		queue:       taskQueue,
		delay:       delay,
		logger:      logger,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, event, externalID string) (*domain.Task, error) {
	if !dispatchable(event) {
		d.logger.Debug("Ignoring event", zap.String("event", event))
		return nil, fmt.Errorf("%w: %s", ErrEventIgnored, event)
	}

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: missing product id", domain.ErrValidation)
	}

	task := domain.Task{Name: domain.TaskImport, ExternalID: externalID}

	product, err := d.productRepo.FindByExternalID(ctx, externalID)
	switch {
	case err == nil:
		localID := product.ID
		task.Name = domain.TaskSync
		task.LocalID = &localID
	case !errors.Is(err, repository.ErrProductNotFound):
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}

	queued, err := d.queue.Enqueue(ctx, task, queue.Options{Delay: d.delay, Unique: true})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s task: %w", task.Name, err)
	}
	if !queued {
		return nil, nil
	}

	metrics.RecordTask(task.Name)
	d.logger.Info("Task enqueued",
		zap.String("event", event),
		zap.String("task", task.Name),
		zap.String("external_id", externalID),
	)
	return &task, nil
}

func dispatchable(event string) bool {
	switch event {
	case EventScheduled, EventManual:
		return true
	case printify.EventProductDeleted:
		return false
	}
	return printify.IsProductEvent(event)
}
