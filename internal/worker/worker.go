package worker

import (
	"context"
	"errors"
	"time"

	"printsync/internal/queue"
	"printsync/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductLister enumerates every product id of the shop
type ProductLister interface {
	ListProductIDs(ctx context.Context) ([]string, error)
}

// Config controls the worker pool
type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// Interval of the scheduled full sync; zero disables it
	Interval time.Duration
}

// Worker consumes queued import/sync tasks and runs the scheduled sync
type Worker struct {
	queue      queue.TaskQueue
	syncer     service.ProductSyncService
	dispatcher service.Dispatcher
	lister     ProductLister
	cfg        Config
	logger     *zap.Logger
}

// New creates a Worker
func New(
	taskQueue queue.TaskQueue,
	syncer service.ProductSyncService,
	dispatcher service.Dispatcher,
	lister ProductLister,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		queue:      taskQueue,
		syncer:     syncer,
		dispatcher: dispatcher,
		lister:     lister,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled or a consumer fails hard
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.cfg.Concurrency; i++ {
		id := i
		g.Go(func() error {
			return w.consume(ctx, id)
		})
	}

	if w.cfg.Interval > 0 && w.lister != nil {
		g.Go(func() error {
			return w.schedule(ctx)
		})
	}

	w.logger.Info("Worker started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Duration("interval", w.cfg.Interval),
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) consume(ctx context.Context, id int) error {
	logger := w.logger.With(zap.Int("consumer", id))
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// drain everything that is due before sleeping
		for {
			processed, err := w.ProcessNext(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("Failed to poll task queue", zap.Error(err))
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessNext runs one due task; it reports false when nothing was due
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	env, err := w.queue.Dequeue(ctx)
	if errors.Is(err, queue.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	logger := w.logger.With(
		zap.String("task", env.Task.Name),
		zap.String("external_id", env.Task.ExternalID),
	)

	// the sync result is audited by the service; the task is done either way
	if _, err := w.syncer.SyncProduct(ctx, env.Task.ExternalID); err != nil {
		logger.Warn("Task finished with error", zap.Error(err))
	} else {
		logger.Debug("Task finished")
	}

	// release the unique key even when the run was cancelled
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.Ack(ackCtx, env); err != nil {
		logger.Error("Failed to acknowledge task", zap.Error(err))
	}

	return true, nil
}

func (w *Worker) schedule(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.DispatchAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Scheduled sync failed", zap.Error(err))
			}
		}
	}
}

// DispatchAll schedules a sync or import for every product in the shop
func (w *Worker) DispatchAll(ctx context.Context) (int, error) {
	ids, err := w.lister.ListProductIDs(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range ids {
		task, err := w.dispatcher.Dispatch(ctx, service.EventScheduled, id)
		if err != nil {
			w.logger.Warn("Failed to dispatch scheduled sync", zap.String("external_id", id), zap.Error(err))
			continue
		}
		if task != nil {
			queued++
		}
	}

	w.logger.Info("Scheduled sync dispatched",
		zap.Int("products", len(ids)),
		zap.Int("queued", queued),
	)
	return queued, nil
}
