package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// Job is one unit of notification delivery.
type Job struct {
	Name string
	Run  func(context.Context) error
}

// NotificationWorker delivers jobs on a bounded queue so publishers never block on
// slow recipients.
type NotificationWorker struct {
	queue   chan Job
	workers int
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker creates a worker pool with the given concurrency and queue size.
func NewNotificationWorker(workers, queueSize int, logger *zap.Logger) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		queue:   make(chan Job, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the delivery goroutines. They exit once Stop drains the queue.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("queue_size", cap(w.queue)))
}

// Submit enqueues job without blocking. A full or stopped queue yields ErrNotificationFailure.
func (w *NotificationWorker) Submit(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return fmt.Errorf("%w: worker stopped", apperrors.ErrNotificationFailure)
	}
	select {
	case w.queue <- job:
		return nil
	default:
		return fmt.Errorf("%w: queue full, dropping %s", apperrors.ErrNotificationFailure, job.Name)
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("notification worker stopped")
}

func (w *NotificationWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	for job := range w.queue {
		w.run(ctx, job)
	}
}

func (w *NotificationWorker) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("notification job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		w.logger.Warn("notification delivery failed", zap.String("job", job.Name), zap.Error(err))
	}
}
