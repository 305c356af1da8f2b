package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// Ticker runs one sweep at a given instant.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (SweepReport, error)
}

// Service drives sweeps at a fixed interval.
type Service struct {
	ticker   Ticker
	cron     *cron.Cron
	clock    func() time.Time
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	rootCtx   context.Context
	entry     cron.EntryID
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewService wraps ticker in a cron driver.
func NewService(ticker Ticker, opts ...Option) *Service {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	cronEngine := options.Cron
	if cronEngine == nil {
		cronEngine = cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(
				cron.Recover(cronLogger{logger}),
				cron.SkipIfStillRunning(cronLogger{logger}),
			),
		)
	}
	return &Service{
		ticker:   ticker,
		cron:     cronEngine,
		clock:    clock,
		interval: options.Interval,
		timeout:  options.Timeout,
		logger:   logger,
		rootCtx:  context.Background(),
	}
}

// Run schedules sweeps and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	var startErr error
	s.startOnce.Do(func() {
		if s.interval <= 0 {
			startErr = fmt.Errorf("invalid sweep interval %s", s.interval)
			return
		}
		s.rootCtx = ctx
		s.entry, startErr = s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.RunOnce)
		if startErr != nil {
			return
		}
		s.cron.Start()
		s.logger.Info("sla scheduler started", zap.Duration("interval", s.interval))
	})
	if startErr != nil {
		return startErr
	}

	<-ctx.Done()
	s.Stop()
	return nil
}

// RunOnce performs one sweep at the injected clock's current time.
func (s *Service) RunOnce() {
	ctx := s.rootCtx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	_, err := s.ticker.Tick(ctx, s.clock())
	switch {
	case errors.Is(err, apperrors.ErrSweepInProgress):
		s.logger.Info("sla sweep skipped; previous sweep still running")
	case err != nil:
		s.logger.Error("sla sweep failed", zap.Error(err))
	}
}

// Stop halts scheduling and waits for a running sweep to return.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.logger.Info("sla scheduler stopped")
	})
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
