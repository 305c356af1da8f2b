package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type options struct {
	Logger   *zap.Logger
	Cron     *cron.Cron
	Clock    func() time.Time
	Interval time.Duration
	Timeout  time.Duration
}

// Option applies configuration to the scheduler service.
type Option func(*options)

func defaultOptions() options {
	return options{
		Clock:    func() time.Time { return time.Now().UTC() },
		Interval: 5 * time.Minute,
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) {
		o.Cron = c
	}
}

// WithClock replaces the time source handed to each tick.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.Clock = clock
	}
}

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.Interval = d
	}
}

// WithTimeout bounds a single sweep. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.Timeout = d
	}
}
