// Package scheduler runs registered command handlers on cron expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/robfig/cron/v3"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

var (
	// ErrExpressionRequired reports a registration without a cron expression.
	ErrExpressionRequired = errors.New("scheduler: cron expression is required")
	// ErrInvalidExpression reports an expression the cron parser rejects.
	ErrInvalidExpression = errors.New("scheduler: invalid cron expression")
	// ErrUnsupportedHandler reports a handler value that cannot be scheduled.
	ErrUnsupportedHandler = errors.New("scheduler: unsupported handler")
)

// Entry describes one scheduled job.
type Entry struct {
	ID         cron.EntryID
	Expression string
	Next       time.Time
}

// Option configures the cron scheduler.
type Option func(*Cron)

// WithLogger sets the scheduler logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Cron) {
		c.logger = logging.Ensure(logger)
	}
}

// WithLocation sets the time zone expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(c *Cron) {
		if loc != nil {
			c.location = loc
		}
	}
}

// Cron registers handlers against cron expressions. Overlapping runs of the
// same entry are skipped and panics are recovered.
type Cron struct {
	mu       sync.Mutex
	runner   *cron.Cron
	logger   interfaces.Logger
	location *time.Location
	specs    map[cron.EntryID]string
	started  bool
}

// NewCron builds an idle scheduler. Call Start to begin running entries.
func NewCron(opts ...Option) *Cron {
	c := &Cron{
		logger:   logging.NoOp(),
		location: time.Local,
		specs:    map[cron.EntryID]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	adapter := cronLogger{logger: c.logger}
	c.runner = cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	return c
}

// Register schedules handler with the expression in cfg. Handler may be a
// func() error, a func(), a func(context.Context) error, or a value
// implementing CronHandler() func() error.
func (c *Cron) Register(cfg command.HandlerConfig, handler any) error {
	expression := strings.TrimSpace(cfg.Expression)
	if expression == "" {
		return ErrExpressionRequired
	}
	if _, err := cron.ParseStandard(expression); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidExpression, expression, err)
	}
	run, err := jobFunc(handler)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var id cron.EntryID
	id, err = c.runner.AddFunc(expression, c.wrap(expression, run))
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidExpression, expression, err)
	}
	c.specs[id] = expression
	c.logger.Info("scheduler.entry.registered", "expression", expression, "entry_id", int(id))
	return nil
}

// Start begins running registered entries. Calling it twice is a no-op.
func (c *Cron) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.runner.Start()
	c.logger.Info("scheduler.started", "entries", len(c.specs))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (c *Cron) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	done := c.runner.Stop()
	c.mu.Unlock()

	select {
	case <-done.Done():
		c.logger.Info("scheduler.stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries lists the registered jobs in registration order.
func (c *Cron) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.runner.Entries()
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Entry{ID: entry.ID, Expression: c.specs[entry.ID], Next: entry.Next})
	}
	return out
}

func (c *Cron) wrap(expression string, run func() error) func() {
	return func() {
		started := time.Now()
		if err := run(); err != nil {
			c.logger.Error("scheduler.job.failed",
				"expression", expression,
				"duration_ms", time.Since(started).Milliseconds(),
				"error", err,
			)
			return
		}
		c.logger.Debug("scheduler.job.completed",
			"expression", expression,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}

func jobFunc(handler any) (func() error, error) {
	switch h := handler.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedHandler)
	case func() error:
		return h, nil
	case func():
		return func() error { h(); return nil }, nil
	case func(context.Context) error:
		return func() error { return h(context.Background()) }, nil
	case interface{ CronHandler() func() error }:
		return h.CronHandler(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedHandler, handler)
	}
}

// cronLogger adapts interfaces.Logger to cron.Logger.
type cronLogger struct {
	logger interfaces.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("scheduler.cron."+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("scheduler.cron."+msg, append(keysAndValues, "error", err)...)
}
