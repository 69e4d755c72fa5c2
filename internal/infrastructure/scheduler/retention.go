// Package scheduler runs periodic background maintenance.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidConfig is returned when configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// Sweeper removes expired data. It returns how many print jobs and PDF files
// were deleted.
type Sweeper interface {
	Sweep(ctx context.Context) (jobs int64, files int, err error)
}

// SweeperFunc adapts a function to Sweeper
type SweeperFunc func(ctx context.Context) (int64, int, error)

// Sweep calls f
func (f SweeperFunc) Sweep(ctx context.Context) (int64, int, error) {
	return f(ctx)
}

// RetentionConfig holds configuration for the retention trigger
type RetentionConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// RunOnStart sweeps once immediately after Start
	RunOnStart bool
	// Timeout bounds a single sweep
	Timeout time.Duration
}

// DefaultRetentionConfig returns default retention trigger configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Interval:   time.Hour,
		RunOnStart: true,
		Timeout:    5 * time.Minute,
	}
}

// RetentionTrigger periodically deletes print jobs and PDFs past retention
type RetentionTrigger struct {
	config  RetentionConfig
	sweeper Sweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
	runs      int
}

// NewRetentionTrigger creates a new retention trigger
func NewRetentionTrigger(config RetentionConfig, sweeper Sweeper, logger *zap.Logger) (*RetentionTrigger, error) {
	if sweeper == nil || config.Interval <= 0 {
		return nil, ErrInvalidConfig
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionTrigger{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}, nil
}

// Start starts the retention loop. Calling Start twice is a no-op.
func (t *RetentionTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	t.isRunning = true
	t.cancel = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go t.runLoop(ctx)

	t.logger.Info("Retention trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)
	return nil
}

// Stop stops the loop and waits for a running sweep, bounded by ctx
func (t *RetentionTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Retention trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (t *RetentionTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// Runs returns how many sweeps have finished and when the last one started
func (t *RetentionTrigger) Runs() (int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs, t.lastRun
}

func (t *RetentionTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.RunOnce(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep. Errors are logged, never returned, so a failed
// sweep does not stop the loop.
func (t *RetentionTrigger) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	sweepCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	jobs, files, err := t.sweeper.Sweep(sweepCtx)

	t.mu.Lock()
	t.runs++
	t.lastRun = start
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("Retention sweep failed",
			zap.Int64("jobs_deleted", jobs),
			zap.Int("files_deleted", files),
			zap.Error(err),
		)
		return
	}
	t.logger.Info("Retention sweep finished",
		zap.Int64("jobs_deleted", jobs),
		zap.Int("files_deleted", files),
		zap.Duration("duration", time.Since(start)),
	)
}
