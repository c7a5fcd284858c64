package editor

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Janitor periodically releases editor instances the browser abandoned
// without saying goodbye.
type Janitor struct {
	manager  *Manager
	idleTTL  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

type JanitorOption func(*Janitor)

// WithSweepInterval overrides the sweep interval when greater than zero.
func WithSweepInterval(interval time.Duration) JanitorOption {
	return func(j *Janitor) {
		if interval > 0 {
			j.interval = interval
		}
	}
}

func WithJanitorLogger(logger *slog.Logger) JanitorOption {
	return func(j *Janitor) {
		if logger != nil {
			j.logger = logger
		}
	}
}

func NewJanitor(manager *Manager, idleTTL time.Duration, opts ...JanitorOption) (*Janitor, error) {
	if manager == nil {
		return nil, errors.New("manager is required")
	}
	if idleTTL <= 0 {
		return nil, errors.New("idle TTL must be positive")
	}
	j := &Janitor{
		manager:  manager,
		idleTTL:  idleTTL,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	return j, nil
}

// Start sweeps periodically until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep and returns the number of released instances.
func (j *Janitor) RunOnce(ctx context.Context) int {
	removed := j.manager.SweepIdle(j.manager.Now().Add(-j.idleTTL))
	if removed > 0 {
		j.logger.InfoContext(ctx, "released idle editors", "count", removed, "remaining", j.manager.Len())
	}
	return removed
}
