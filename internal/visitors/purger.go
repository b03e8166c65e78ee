package visitors

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type PurgerConfig struct {
	Store     Store
	Retention time.Duration
	Interval  time.Duration
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Purger periodically deletes events older than the retention window.
type Purger struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

func NewPurger(cfg PurgerConfig) *Purger {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Purger{
		store:     cfg.Store,
		retention: cfg.Retention,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}
}

// Start blocks until ctx is cancelled. A non-positive retention disables purging.
func (p *Purger) Start(ctx context.Context) {
	if p.store == nil || p.retention <= 0 {
		return
	}
	logger := p.logger.With(zap.Duration("retention", p.retention))
	logger.Info("visitor purger started")

	p.PurgeOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("visitor purger stopped")
			return
		case <-ticker.C:
			p.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce removes expired events and returns how many were deleted.
func (p *Purger) PurgeOnce(ctx context.Context) int64 {
	cutoff := p.clock().UTC().Add(-p.retention)
	removed, err := p.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("visitor purge failed", zap.Time("cutoff", cutoff), zap.Error(err))
		}
		return 0
	}
	if removed > 0 {
		p.logger.Info("purged visitor events", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed
}
