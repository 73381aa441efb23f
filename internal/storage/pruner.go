package storage

import (
	"context"
	"log/slog"
	"time"
)

// SpeechPruner removes cached speech older than a retention window.
type SpeechPruner interface {
	PruneSpeech(cutoff time.Time) (int64, error)
}

// Pruner periodically trims the speech cache.
type Pruner struct {
	store     SpeechPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewPruner creates a Pruner. A non-positive interval defaults to one hour
// and a non-positive retention to seven days.
func NewPruner(store SpeechPruner, retention, interval time.Duration) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// Run prunes once immediately and then on every interval until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := p.RunOnce(); err != nil {
			p.logger.Error("speech cache prune failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// RunOnce removes entries older than the retention window and reports how
// many were removed.
func (p *Pruner) RunOnce() (int64, error) {
	n, err := p.store.PruneSpeech(p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Debug("pruned speech cache", "removed", n)
	}
	return n, nil
}
