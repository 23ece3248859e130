package session

import (
	"context"
	"time"
)

// Sweepable is the part of the Orchestrator the Sweeper drives.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time)
}

// Sweeper periodically expires idle or abandoned sessions.
type Sweeper struct {
	interval time.Duration
	target   Sweepable
	now      func() time.Time
}

func NewSweeper(interval time.Duration, target Sweepable) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sweeper{interval: interval, target: target, now: time.Now}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.target.Sweep(ctx, s.now())
		}
	}
}
