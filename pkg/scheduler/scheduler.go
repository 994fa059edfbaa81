// Package scheduler runs periodic background jobs for the match service.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/matchcare/platform/pkg/common/logger"
)

// Sweeper expires offers whose deadline has passed.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Runner drives a Sweeper on a fixed interval until Stop is called.
type Runner struct {
	sweeper  Sweeper
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(sweeper Sweeper, interval time.Duration) *Runner {
	return &Runner{sweeper: sweeper, interval: interval}
}

// Start launches the sweep loop. Calling Start on a running Runner is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx, r.done)
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	expired, err := r.sweeper.ExpireOverdue(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("offer expiration sweep failed")
		return
	}
	if expired > 0 {
		logger.Log.WithField("expired", expired).Info("expired overdue offers")
	}
}

// Stop cancels the loop and waits for the current sweep to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
