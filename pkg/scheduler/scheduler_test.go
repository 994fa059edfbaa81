package scheduler

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matchcare/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type countingSweeper struct {
	calls int64
	err   error
}

func (c *countingSweeper) ExpireOverdue(ctx context.Context) (int, error) {
	atomic.AddInt64(&c.calls, 1)
	return 1, c.err
}

func (c *countingSweeper) count() int64 {
	return atomic.LoadInt64(&c.calls)
}

func TestRunnerSweepsOnInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	runner := NewRunner(sweeper, 10*time.Millisecond)

	runner.Start()
	defer runner.Stop()

	deadline := time.After(2 * time.Second)
	for sweeper.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 sweeps, got %d", sweeper.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	runner := NewRunner(&countingSweeper{}, time.Minute)
	runner.Start()
	runner.Stop()
	runner.Stop()
}

func TestRunnerStartIsIdempotent(t *testing.T) {
	sweeper := &countingSweeper{}
	runner := NewRunner(sweeper, time.Minute)
	runner.Start()
	runner.Start()
	runner.Stop()
}

func TestRunnerSurvivesSweepErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	runner := NewRunner(sweeper, 10*time.Millisecond)

	runner.Start()
	defer runner.Stop()

	deadline := time.After(2 * time.Second)
	for sweeper.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected loop to keep running on errors, got %d sweeps", sweeper.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
