// File: internal/poll/poll.go
// Brief: Bounded polling with a pluggable clock.

// Package poll provides the bounded wait loop used for long-running remote
// operations (stack create/update, account creation). The interval, budget,
// and clock are injected so callers poll real APIs in production and tests
// drive a fake clock instead of sleeping.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Clock abstracts time for the wait loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns a Clock backed by the system timer.
func RealClock() Clock { return realClock{} }

// Policy bounds a poll loop: probe every Interval, give up after MaxDuration.
type Policy struct {
	Interval    time.Duration
	MaxDuration time.Duration
	Clock       Clock
}

// DefaultPolicy matches the cadence of multi-minute cloud provisioning calls.
func DefaultPolicy() Policy {
	return Policy{Interval: 15 * time.Second, MaxDuration: 30 * time.Minute}
}

func (p Policy) clock() Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return realClock{}
}

// TimeoutError reports that an operation did not reach a terminal state
// within the policy budget. The remote request may still complete later; the
// caller is expected to re-run, which re-queries remote state.
type TimeoutError struct {
	Operation string
	Budget    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s (safe to re-run; remote operation may still complete)", e.Operation, e.Budget)
}

// Probe reports whether the operation reached a terminal state. A non-nil
// error ends the loop immediately.
type Probe func(ctx context.Context) (done bool, err error)

// Wait runs probe until it reports done, the budget is exhausted, or the
// context is cancelled. The first probe happens immediately, before any sleep.
func Wait(ctx context.Context, operation string, p Policy, probe Probe) error {
	clk := p.clock()
	deadline := clk.Now().Add(p.MaxDuration)
	for {
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !clk.Now().Add(p.Interval).Before(deadline) {
			return &TimeoutError{Operation: operation, Budget: p.MaxDuration}
		}
		if err := clk.Sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}
