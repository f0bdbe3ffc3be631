package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel context.CancelFunc
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.now = f.now.Add(d)
	f.slept = append(f.slept, d)
	return nil
}

func TestWaitSucceedsBeforeBudget(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := Policy{Interval: 10 * time.Second, MaxDuration: time.Minute, Clock: clk}
	probes := 0
	err := Wait(context.Background(), "stack create", p, func(context.Context) (bool, error) {
		probes++
		return probes == 3, nil
	})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if probes != 3 {
		t.Fatalf("probes=%d want=3", probes)
	}
	if len(clk.slept) != 2 {
		t.Fatalf("sleeps=%d want=2", len(clk.slept))
	}
}

func TestWaitTimesOut(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := Policy{Interval: 10 * time.Second, MaxDuration: 35 * time.Second, Clock: clk}
	probes := 0
	err := Wait(context.Background(), "account create", p, func(context.Context) (bool, error) {
		probes++
		return false, nil
	})
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("want TimeoutError, got %v", err)
	}
	if te.Operation != "account create" {
		t.Fatalf("operation=%q", te.Operation)
	}
	// 0s, 10s, 20s, 30s probed; next sleep would cross the 35s budget.
	if probes != 4 {
		t.Fatalf("probes=%d want=4", probes)
	}
}

func TestWaitPropagatesProbeError(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := Policy{Interval: time.Second, MaxDuration: time.Minute, Clock: clk}
	boom := errors.New("terminal failure")
	err := Wait(context.Background(), "op", p, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want probe error, got %v", err)
	}
}

func TestRealClockSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := RealClock().Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
