package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func step(name string, enabled bool, run func(ctx context.Context) error) Step {
	if run == nil {
		run = func(context.Context) error { return nil }
	}
	return Step{Name: name, Kind: KindResource, Enabled: enabled, Mutating: true, Run: run}
}

func statuses(r *Report) string {
	var parts []string
	for _, s := range r.Steps {
		parts = append(parts, s.Name+":"+string(s.Status))
	}
	return strings.Join(parts, ",")
}

func TestRunFailFastOrdering(t *testing.T) {
	var executed []string
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			executed = append(executed, name)
			return err
		}
	}
	boom := errors.New("update rejected")
	steps := []Step{
		step("network", true, record("network", nil)),
		step("db", true, record("db", boom)),
		step("app", true, record("app", nil)),
	}
	r := New(nil)
	report, err := r.Run(context.Background(), "dev", "deploy", steps, Flags{AutoConfirm: true})
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("want step failure, got %v", err)
	}
	if got := strings.Join(executed, ","); got != "network,db" {
		t.Fatalf("executed %q; the step after a failure must never run", got)
	}
	want := "network:COMPLETED,db:FAILED,app:SKIPPED"
	if got := statuses(report); got != want {
		t.Fatalf("report %q want %q", got, want)
	}
	if !report.Failed() {
		t.Fatalf("report must be marked failed")
	}
}

func TestRunDisabledStepIsSkippedInPlace(t *testing.T) {
	steps := []Step{
		step("network", true, nil),
		step("db", true, nil),
		step("cache", false, nil),
	}
	r := New(nil)
	report, err := r.Run(context.Background(), "dev", "deploy", steps, Flags{AutoConfirm: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "network:COMPLETED,db:COMPLETED,cache:SKIPPED"
	if got := statuses(report); got != want {
		t.Fatalf("report %q want %q", got, want)
	}
}

func TestRunSkipFlagBeatsConfigEnabled(t *testing.T) {
	ran := false
	steps := []Step{step("network", true, func(context.Context) error {
		ran = true
		return nil
	})}
	r := New(nil)
	report, err := r.Run(context.Background(), "dev", "deploy", steps, Flags{Skip: []string{"network"}, AutoConfirm: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran {
		t.Fatalf("skipped step must not execute")
	}
	if report.Steps[0].Status != StatusSkipped {
		t.Fatalf("status %q", report.Steps[0].Status)
	}
}

func TestRunConfirmGateBeforeFirstMutatingStep(t *testing.T) {
	confirms := 0
	r := New(nil)
	r.Confirm = func(context.Context) error {
		confirms++
		return nil
	}
	steps := []Step{
		{Name: "status", Kind: KindSide, Enabled: true, Mutating: false, Run: func(context.Context) error { return nil }},
		step("network", true, nil),
		step("db", true, nil),
	}
	if _, err := r.Run(context.Background(), "dev", "deploy", steps, Flags{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if confirms != 1 {
		t.Fatalf("confirms=%d want=1 (once, before the first mutating step)", confirms)
	}
}

func TestRunConfirmRefusalAborts(t *testing.T) {
	r := New(nil)
	r.Confirm = func(context.Context) error { return errors.New("aborted") }
	ran := false
	steps := []Step{step("network", true, func(context.Context) error {
		ran = true
		return nil
	})}
	report, err := r.Run(context.Background(), "dev", "deploy", steps, Flags{})
	if err == nil {
		t.Fatalf("want abort error")
	}
	if ran {
		t.Fatalf("refused run must not execute steps")
	}
	if report.Steps[0].Status != StatusSkipped {
		t.Fatalf("status %q", report.Steps[0].Status)
	}
	if report.Outcome != RunAborted {
		t.Fatalf("outcome %q want %q; a refused run is not a success", report.Outcome, RunAborted)
	}
}

func TestRunOutcomeReflectsResult(t *testing.T) {
	r := New(nil)
	report, err := r.Run(context.Background(), "dev", "deploy",
		[]Step{step("network", true, nil)}, Flags{AutoConfirm: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != RunSucceeded {
		t.Fatalf("outcome %q want %q", report.Outcome, RunSucceeded)
	}
	boom := errors.New("update rejected")
	report, _ = r.Run(context.Background(), "dev", "deploy",
		[]Step{step("db", true, func(context.Context) error { return boom })}, Flags{AutoConfirm: true})
	if report.Outcome != RunFailed {
		t.Fatalf("outcome %q want %q", report.Outcome, RunFailed)
	}
}

func TestStepResultDurationMarshalsAsString(t *testing.T) {
	data, err := json.Marshal(StepResult{
		Name:     "db",
		Kind:     KindResource,
		Status:   StatusCompleted,
		Duration: 1503 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"duration":"1.503s"`) {
		t.Fatalf("duration not human-readable: %s", data)
	}
	data, err = json.Marshal(StepResult{Name: "app", Kind: KindResource, Status: StatusSkipped})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "duration") {
		t.Fatalf("zero duration must be omitted: %s", data)
	}
}

func TestRunAutoConfirmSkipsGate(t *testing.T) {
	r := New(nil)
	r.Confirm = func(context.Context) error { return errors.New("should not be called") }
	steps := []Step{step("network", true, nil)}
	if _, err := r.Run(context.Background(), "dev", "deploy", steps, Flags{AutoConfirm: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
