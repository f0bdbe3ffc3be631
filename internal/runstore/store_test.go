package runstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/envctl/internal/runner"
)

func sampleReport(id, env, verb string, failedStep string) *runner.Report {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &runner.Report{
		RunID:      id,
		Env:        env,
		Verb:       verb,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Minute),
	}
	for _, name := range []string{"roles", "network", "db"} {
		status := runner.StatusCompleted
		errMsg := ""
		if name == failedStep {
			status = runner.StatusFailed
			errMsg = "update rejected"
		}
		report.Steps = append(report.Steps, runner.StepResult{
			Name:     name,
			Kind:     runner.KindResource,
			Status:   status,
			Error:    errMsg,
			Duration: 42 * time.Second,
		})
	}
	return report
}

func TestAppendAndList(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Append(ctx, sampleReport("run-1", "dev", "deploy", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, sampleReport("run-2", "dev", "deploy", "db")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, sampleReport("run-3", "prod", "setup", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.List(ctx, "dev", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want=2", len(entries))
	}
	for _, e := range entries {
		if e.Env != "dev" || e.Steps != 3 {
			t.Fatalf("entry %+v", e)
		}
	}
	var failed *Entry
	for i := range entries {
		if entries[i].RunID == "run-2" {
			failed = &entries[i]
		}
	}
	if failed == nil || failed.Status != "FAILED" || failed.Failed != "db" {
		t.Fatalf("failed run entry %+v", failed)
	}
}

func TestAppendRecordsAbortedRun(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	r := runner.New(nil)
	r.Confirm = func(context.Context) error { return errors.New("aborted") }
	report, runErr := r.Run(ctx, "prod", "deploy", []runner.Step{{
		Name:     "network",
		Kind:     runner.KindResource,
		Enabled:  true,
		Mutating: true,
		Run:      func(context.Context) error { return nil },
	}}, runner.Flags{})
	if runErr == nil {
		t.Fatalf("want refusal error")
	}
	if err := store.Append(ctx, report); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, err := store.List(ctx, "prod", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d want=1", len(entries))
	}
	if entries[0].Status != runner.RunAborted {
		t.Fatalf("status %q want %q; a refused deploy must never read as a success", entries[0].Status, runner.RunAborted)
	}
}

func TestListOrdersSubSecondStartsCorrectly(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	// Whole-second vs fractional timestamps in the same second: text ordering
	// of trimmed RFC3339 puts "05Z" after "05.5Z"; the epoch column must not.
	whole := sampleReport("run-whole", "dev", "deploy", "")
	whole.StartedAt = time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	frac := sampleReport("run-frac", "dev", "deploy", "")
	frac.StartedAt = time.Date(2026, 3, 1, 12, 0, 5, 500_000_000, time.UTC)
	if err := store.Append(ctx, whole); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, frac); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, err := store.List(ctx, "dev", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-frac" {
		t.Fatalf("order %+v; the fractionally later run must list first", entries)
	}
	if !entries[0].StartedAt.Equal(frac.StartedAt) {
		t.Fatalf("round-tripped start %v want %v", entries[0].StartedAt, frac.StartedAt)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Append(context.Background(), sampleReport("run-1", "dev", "deploy", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	store, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), "dev", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d want=1 after reopen", len(entries))
	}
}
