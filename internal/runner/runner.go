// File: internal/runner/runner.go
// Brief: Sequential fail-fast step execution.

// Package runner executes an ordered pipeline of setup/deploy steps for one
// environment. Execution is strictly sequential: later resources consume
// identifiers produced by earlier ones. The runner never rolls back; the
// idempotence of the reconciler and provisioner is what makes re-runs safe.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status of one step in the report.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	// StatusSkipped covers steps disabled by config, skipped by flag, and
	// steps never attempted because an earlier step failed.
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Kind of a step.
type Kind string

const (
	KindRole     Kind = "role"
	KindResource Kind = "resource"
	KindSide     Kind = "side"
)

// Step is one unit of work in the pipeline.
type Step struct {
	Name    string
	Kind    Kind
	Enabled bool
	// Mutating steps trigger the confirmation gate; status-only steps don't.
	Mutating bool
	Run      func(ctx context.Context) error
}

// Flags are the per-invocation run controls. Skip beats config-enabled,
// never the reverse: a flag can only remove work.
type Flags struct {
	Skip        []string
	AutoConfirm bool
}

func (f Flags) skips(name string) bool {
	for _, s := range f.Skip {
		if s == name {
			return true
		}
	}
	return false
}

// StepResult records one step's outcome.
type StepResult struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"kind"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// MarshalJSON renders the duration as a human-readable string so json and
// yaml output matches the table renderer instead of printing nanoseconds.
func (r StepResult) MarshalJSON() ([]byte, error) {
	type plain StepResult
	dur := ""
	if r.Duration > 0 {
		dur = r.Duration.Round(time.Millisecond).String()
	}
	return json.Marshal(struct {
		plain
		Duration string `json:"duration,omitempty"`
	}{plain: plain(r), Duration: dur})
}

// Run-level outcomes. A refused confirmation is neither a success nor a step
// failure; it gets its own outcome so the run history never records an
// aborted run as SUCCEEDED.
const (
	RunSucceeded = "SUCCEEDED"
	RunFailed    = "FAILED"
	RunAborted   = "ABORTED"
)

// Report is the outcome of one run.
type Report struct {
	RunID      string       `json:"runId"`
	Env        string       `json:"env"`
	Verb       string       `json:"verb"`
	Outcome    string       `json:"outcome"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Steps      []StepResult `json:"steps"`
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Runner drives step pipelines.
type Runner struct {
	Log *zap.Logger
	// Confirm gates the first mutating step; nil means no gate.
	Confirm func(ctx context.Context) error
	// Now is replaceable in tests.
	Now func() time.Time
}

// New returns a Runner logging through log.
func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Log: log, Now: time.Now}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes steps in order, halting on the first failure. The report
// always covers every step; steps after a failure are recorded SKIPPED.
// The returned error is the first step failure (or a confirmation refusal)
// and is also embedded in the report.
func (r *Runner) Run(ctx context.Context, env, verb string, steps []Step, flags Flags) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Env:       env,
		Verb:      verb,
		StartedAt: r.now(),
	}
	confirmed := flags.AutoConfirm || r.Confirm == nil
	aborted := false
	var failed error
	for _, step := range steps {
		result := StepResult{Name: step.Name, Kind: step.Kind}
		switch {
		case failed != nil:
			result.Status = StatusSkipped
		case flags.skips(step.Name):
			result.Status = StatusSkipped
			r.Log.Info("step skipped by flag", zap.String("step", step.Name))
		case !step.Enabled:
			result.Status = StatusSkipped
			r.Log.Info("step disabled in config", zap.String("step", step.Name))
		default:
			if step.Mutating && !confirmed {
				if err := r.Confirm(ctx); err != nil {
					failed = fmt.Errorf("confirmation: %w", err)
					aborted = true
					result.Status = StatusSkipped
					break
				}
				confirmed = true
			}
			start := r.now()
			err := step.Run(ctx)
			result.Duration = r.now().Sub(start)
			if err != nil {
				failed = fmt.Errorf("step %s: %w", step.Name, err)
				result.Status = StatusFailed
				result.Error = err.Error()
				r.Log.Error("step failed", zap.String("step", step.Name), zap.Error(err))
			} else {
				result.Status = StatusCompleted
				r.Log.Info("step completed", zap.String("step", step.Name), zap.Duration("took", result.Duration))
			}
		}
		report.Steps = append(report.Steps, result)
	}
	report.FinishedAt = r.now()
	switch {
	case aborted:
		report.Outcome = RunAborted
	case report.Failed():
		report.Outcome = RunFailed
	default:
		report.Outcome = RunSucceeded
	}
	return report, failed
}
