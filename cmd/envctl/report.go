// File: cmd/envctl/report.go
// Brief: Run report rendering and persistence.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/example/envctl/internal/runner"
	"github.com/example/envctl/internal/runstore"
)

func printStackOutcome(stackName, result string) {
	fmt.Fprintf(os.Stdout, "  %s %s %s\n", color.CyanString(stackName), color.HiBlackString("->"), result)
}

func statusColor(st runner.Status) string {
	switch st {
	case runner.StatusCompleted:
		return color.GreenString(string(st))
	case runner.StatusFailed:
		return color.RedString(string(st))
	default:
		return color.YellowString(string(st))
	}
}

func outcomeColor(outcome string) string {
	switch outcome {
	case runner.RunSucceeded:
		return color.GreenString(outcome)
	case runner.RunFailed:
		return color.RedString(outcome)
	default:
		return color.YellowString(outcome)
	}
}

func renderReport(w io.Writer, report *runner.Report) error {
	fmt.Fprintf(w, "\nRun %s (%s %s) %s in %s\n", report.RunID, report.Verb, report.Env,
		outcomeColor(report.Outcome),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tKIND\tSTATUS\tDURATION\tERROR")
	for _, step := range report.Steps {
		dur := ""
		if step.Duration > 0 {
			dur = step.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", step.Name, step.Kind, statusColor(step.Status), dur, step.Error)
	}
	return tw.Flush()
}

// persistReport appends the run to the local history store. History is an
// aid, not a dependency: failures are logged and swallowed.
func persistReport(ctx context.Context, log *zap.Logger, report *runner.Report) {
	store, err := runstore.Open(runStoreRoot())
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		return
	}
	defer store.Close()
	if err := store.Append(ctx, report); err != nil {
		log.Warn("run history append failed", zap.Error(err))
	}
}
