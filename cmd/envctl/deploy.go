// File: cmd/envctl/deploy.go
// Brief: CLI command wiring and implementation for 'deploy'.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/envctl/internal/runner"
)

func newDeployCommand(opts *rootOptions) *cobra.Command {
	var skip []string
	var onlyInfra bool
	var onlyApp bool

	cmd := &cobra.Command{
		Use:   "deploy <env>",
		Short: "Deploy roles and resources into an environment",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if onlyInfra && onlyApp {
				return fmt.Errorf("--only-infra and --only-app are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			dec, err := approvalMode(cmd, opts.yes, opts.nonInteractive)
			if err != nil {
				return err
			}
			steps := s.buildDeploySteps()
			flags := runner.Flags{
				Skip:        append(skip, s.classSkips(onlyInfra, onlyApp)...),
				AutoConfirm: dec.Approved,
			}
			return s.runPipeline(cmd, "deploy", steps, flags, dec)
		},
	}
	cmd.Flags().StringArrayVar(&skip, "skip", nil, "Step name to skip (repeatable)")
	cmd.Flags().BoolVar(&onlyInfra, "only-infra", false, "Deploy roles and infrastructure resources only")
	cmd.Flags().BoolVar(&onlyApp, "only-app", false, "Deploy application resources and their artifacts only")
	return cmd
}

// runPipeline executes the assembled steps with the shared confirmation
// gate, renders the report, and records it in the run history.
func (s *session) runPipeline(cmd *cobra.Command, verb string, steps []runner.Step, flags runner.Flags, dec approvalDecision) error {
	run := runner.New(s.log)
	run.Confirm = func(ctx context.Context) error {
		prompt := fmt.Sprintf("About to modify environment %q. Type 'yes' to continue:", s.env.Name)
		return confirmAction(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), dec, prompt, confirmModeYes, "")
	}
	report, runErr := run.Run(cmd.Context(), s.env.Name, verb, steps, flags)
	persistReport(cmd.Context(), s.log, report)
	if err := renderReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	return runErr
}
