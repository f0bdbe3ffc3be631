// File: cmd/envctl/delete.go
// Brief: CLI command wiring and implementation for 'delete'.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/envctl/internal/runner"
)

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var skip []string

	cmd := &cobra.Command{
		Use:   "delete <env>",
		Short: "Tear down an environment's stacks in reverse deploy order",
		Args:  cobra.ExactArgs(1),
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
			run := runner.New(s.log)
			// Deletion demands typing the environment name back, not a bare yes.
			run.Confirm = func(ctx context.Context) error {
				prompt := fmt.Sprintf("This deletes every stack in %q. Type the environment name to continue:", s.env.Name)
				return confirmAction(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), dec, prompt, confirmModeExact, s.env.Name)
			}
			flags := runner.Flags{Skip: skip, AutoConfirm: dec.Approved}
			report, runErr := run.Run(cmd.Context(), s.env.Name, "delete", s.buildDeleteSteps(), flags)
			persistReport(cmd.Context(), s.log, report)
			if err := renderReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringArrayVar(&skip, "skip", nil, "Step name to skip (repeatable)")
	return cmd
}
