// File: cmd/envctl/setup.go
// Brief: CLI command wiring and implementation for 'setup'.

package main

import (
	"github.com/spf13/cobra"

	"github.com/example/envctl/internal/runner"
)

func newSetupCommand(opts *rootOptions) *cobra.Command {
	var skip []string

	cmd := &cobra.Command{
		Use:   "setup <env>",
		Short: "Bootstrap an environment: member account, roles, secret sync",
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
			flags := runner.Flags{Skip: skip, AutoConfirm: dec.Approved}
			return s.runPipeline(cmd, "setup", s.buildSetupSteps(), flags, dec)
		},
	}
	cmd.Flags().StringArrayVar(&skip, "skip", nil, "Step name to skip (repeatable)")
	return cmd
}
