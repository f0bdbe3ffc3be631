// File: cmd/envctl/creds.go
// Brief: CLI command wiring and implementation for 'creds' (credential_process).

package main

import (
	"github.com/spf13/cobra"

	"github.com/example/envctl/internal/awsauth"
)

// newCredsCommand emits credential_process JSON for an environment's role
// chain. The contract is strict: exactly one JSON line on stdout, everything
// else on stderr, exit nonzero on failure.
func newCredsCommand(opts *rootOptions) *cobra.Command {
	var roleFlag string

	cmd := &cobra.Command{
		Use:   "creds <env>",
		Short: "Resolve a role chain and print credential_process JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := awsauth.ParseRoleKind(roleFlag)
			if err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			grant, err := awsauth.NewResolver(s.baseCfg).Resolve(cmd.Context(), s.env, kind)
			if err != nil {
				_ = awsauth.WriteProcessError(cmd.OutOrStdout(), err)
				return err
			}
			return awsauth.WriteProcess(cmd.OutOrStdout(), grant)
		},
	}
	cmd.Flags().StringVar(&roleFlag, "role", "cli", "Terminal role of the chain: org, cli, or deployer")
	return cmd
}
