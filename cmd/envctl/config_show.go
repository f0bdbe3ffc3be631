// File: cmd/envctl/config_show.go
// Brief: CLI command wiring and implementation for 'config show'.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/envctl/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the deployment configuration",
	}
	cmd.AddCommand(newConfigShowCommand(opts))
	return cmd
}

// newConfigShowCommand validates and summarizes the document: a resolved
// stack-name table per environment, with placeholder environments and
// disabled units called out. Loading alone proves validity; a broken
// document exits 2 before any output.
func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Validate the config and show resolved stack names per environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), opts, "")
			if err != nil {
				return err
			}
			defer s.close()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %s (management account %s)\n",
				color.CyanString(s.doc.Project.Name), s.doc.Project.ManagementAccountID)
			for _, envName := range s.doc.EnvNames() {
				env, err := s.doc.Env(envName)
				if err != nil {
					return err
				}
				accountNote := env.AccountID
				if !env.Resolved() {
					accountNote = color.YellowString("%s (placeholder)", env.AccountID)
				}
				fmt.Fprintf(out, "\nEnvironment %s  account=%s region=%s\n",
					color.CyanString(envName), accountNote, env.Region)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "  UNIT\tKIND\tSTACK(S)\tENABLED")
				writeUnits := func(units []*config.Unit, kind string) {
					for _, u := range units {
						if !u.AppliesTo(envName) {
							continue
						}
						var names []string
						for _, target := range stackTargets(s.doc, u, envName) {
							names = append(names, target.StackName)
						}
						enabled := "yes"
						if !u.IsEnabled() {
							enabled = color.YellowString("no")
						}
						fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", u.Name, kind, strings.Join(names, ", "), enabled)
					}
				}
				writeUnits(s.doc.Roles, "role")
				writeUnits(s.doc.Resources, "resource")
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
