// File: cmd/envctl/status.go
// Brief: CLI command wiring and implementation for 'status'.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/example/envctl/internal/awsauth"
	"github.com/example/envctl/internal/config"
	"github.com/example/envctl/internal/stack"
)

type statusRow struct {
	Unit      string `json:"unit" yaml:"unit"`
	Kind      string `json:"kind" yaml:"kind"`
	StackName string `json:"stackName" yaml:"stackName"`
	Status    string `json:"status" yaml:"status"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status <env>",
		Short: "Show the remote state of every stack in an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			var rows []statusRow
			collect := func(units []*config.Unit, kind string, role awsauth.RoleKind) error {
				if len(units) == 0 {
					return nil
				}
				client, err := s.cfnClient(cmd.Context(), role)
				if err != nil {
					return err
				}
				rec := stack.New(client)
				for _, u := range units {
					for _, target := range stackTargets(s.doc, u, s.env.Name) {
						info, err := rec.Status(cmd.Context(), target.StackName)
						if err != nil {
							return err
						}
						row := statusRow{Unit: u.Name, Kind: kind, StackName: info.StackName, Status: info.Status, Reason: info.Reason}
						if !info.Exists {
							row.Status = "ABSENT"
						}
						rows = append(rows, row)
					}
				}
				return nil
			}
			if err := collect(s.doc.RolesInOrder(s.env.Name), "role", awsauth.RoleOrgAccess); err != nil {
				return err
			}
			if err := collect(s.doc.ResourcesInOrder(s.env.Name), "resource", deployKind(s.env)); err != nil {
				return err
			}

			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "table":
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "UNIT\tKIND\tSTACK\tSTATUS\tREASON")
				for _, row := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Unit, row.Kind, row.StackName, row.Status, row.Reason)
				}
				return tw.Flush()
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case "yaml", "yml":
				b, err := yaml.Marshal(rows)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			default:
				return fmt.Errorf("unsupported --output %q (expected table, json, or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, yaml")
	return cmd
}
