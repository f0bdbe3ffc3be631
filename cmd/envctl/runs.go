// File: cmd/envctl/runs.go
// Brief: CLI command wiring and implementation for 'runs'.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/example/envctl/internal/runstore"
)

func newRunsCommand(opts *rootOptions) *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "runs <env>",
		Short: "List recent runs for an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := runstore.Open(runStoreRoot())
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "table":
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN\tVERB\tSTARTED\tTOOK\tSTATUS\tFAILED STEP")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						e.RunID, e.Verb,
						e.StartedAt.Local().Format(time.RFC3339),
						e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond),
						e.Status, e.Failed)
				}
				return tw.Flush()
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "yaml", "yml":
				b, err := yaml.Marshal(entries)
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
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, yaml")
	return cmd
}
