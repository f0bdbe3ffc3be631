// File: cmd/envctl/secrets.go
// Brief: CLI command wiring and implementation for 'secrets hydrate' and 'secrets restore'.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/envctl/internal/hydrate"
)

func newSecretsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Hydrate or restore placeholder secrets in deploy files",
	}
	cmd.AddCommand(newSecretsHydrateCommand(opts), newSecretsRestoreCommand(opts))
	return cmd
}

// hydrateTargets are the files that may carry ${UPPER_SNAKE} placeholders:
// the config document itself plus every template the environment deploys.
func (s *session) hydrateTargets() []string {
	seen := map[string]struct{}{}
	var targets []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		targets = append(targets, path)
	}
	if !strings.HasPrefix(s.opts.configPath, "s3://") {
		add(s.opts.configPath)
	}
	units := append(s.doc.RolesInOrder(s.env.Name), s.doc.ResourcesInOrder(s.env.Name)...)
	for _, u := range units {
		for _, tmpl := range u.Templates {
			add(s.doc.TemplatePath(tmpl))
		}
	}
	return targets
}

func newSecretsHydrateCommand(opts *rootOptions) *cobra.Command {
	var ci bool

	cmd := &cobra.Command{
		Use:   "hydrate <env>",
		Short: "Replace ${PLACEHOLDER} tokens with secret values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			var src hydrate.Source
			if ci {
				src = hydrate.EnvSource(nil)
			} else {
				src, err = hydrate.FileSource(s.secretsFilePath())
				if err != nil {
					return err
				}
			}
			result, err := hydrate.Hydrate(s.hydrateTargets(), src)
			if err != nil {
				return err
			}
			if result.NoOp() {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to hydrate.")
				return nil
			}
			files := make([]string, 0, len(result.Replaced))
			for file := range result.Replaced {
				files = append(files, file)
			}
			sort.Strings(files)
			for _, file := range files {
				keys := result.Replaced[file]
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n",
					color.GreenString("hydrated"), file, strings.Join(keys, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ci, "ci", false, "Resolve placeholders from process environment variables instead of the secret file")
	return cmd
}

func newSecretsRestoreCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <env>",
		Short: "Revert hydrated files from their checked-in templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			restored, err := hydrate.Restore(s.hydrateTargets())
			if err != nil {
				return err
			}
			if len(restored) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to restore.")
				return nil
			}
			for _, file := range restored {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.YellowString("restored"), file)
			}
			return nil
		},
	}
	return cmd
}
