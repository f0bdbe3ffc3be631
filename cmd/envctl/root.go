// File: cmd/envctl/root.go
// Brief: Root command wiring, shared flags, and the per-invocation session.

// Package main provides the envctl CLI entrypoints.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/example/envctl/internal/config"
	"github.com/example/envctl/internal/logging"
)

const defaultConfigPath = "deploy/config.yaml"

// rootOptions are the persistent flags shared by every verb.
type rootOptions struct {
	configPath     string
	logLevel       string
	yes            bool
	nonInteractive bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{
		configPath: defaultConfigPath,
		logLevel:   "info",
	}
	cmd := &cobra.Command{
		Use:           "envctl",
		Short:         "Declarative AWS environment deployment orchestrator",
		Long:          "envctl reads an environment-scoped YAML document describing accounts, roles, and resources, and drives AWS toward it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", opts.configPath, "Path to the deployment config (local path or s3://bucket/key)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level for envctl diagnostics (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "Skip interactive confirmation prompts")
	cmd.PersistentFlags().BoolVar(&opts.nonInteractive, "non-interactive", false, "Fail instead of prompting (requires --yes for mutating verbs)")

	cmd.AddCommand(
		newDeployCommand(opts),
		newSetupCommand(opts),
		newStatusCommand(opts),
		newDeleteCommand(opts),
		newCredsCommand(opts),
		newSecretsCommand(opts),
		newAccountCommand(opts),
		newRunsCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	bindViper(cmd)
	return cmd
}

// bindViper lets ENVCTL_* environment variables stand in for unset flags,
// e.g. ENVCTL_CONFIG or ENVCTL_LOG_LEVEL.
func bindViper(root *cobra.Command) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("ENVCTL")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		if err := v.BindPFlags(root.PersistentFlags()); err != nil {
			cobra.CheckErr(err)
		}
		root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
				_ = f.Value.Set(val)
			}
		})
	})
}

// session is the loaded state every verb operates on: the validated document,
// the target environment, a logger, and the ambient AWS config used as the
// base of every credential chain.
type session struct {
	opts    *rootOptions
	doc     *config.Document
	env     *config.Environment
	log     *zap.Logger
	baseCfg aws.Config
}

// newSession loads the config document and resolves the named environment.
// envName may be empty for verbs that operate on the whole document.
func newSession(ctx context.Context, opts *rootOptions, envName string) (*session, error) {
	log, err := logging.New(opts.logLevel)
	if err != nil {
		return nil, err
	}
	baseCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	var fetcher config.Fetcher
	if strings.HasPrefix(opts.configPath, "s3://") {
		fetcher = &config.S3Fetcher{Client: s3.NewFromConfig(baseCfg)}
	}
	doc, err := config.LoadWith(ctx, fetcher, opts.configPath)
	if err != nil {
		return nil, err
	}
	s := &session{opts: opts, doc: doc, log: log, baseCfg: baseCfg}
	if envName != "" {
		env, err := doc.Env(envName)
		if err != nil {
			return nil, err
		}
		s.env = env
	}
	return s, nil
}

// secretsFilePath resolves the environment's secret file relative to the
// working directory, defaulting to deploy/secrets.<env>.yaml.
func (s *session) secretsFilePath() string {
	if s.env.SecretsFile != "" {
		return s.env.SecretsFile
	}
	return fmt.Sprintf("deploy/secrets.%s.yaml", s.env.Name)
}

func (s *session) close() {
	_ = s.log.Sync()
}

func runStoreRoot() string {
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
