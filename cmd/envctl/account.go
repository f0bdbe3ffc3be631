// File: cmd/envctl/account.go
// Brief: CLI command wiring and implementation for 'account ensure'.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/envctl/internal/account"
	"github.com/example/envctl/internal/awsauth"
	"github.com/example/envctl/internal/config"
	"github.com/example/envctl/internal/runner"
)

func newAccountCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage member accounts",
	}
	cmd.AddCommand(newAccountEnsureCommand(opts))
	return cmd
}

func newAccountEnsureCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure <env>",
		Short: "Ensure the environment's member account and companions exist",
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
			flags := runner.Flags{AutoConfirm: dec.Approved}
			return s.runPipeline(cmd, "account", []runner.Step{s.accountStep()}, flags, dec)
		},
	}
	return cmd
}

func (s *session) accountStep() runner.Step {
	return runner.Step{
		Name:     stepAccount,
		Kind:     runner.KindSide,
		Enabled:  true,
		Mutating: true,
		Run:      s.ensureAccount,
	}
}

// ensureAccount provisions the environment's member account when its id is
// still a placeholder, records the new id in the config document, and sets
// up the companion fixtures. Companion failures are reported but do not fail
// the step; the account itself is the contract.
func (s *session) ensureAccount(ctx context.Context) error {
	if !s.env.Resolved() {
		if s.env.AccountEmail == "" {
			return fmt.Errorf("environment %s has no account_email; cannot create its account", s.env.Name)
		}
		prov := account.New(organizations.NewFromConfig(s.baseCfg), s.log)
		id, err := prov.EnsureAccount(ctx, account.Request{
			Name:        fmt.Sprintf("%s-%s", s.doc.Project.Name, s.env.Name),
			Email:       s.env.AccountEmail,
			OrgRoleName: s.env.OrgRoleName,
		})
		if err != nil {
			return err
		}
		if err := s.doc.Patch(s.env.Name, config.FieldAccountID, id); err != nil {
			return err
		}
		if strings.HasPrefix(s.opts.configPath, "s3://") {
			s.log.Warn("config is remote; record the account id manually",
				zap.String("env", s.env.Name), zap.String("accountId", id))
		} else if err := s.doc.Persist(s.opts.configPath); err != nil {
			return err
		}
		s.log.Info("account ready", zap.String("env", s.env.Name), zap.String("accountId", id))
	}
	return s.ensureCompanions(ctx)
}

func (s *session) ensureCompanions(ctx context.Context) error {
	grant, err := awsauth.NewResolver(s.baseCfg).Resolve(ctx, s.env, awsauth.RoleOrgAccess)
	if err != nil {
		return err
	}
	cfg := awsauth.ConfigFor(s.baseCfg, s.env, grant)
	comp := &account.Companions{
		IAM:     iam.NewFromConfig(cfg),
		Budgets: budgets.NewFromConfig(cfg),
		Log:     s.log,
	}
	limit := s.doc.Project.BudgetLimitUSD
	if limit == "" {
		limit = "10"
	}
	spec := account.CompanionSpec{
		AccountID:      s.env.AccountID,
		DeployUserName: fmt.Sprintf("%s-%s-deploy", s.doc.Project.Name, s.env.Name),
		BudgetName:     fmt.Sprintf("%s-%s-monthly", s.doc.Project.Name, s.env.Name),
		BudgetLimitUSD: limit,
		AlertEmail:     s.doc.Project.AlertEmail,
	}
	for _, err := range comp.Ensure(ctx, spec) {
		s.log.Warn("companion fixture incomplete", zap.Error(err))
	}
	return nil
}
