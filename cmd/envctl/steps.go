// File: cmd/envctl/steps.go
// Brief: Pipeline assembly shared by deploy, setup, and delete.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/example/envctl/internal/artifact"
	"github.com/example/envctl/internal/awsauth"
	"github.com/example/envctl/internal/config"
	"github.com/example/envctl/internal/hydrate"
	"github.com/example/envctl/internal/runner"
	"github.com/example/envctl/internal/secretsync"
	"github.com/example/envctl/internal/stack"
)

const (
	stepSecretSync     = "secret-sync"
	stepArtifactUpload = "artifact-upload"
	stepAccount        = "account"
)

// Unit config keys consumed by the side steps rather than passed through as
// stack parameters.
const (
	cfgKeyArtifactSource = "artifact_source"
	cfgKeyArtifactDest   = "artifact_dest"
)

// stackTarget is one stack a unit deploys: units with a template list get one
// stack per template, the first under the unit's resolved name and the rest
// suffixed with the template basename.
type stackTarget struct {
	StackName    string
	TemplatePath string
}

func stackTargets(doc *config.Document, u *config.Unit, env string) []stackTarget {
	base := doc.StackNameFor(u, env)
	targets := make([]stackTarget, 0, len(u.Templates))
	for i, tmpl := range u.Templates {
		name := base
		if i > 0 {
			suffix := strings.TrimSuffix(filepath.Base(tmpl), filepath.Ext(tmpl))
			name = base + "-" + suffix
		}
		targets = append(targets, stackTarget{StackName: name, TemplatePath: doc.TemplatePath(tmpl)})
	}
	return targets
}

// stackParams stringifies the unit's config block into CloudFormation
// parameters, leaving out the keys the side steps own.
func stackParams(u *config.Unit) map[string]string {
	if len(u.Config) == 0 {
		return nil
	}
	params := make(map[string]string, len(u.Config))
	for k, v := range u.Config {
		if k == cfgKeyArtifactSource || k == cfgKeyArtifactDest {
			continue
		}
		params[k] = fmt.Sprintf("%v", v)
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// deployKind picks the terminal role for stack operations: the dedicated
// deployer role when the environment declares one, the CLI role otherwise.
func deployKind(env *config.Environment) awsauth.RoleKind {
	if env.DeployerRoleArn != "" {
		return awsauth.RoleDeployer
	}
	return awsauth.RoleCLI
}

// cfnClient resolves a fresh credential chain and returns a CloudFormation
// client authenticated as its terminal grant. Grants are never cached; every
// step pays the resolution cost so a long run cannot outlive a session.
func (s *session) cfnClient(ctx context.Context, kind awsauth.RoleKind) (*cloudformation.Client, error) {
	grant, err := awsauth.NewResolver(s.baseCfg).Resolve(ctx, s.env, kind)
	if err != nil {
		return nil, err
	}
	return cloudformation.NewFromConfig(awsauth.ConfigFor(s.baseCfg, s.env, grant)), nil
}

func (s *session) reconcileUnit(ctx context.Context, u *config.Unit, kind awsauth.RoleKind) error {
	client, err := s.cfnClient(ctx, kind)
	if err != nil {
		return err
	}
	rec := stack.New(client)
	for _, target := range stackTargets(s.doc, u, s.env.Name) {
		body, err := os.ReadFile(target.TemplatePath)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}
		outcome, err := rec.Reconcile(ctx, target.StackName, string(body), stackParams(u))
		if err != nil {
			return err
		}
		printStackOutcome(target.StackName, string(outcome.Result))
	}
	return nil
}

func (s *session) roleStep(u *config.Unit) runner.Step {
	return runner.Step{
		Name:     u.Name,
		Kind:     runner.KindRole,
		Enabled:  u.IsEnabled(),
		Mutating: true,
		Run: func(ctx context.Context) error {
			return s.reconcileUnit(ctx, u, awsauth.RoleOrgAccess)
		},
	}
}

func (s *session) resourceStep(u *config.Unit) runner.Step {
	return runner.Step{
		Name:     u.Name,
		Kind:     runner.KindResource,
		Enabled:  u.IsEnabled(),
		Mutating: true,
		Run: func(ctx context.Context) error {
			return s.reconcileUnit(ctx, u, deployKind(s.env))
		},
	}
}

func (s *session) secretSyncStep() runner.Step {
	path := s.secretsFilePath()
	_, statErr := os.Stat(path)
	return runner.Step{
		Name:     stepSecretSync,
		Kind:     runner.KindSide,
		Enabled:  statErr == nil,
		Mutating: true,
		Run: func(ctx context.Context) error {
			sf, err := hydrate.LoadSecretFile(path)
			if err != nil {
				return err
			}
			payload, err := secretsync.FromSecretFile(sf)
			if err != nil {
				return err
			}
			grant, err := awsauth.NewResolver(s.baseCfg).Resolve(ctx, s.env, deployKind(s.env))
			if err != nil {
				return err
			}
			client := secretsmanager.NewFromConfig(awsauth.ConfigFor(s.baseCfg, s.env, grant))
			name := fmt.Sprintf("%s-%s-database", s.doc.Project.Name, s.env.Name)
			return secretsync.Sync(ctx, client, name, payload)
		},
	}
}

// artifactSources lists the enabled resources that declare an artifact to
// upload before their stack deploys.
func (s *session) artifactSources() []*config.Unit {
	var out []*config.Unit
	for _, u := range s.doc.ResourcesInOrder(s.env.Name) {
		src, _ := u.Config[cfgKeyArtifactSource].(string)
		dest, _ := u.Config[cfgKeyArtifactDest].(string)
		if src != "" && dest != "" {
			out = append(out, u)
		}
	}
	return out
}

func (s *session) artifactUploadStep() runner.Step {
	sources := s.artifactSources()
	return runner.Step{
		Name:     stepArtifactUpload,
		Kind:     runner.KindSide,
		Enabled:  len(sources) > 0,
		Mutating: true,
		Run: func(ctx context.Context) error {
			grant, err := awsauth.NewResolver(s.baseCfg).Resolve(ctx, s.env, deployKind(s.env))
			if err != nil {
				return err
			}
			up := &artifact.Uploader{
				Client: s3.NewFromConfig(awsauth.ConfigFor(s.baseCfg, s.env, grant)),
				Log:    s.log,
			}
			for _, u := range sources {
				src := u.Config[cfgKeyArtifactSource].(string)
				dest := u.Config[cfgKeyArtifactDest].(string)
				if _, err := up.Upload(ctx, dest, src); err != nil {
					return fmt.Errorf("resource %s: %w", u.Name, err)
				}
			}
			return nil
		},
	}
}

// buildDeploySteps assembles the deploy pipeline: roles first, then the side
// steps, then resources in declared order.
func (s *session) buildDeploySteps() []runner.Step {
	var steps []runner.Step
	for _, u := range s.doc.RolesInOrder(s.env.Name) {
		steps = append(steps, s.roleStep(u))
	}
	steps = append(steps, s.secretSyncStep(), s.artifactUploadStep())
	for _, u := range s.doc.ResourcesInOrder(s.env.Name) {
		steps = append(steps, s.resourceStep(u))
	}
	return steps
}

// classSkips translates --only-infra / --only-app into the skip list: the
// excluded steps stay in the report as SKIPPED instead of vanishing.
func (s *session) classSkips(onlyInfra, onlyApp bool) []string {
	var skips []string
	switch {
	case onlyInfra:
		skips = append(skips, stepArtifactUpload)
		for _, u := range s.doc.ResourcesInOrder(s.env.Name) {
			if u.IsApp() {
				skips = append(skips, u.Name)
			}
		}
	case onlyApp:
		skips = append(skips, stepSecretSync)
		for _, u := range s.doc.RolesInOrder(s.env.Name) {
			skips = append(skips, u.Name)
		}
		for _, u := range s.doc.ResourcesInOrder(s.env.Name) {
			if !u.IsApp() {
				skips = append(skips, u.Name)
			}
		}
	}
	return skips
}

// buildSetupSteps assembles the bootstrap pipeline: account first, then
// roles, then the secret sync. Resources are deploy's job.
func (s *session) buildSetupSteps() []runner.Step {
	steps := []runner.Step{s.accountStep()}
	for _, u := range s.doc.RolesInOrder(s.env.Name) {
		steps = append(steps, s.roleStep(u))
	}
	steps = append(steps, s.secretSyncStep())
	return steps
}

// buildDeleteSteps tears stacks down in reverse declared order, resources
// before roles. Side steps have nothing to delete.
func (s *session) buildDeleteSteps() []runner.Step {
	var steps []runner.Step
	resources := s.doc.ResourcesInOrder(s.env.Name)
	for i := len(resources) - 1; i >= 0; i-- {
		steps = append(steps, s.deleteStep(resources[i], runner.KindResource, deployKind(s.env)))
	}
	roles := s.doc.RolesInOrder(s.env.Name)
	for i := len(roles) - 1; i >= 0; i-- {
		steps = append(steps, s.deleteStep(roles[i], runner.KindRole, awsauth.RoleOrgAccess))
	}
	return steps
}

func (s *session) deleteStep(u *config.Unit, kind runner.Kind, role awsauth.RoleKind) runner.Step {
	return runner.Step{
		Name:     u.Name,
		Kind:     kind,
		Enabled:  u.IsEnabled(),
		Mutating: true,
		Run: func(ctx context.Context) error {
			client, err := s.cfnClient(ctx, role)
			if err != nil {
				return err
			}
			rec := stack.New(client)
			targets := stackTargets(s.doc, u, s.env.Name)
			for i := len(targets) - 1; i >= 0; i-- {
				if err := rec.Delete(ctx, targets[i].StackName); err != nil {
					return err
				}
				printStackOutcome(targets[i].StackName, "DELETE_COMPLETE")
			}
			return nil
		},
	}
}
