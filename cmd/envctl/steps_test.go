// File: cmd/envctl/steps_test.go
// Brief: Tests for pipeline assembly and class filtering.

package main

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/example/envctl/internal/awsauth"
	"github.com/example/envctl/internal/config"
	"github.com/example/envctl/internal/runner"
)

const stepsDoc = `
project:
  name: ragchat
  default_region: eu-west-1
  management_account_id: "111111111111"
environments:
  dev:
    account_id: "222222222222"
    org_role_name: OrgAccess
    cli_role_name: DevCli
    deployer_role_arn: arn:aws:iam::222222222222:role/Deployer
roles:
  deployer:
    template: templates/deployer.yaml
    stack_name: "{project}-{env}-deployer"
resources:
  network:
    template: templates/network.yaml
    stack_name: "{project}-{env}-network"
  db:
    template:
      - templates/db.yaml
      - templates/db-alarms.yaml
    stack_name: "{project}-{env}-db"
    config:
      InstanceClass: db.t3.micro
  app:
    template: templates/app.yaml
    stack_name: "{project}-{env}-app"
    class: app
    config:
      artifact_source: build/app.zip
      artifact_dest: s3://ragchat-dev-artifacts/app.zip
`

func testSession(t *testing.T) *session {
	t.Helper()
	doc, err := config.Parse([]byte(stepsDoc), "steps.yaml", "")
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	env, err := doc.Env("dev")
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	return &session{
		opts: &rootOptions{configPath: "steps.yaml"},
		doc:  doc,
		env:  env,
		log:  zap.NewNop(),
	}
}

func stepNames(steps []runner.Step) string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	return strings.Join(names, ",")
}

func TestBuildDeployStepsOrder(t *testing.T) {
	s := testSession(t)
	got := stepNames(s.buildDeploySteps())
	want := "deployer,secret-sync,artifact-upload,network,db,app"
	if got != want {
		t.Fatalf("deploy order = %s, want %s", got, want)
	}
}

func TestBuildDeleteStepsReverseOrder(t *testing.T) {
	s := testSession(t)
	got := stepNames(s.buildDeleteSteps())
	want := "app,db,network,deployer"
	if got != want {
		t.Fatalf("delete order = %s, want %s", got, want)
	}
}

func TestSecretSyncDisabledWithoutSecretFile(t *testing.T) {
	s := testSession(t)
	s.env.SecretsFile = "does/not/exist.yaml"
	for _, step := range s.buildDeploySteps() {
		if step.Name == stepSecretSync && step.Enabled {
			t.Fatalf("secret-sync enabled with no secret file on disk")
		}
	}
}

func TestArtifactUploadEnabledByResourceConfig(t *testing.T) {
	s := testSession(t)
	for _, step := range s.buildDeploySteps() {
		if step.Name == stepArtifactUpload {
			if !step.Enabled {
				t.Fatalf("artifact-upload disabled despite app declaring an artifact")
			}
			return
		}
	}
	t.Fatalf("artifact-upload step missing")
}

func TestStackTargetsSuffixSecondaryTemplates(t *testing.T) {
	s := testSession(t)
	var db *config.Unit
	for _, u := range s.doc.Resources {
		if u.Name == "db" {
			db = u
		}
	}
	targets := stackTargets(s.doc, db, "dev")
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].StackName != "ragchat-dev-db" {
		t.Fatalf("first stack = %s", targets[0].StackName)
	}
	if targets[1].StackName != "ragchat-dev-db-db-alarms" {
		t.Fatalf("second stack = %s", targets[1].StackName)
	}
}

func TestStackParamsExcludeArtifactKeys(t *testing.T) {
	u := &config.Unit{Config: map[string]any{
		"artifact_source": "build/app.zip",
		"artifact_dest":   "s3://b/k",
		"MemorySize":      512,
	}}
	params := stackParams(u)
	if len(params) != 1 {
		t.Fatalf("params = %v, want only MemorySize", params)
	}
	if params["MemorySize"] != "512" {
		t.Fatalf("MemorySize = %q", params["MemorySize"])
	}
}

func TestClassSkipsOnlyInfra(t *testing.T) {
	s := testSession(t)
	got := strings.Join(s.classSkips(true, false), ",")
	want := "artifact-upload,app"
	if got != want {
		t.Fatalf("only-infra skips = %s, want %s", got, want)
	}
}

func TestClassSkipsOnlyApp(t *testing.T) {
	s := testSession(t)
	got := strings.Join(s.classSkips(false, true), ",")
	want := "secret-sync,deployer,network,db"
	if got != want {
		t.Fatalf("only-app skips = %s, want %s", got, want)
	}
}

func TestDeployKindPrefersDeployerRole(t *testing.T) {
	s := testSession(t)
	if deployKind(s.env) != awsauth.RoleDeployer {
		t.Fatalf("expected deployer role when deployer_role_arn is set")
	}
	s.env.DeployerRoleArn = ""
	if deployKind(s.env) != awsauth.RoleCLI {
		t.Fatalf("expected cli role without deployer_role_arn")
	}
}
