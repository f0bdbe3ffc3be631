// File: internal/awsauth/chain.go
// Brief: Declarative role-assumption chains.

// Package awsauth turns an (environment, role kind) target into temporary
// session credentials. A single long-lived management-account identity
// reaches every per-environment role through one or two assume-role hops;
// the hops are data, so deeper delegation later is a chain change, not a
// code change. Grants are never written to durable storage.
package awsauth

import (
	"fmt"

	"github.com/example/envctl/internal/config"
)

// RoleKind selects the terminal role of a chain.
type RoleKind string

const (
	RoleOrgAccess RoleKind = "org"
	RoleCLI       RoleKind = "cli"
	RoleDeployer  RoleKind = "deployer"
)

// ParseRoleKind maps the CLI flag value to a RoleKind.
func ParseRoleKind(raw string) (RoleKind, error) {
	switch raw {
	case "org", "org-access":
		return RoleOrgAccess, nil
	case "cli":
		return RoleCLI, nil
	case "deployer":
		return RoleDeployer, nil
	default:
		return "", fmt.Errorf("unknown role kind %q (expected org, cli, or deployer)", raw)
	}
}

const (
	// StageOrgRole is the first hop: the organization-access role in the
	// target account, assumed with ambient management-account credentials.
	StageOrgRole = "org-role"
	// StageTargetRole is the second hop, assumed with the first hop's grant.
	StageTargetRole = "target-role"
)

// Hop is one assume-role call in a chain.
type Hop struct {
	Stage       string
	RoleArn     string
	SessionName string
}

// RoleArn builds an IAM role ARN from an account id and role name.
func RoleArn(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// ChainFor computes the hop list for a target. OrgAccess is a single hop;
// CLI and Deployer chain a second hop through the org-access grant. Session
// names carry the environment and purpose for CloudTrail auditability.
func ChainFor(env *config.Environment, kind RoleKind) ([]Hop, error) {
	if !env.Resolved() {
		return nil, fmt.Errorf("environment %s has no concrete account id yet (run account bootstrap first)", env.Name)
	}
	org := Hop{
		Stage:       StageOrgRole,
		RoleArn:     RoleArn(env.AccountID, env.OrgRoleName),
		SessionName: fmt.Sprintf("envctl-%s-%s", env.Name, kind),
	}
	switch kind {
	case RoleOrgAccess:
		return []Hop{org}, nil
	case RoleCLI:
		return []Hop{org, {
			Stage:       StageTargetRole,
			RoleArn:     RoleArn(env.AccountID, env.CliRoleName),
			SessionName: fmt.Sprintf("envctl-%s-cli", env.Name),
		}}, nil
	case RoleDeployer:
		if env.DeployerRoleArn == "" {
			return nil, fmt.Errorf("environment %s has no deployer_role_arn configured", env.Name)
		}
		return []Hop{org, {
			Stage:       StageTargetRole,
			RoleArn:     env.DeployerRoleArn,
			SessionName: fmt.Sprintf("envctl-%s-deployer", env.Name),
		}}, nil
	default:
		return nil, fmt.Errorf("unknown role kind %q", kind)
	}
}
