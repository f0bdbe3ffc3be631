// File: internal/awsauth/resolve.go
// Brief: Chain execution against STS.

package awsauth

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/example/envctl/internal/config"
)

// Grant holds temporary session credentials. It lives only as long as the
// steps that need it; callers re-resolve per step instead of caching, which
// also refreshes sessions near expiry.
type Grant struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiry          time.Time
}

// AuthError reports a failed hop, naming the stage and role so the operator
// knows which trust relationship to fix.
type AuthError struct {
	Stage   string
	RoleArn string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("assume role %s failed at stage %s: %v (fix the trust policy or account id, then re-run)", e.RoleArn, e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AssumeRoleAPI is the slice of STS the resolver calls.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Resolver executes credential chains. NewClient returns an STS client
// authenticated as the given grant, or as the ambient identity when the
// grant is nil (the first hop).
type Resolver struct {
	NewClient func(grant *Grant) AssumeRoleAPI
	// Duration for each hop's session; zero means the STS default.
	Duration time.Duration
}

// NewResolver builds a Resolver over a loaded AWS config. Each hop's grant
// becomes the static credential provider for the next hop's client.
func NewResolver(cfg aws.Config) *Resolver {
	return &Resolver{
		NewClient: func(grant *Grant) AssumeRoleAPI {
			if grant == nil {
				return sts.NewFromConfig(cfg)
			}
			hopCfg := cfg.Copy()
			hopCfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
				grant.AccessKeyID, grant.SecretAccessKey, grant.SessionToken))
			return sts.NewFromConfig(hopCfg)
		},
	}
}

// Resolve walks the chain for (env, kind) and returns the terminal grant.
func (r *Resolver) Resolve(ctx context.Context, env *config.Environment, kind RoleKind) (*Grant, error) {
	hops, err := ChainFor(env, kind)
	if err != nil {
		return nil, err
	}
	var grant *Grant
	for _, hop := range hops {
		grant, err = r.assume(ctx, grant, hop)
		if err != nil {
			return nil, err
		}
	}
	return grant, nil
}

func (r *Resolver) assume(ctx context.Context, caller *Grant, hop Hop) (*Grant, error) {
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(hop.RoleArn),
		RoleSessionName: aws.String(hop.SessionName),
	}
	if r.Duration > 0 {
		input.DurationSeconds = aws.Int32(int32(r.Duration / time.Second))
	}
	out, err := r.NewClient(caller).AssumeRole(ctx, input)
	if err != nil {
		return nil, &AuthError{Stage: hop.Stage, RoleArn: hop.RoleArn, Err: err}
	}
	creds := out.Credentials
	if creds == nil || creds.AccessKeyId == nil || creds.SecretAccessKey == nil || creds.SessionToken == nil {
		return nil, &AuthError{Stage: hop.Stage, RoleArn: hop.RoleArn, Err: fmt.Errorf("assume-role response missing credentials")}
	}
	grant := &Grant{
		AccessKeyID:     *creds.AccessKeyId,
		SecretAccessKey: *creds.SecretAccessKey,
		SessionToken:    *creds.SessionToken,
	}
	if creds.Expiration != nil {
		grant.Expiry = *creds.Expiration
	}
	return grant, nil
}

// ConfigFor returns an aws.Config scoped to the environment's region and
// authenticated as the grant, for building downstream service clients.
func ConfigFor(base aws.Config, env *config.Environment, grant *Grant) aws.Config {
	cfg := base.Copy()
	if env.Region != "" {
		cfg.Region = env.Region
	}
	if grant != nil {
		cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			grant.AccessKeyID, grant.SecretAccessKey, grant.SessionToken))
	}
	return cfg
}
