// File: internal/account/provisioner.go
// Brief: Idempotent member-account provisioning via Organizations.

// Package account creates (or finds) member accounts under the management
// account. Account creation is asynchronous on the provider side; the
// provisioner polls the creation request to a terminal state under a bounded
// policy. EnsureAccount is idempotent: an account that already exists under
// the requested name is returned without a second creation call, which is
// also the recovery path after a polling timeout.
package account

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/envctl/internal/poll"
)

// Request describes the account to ensure.
type Request struct {
	Name        string
	Email       string
	OrgRoleName string
}

// ProvisionError reports a creation request that reached FAILED.
type ProvisionError struct {
	AccountName string
	Reason      string
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("account %s provisioning failed: %s (fix the cause, then re-run; an existing account is picked up by name)", e.AccountName, e.Reason)
}

// OrganizationsAPI is the slice of Organizations the provisioner calls.
type OrganizationsAPI interface {
	ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error)
	CreateAccount(ctx context.Context, params *organizations.CreateAccountInput, optFns ...func(*organizations.Options)) (*organizations.CreateAccountOutput, error)
	DescribeCreateAccountStatus(ctx context.Context, params *organizations.DescribeCreateAccountStatusInput, optFns ...func(*organizations.Options)) (*organizations.DescribeCreateAccountStatusOutput, error)
}

// Provisioner ensures member accounts and their companion fixtures exist.
type Provisioner struct {
	Org    OrganizationsAPI
	Policy poll.Policy
	Log    *zap.Logger
}

// New returns a Provisioner with the default poll policy.
func New(org OrganizationsAPI, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{Org: org, Policy: poll.DefaultPolicy(), Log: log}
}

// EnsureAccount returns the id of the member account named req.Name,
// creating it when absent and polling the asynchronous request to a terminal
// state. On poll.TimeoutError the remote request may still complete; the
// caller re-invokes EnsureAccount, which then finds the account by name.
func (p *Provisioner) EnsureAccount(ctx context.Context, req Request) (string, error) {
	if existing, err := p.findByName(ctx, req.Name); err != nil {
		return "", err
	} else if existing != "" {
		p.Log.Info("account already exists", zap.String("name", req.Name), zap.String("account_id", existing))
		return existing, nil
	}

	out, err := p.Org.CreateAccount(ctx, &organizations.CreateAccountInput{
		AccountName: aws.String(req.Name),
		Email:       aws.String(req.Email),
		RoleName:    aws.String(req.OrgRoleName),
	})
	if err != nil {
		return "", errors.Wrapf(err, "create account %s", req.Name)
	}
	status := out.CreateAccountStatus
	if status == nil || status.Id == nil {
		return "", errors.Errorf("create account %s: response missing request id", req.Name)
	}
	requestID := *status.Id
	p.Log.Info("account creation requested", zap.String("name", req.Name), zap.String("request_id", requestID))

	var accountID string
	err = poll.Wait(ctx, "account create "+req.Name, p.Policy, func(ctx context.Context) (bool, error) {
		out, err := p.Org.DescribeCreateAccountStatus(ctx, &organizations.DescribeCreateAccountStatusInput{
			CreateAccountRequestId: aws.String(requestID),
		})
		if err != nil {
			return false, errors.Wrapf(err, "describe create-account status %s", requestID)
		}
		st := out.CreateAccountStatus
		if st == nil {
			return false, errors.Errorf("describe create-account status %s: empty response", requestID)
		}
		switch st.State {
		case orgtypes.CreateAccountStateSucceeded:
			accountID = aws.ToString(st.AccountId)
			return true, nil
		case orgtypes.CreateAccountStateFailed:
			return false, &ProvisionError{AccountName: req.Name, Reason: string(st.FailureReason)}
		default:
			return false, nil
		}
	})
	if err != nil {
		return "", err
	}
	p.Log.Info("account created", zap.String("name", req.Name), zap.String("account_id", accountID))
	return accountID, nil
}

// findByName pages through the organization's accounts looking for an exact
// name match among active accounts.
func (p *Provisioner) findByName(ctx context.Context, name string) (string, error) {
	var token *string
	for {
		out, err := p.Org.ListAccounts(ctx, &organizations.ListAccountsInput{NextToken: token})
		if err != nil {
			return "", errors.Wrap(err, "list accounts")
		}
		for _, acct := range out.Accounts {
			if aws.ToString(acct.Name) == name && acct.Status == orgtypes.AccountStatusActive {
				return aws.ToString(acct.Id), nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		token = out.NextToken
	}
}
