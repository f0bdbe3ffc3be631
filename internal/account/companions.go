// File: internal/account/companions.go
// Brief: Idempotent per-account companion fixtures.

package account

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	budgetstypes "github.com/aws/aws-sdk-go-v2/service/budgets/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// IAMAPI is the slice of IAM used for the companion deploy identity.
type IAMAPI interface {
	GetUser(ctx context.Context, params *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error)
	CreateUser(ctx context.Context, params *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error)
}

// BudgetsAPI is the slice of Budgets used for the monthly alert.
type BudgetsAPI interface {
	DescribeBudget(ctx context.Context, params *budgets.DescribeBudgetInput, optFns ...func(*budgets.Options)) (*budgets.DescribeBudgetOutput, error)
	CreateBudget(ctx context.Context, params *budgets.CreateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.CreateBudgetOutput, error)
}

// Companions describes the optional per-account fixtures set up after the
// account itself exists: a deploy identity and a monthly budget alert. Each
// is check-then-create; failures are reported to the caller but never roll
// back the account.
type Companions struct {
	IAM     IAMAPI
	Budgets BudgetsAPI
	Log     *zap.Logger
}

// CompanionSpec parameterizes one account's fixtures.
type CompanionSpec struct {
	AccountID      string
	DeployUserName string
	BudgetName     string
	// BudgetLimitUSD is the monthly cost ceiling; the alert fires at 80%.
	BudgetLimitUSD string
	AlertEmail     string
}

// Ensure sets up the fixtures, returning every failure rather than stopping
// at the first so a partial run reports all remaining work.
func (c *Companions) Ensure(ctx context.Context, spec CompanionSpec) []error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	var errs []error
	if err := c.ensureDeployUser(ctx, spec.DeployUserName); err != nil {
		errs = append(errs, fmt.Errorf("deploy user %s: %w", spec.DeployUserName, err))
	} else {
		log.Info("deploy user present", zap.String("user", spec.DeployUserName))
	}
	if err := c.ensureBudget(ctx, spec); err != nil {
		errs = append(errs, fmt.Errorf("budget %s: %w", spec.BudgetName, err))
	} else {
		log.Info("budget alert present", zap.String("budget", spec.BudgetName))
	}
	return errs
}

func (c *Companions) ensureDeployUser(ctx context.Context, userName string) error {
	_, err := c.IAM.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(userName)})
	if err == nil {
		return nil
	}
	var notFound *iamtypes.NoSuchEntityException
	if !stderrors.As(err, &notFound) {
		return errors.Wrap(err, "get user")
	}
	_, err = c.IAM.CreateUser(ctx, &iam.CreateUserInput{
		UserName: aws.String(userName),
		Tags: []iamtypes.Tag{{
			Key:   aws.String("managed-by"),
			Value: aws.String("envctl"),
		}},
	})
	return errors.Wrap(err, "create user")
}

func (c *Companions) ensureBudget(ctx context.Context, spec CompanionSpec) error {
	_, err := c.Budgets.DescribeBudget(ctx, &budgets.DescribeBudgetInput{
		AccountId:  aws.String(spec.AccountID),
		BudgetName: aws.String(spec.BudgetName),
	})
	if err == nil {
		return nil
	}
	var notFound *budgetstypes.NotFoundException
	if !stderrors.As(err, &notFound) {
		return errors.Wrap(err, "describe budget")
	}
	_, err = c.Budgets.CreateBudget(ctx, &budgets.CreateBudgetInput{
		AccountId: aws.String(spec.AccountID),
		Budget: &budgetstypes.Budget{
			BudgetName: aws.String(spec.BudgetName),
			BudgetType: budgetstypes.BudgetTypeCost,
			TimeUnit:   budgetstypes.TimeUnitMonthly,
			BudgetLimit: &budgetstypes.Spend{
				Amount: aws.String(spec.BudgetLimitUSD),
				Unit:   aws.String("USD"),
			},
		},
		NotificationsWithSubscribers: []budgetstypes.NotificationWithSubscribers{{
			Notification: &budgetstypes.Notification{
				NotificationType:   budgetstypes.NotificationTypeActual,
				ComparisonOperator: budgetstypes.ComparisonOperatorGreaterThan,
				Threshold:          80,
				ThresholdType:      budgetstypes.ThresholdTypePercentage,
			},
			Subscribers: []budgetstypes.Subscriber{{
				SubscriptionType: budgetstypes.SubscriptionTypeEmail,
				Address:          aws.String(spec.AlertEmail),
			}},
		}},
	})
	return errors.Wrap(err, "create budget")
}
