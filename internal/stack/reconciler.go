// File: internal/stack/reconciler.go
// Brief: Idempotent create-or-update of one CloudFormation stack.

// Package stack drives a single deployable resource toward its declared
// template. The reconciler keeps no memory of prior runs; everything it knows
// comes from DescribeStacks, which is what makes re-running the orchestrator
// after a partial failure safe.
package stack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	smithy "github.com/aws/smithy-go"

	"github.com/example/envctl/internal/poll"
)

// Result classifies a successful reconcile.
type Result string

const (
	ResultCreateComplete Result = "CREATE_COMPLETE"
	ResultUpdateComplete Result = "UPDATE_COMPLETE"
	// ResultNoUpdates means the remote stack already matched the template.
	// Callers must treat it as success, not failure.
	ResultNoUpdates Result = "NO_UPDATES"
)

// Outcome is the reconciler's report for one stack.
type Outcome struct {
	StackName string `json:"stackName"`
	Result    Result `json:"result"`
}

// ReconcileError reports a stack that ended in a failed terminal state.
// These are never retried automatically; the operator fixes the template or
// the remote resource and re-runs.
type ReconcileError struct {
	StackName string
	Status    string
	Reason    string
}

func (e *ReconcileError) Error() string {
	msg := fmt.Sprintf("stack %s ended in %s", e.StackName, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg + " (requires manual remediation, then re-run)"
}

// API is the slice of CloudFormation the reconciler calls.
type API interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// Reconciler creates or updates stacks and waits for terminal states.
type Reconciler struct {
	Client API
	Policy poll.Policy
}

// New returns a Reconciler with the default poll policy.
func New(client API) *Reconciler {
	return &Reconciler{Client: client, Policy: poll.DefaultPolicy()}
}

// Reconcile drives stackName toward templateBody/params: create when absent,
// update when present, NO_UPDATES when the provider reports nothing to do.
func (r *Reconciler) Reconcile(ctx context.Context, stackName, templateBody string, params map[string]string) (*Outcome, error) {
	_, exists, err := r.describe(ctx, stackName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return r.create(ctx, stackName, templateBody, params)
	}
	return r.update(ctx, stackName, templateBody, params)
}

func (r *Reconciler) create(ctx context.Context, stackName, templateBody string, params map[string]string) (*Outcome, error) {
	_, err := r.Client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(templateBody),
		Parameters:   toParameters(params),
		Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
	})
	if err != nil {
		return nil, fmt.Errorf("create stack %s: %w", stackName, err)
	}
	if err := r.waitSettled(ctx, stackName, "stack create "+stackName); err != nil {
		return nil, err
	}
	return &Outcome{StackName: stackName, Result: ResultCreateComplete}, nil
}

func (r *Reconciler) update(ctx context.Context, stackName, templateBody string, params map[string]string) (*Outcome, error) {
	_, err := r.Client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(templateBody),
		Parameters:   toParameters(params),
		Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
	})
	if err != nil {
		if isNoUpdates(err) {
			return &Outcome{StackName: stackName, Result: ResultNoUpdates}, nil
		}
		return nil, fmt.Errorf("update stack %s: %w", stackName, err)
	}
	if err := r.waitSettled(ctx, stackName, "stack update "+stackName); err != nil {
		return nil, err
	}
	return &Outcome{StackName: stackName, Result: ResultUpdateComplete}, nil
}

// Delete removes the stack and waits for it to disappear. A stack that never
// existed deletes as a no-op.
func (r *Reconciler) Delete(ctx context.Context, stackName string) error {
	_, exists, err := r.describe(ctx, stackName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := r.Client.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(stackName)}); err != nil {
		return fmt.Errorf("delete stack %s: %w", stackName, err)
	}
	return poll.Wait(ctx, "stack delete "+stackName, r.Policy, func(ctx context.Context) (bool, error) {
		st, exists, err := r.describe(ctx, stackName)
		if err != nil {
			return false, err
		}
		if !exists || st.status == cfntypes.StackStatusDeleteComplete {
			return true, nil
		}
		if inProgress(st.status) {
			return false, nil
		}
		return false, &ReconcileError{StackName: stackName, Status: string(st.status), Reason: st.reason}
	})
}

// Info is the observed state of one stack.
type Info struct {
	StackName string `json:"stackName"`
	Exists    bool   `json:"exists"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Status reports the remote state of a stack without mutating anything.
func (r *Reconciler) Status(ctx context.Context, stackName string) (*Info, error) {
	st, exists, err := r.describe(ctx, stackName)
	if err != nil {
		return nil, err
	}
	info := &Info{StackName: stackName, Exists: exists}
	if exists {
		info.Status = string(st.status)
		info.Reason = st.reason
	}
	return info, nil
}

type observed struct {
	status cfntypes.StackStatus
	reason string
}

func (r *Reconciler) describe(ctx context.Context, stackName string) (observed, bool, error) {
	out, err := r.Client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)})
	if err != nil {
		if isNotExists(err) {
			return observed{}, false, nil
		}
		return observed{}, false, fmt.Errorf("describe stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return observed{}, false, nil
	}
	st := out.Stacks[0]
	return observed{status: st.StackStatus, reason: aws.ToString(st.StackStatusReason)}, true, nil
}

// waitSettled polls until the stack leaves *_IN_PROGRESS. Failed terminal
// states surface as ReconcileError; the poll budget as poll.TimeoutError.
func (r *Reconciler) waitSettled(ctx context.Context, stackName, operation string) error {
	return poll.Wait(ctx, operation, r.Policy, func(ctx context.Context) (bool, error) {
		st, exists, err := r.describe(ctx, stackName)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, &ReconcileError{StackName: stackName, Status: "NOT_EXISTS", Reason: "stack disappeared while waiting"}
		}
		if inProgress(st.status) {
			return false, nil
		}
		switch st.status {
		case cfntypes.StackStatusCreateComplete, cfntypes.StackStatusUpdateComplete:
			return true, nil
		default:
			return false, &ReconcileError{StackName: stackName, Status: string(st.status), Reason: st.reason}
		}
	})
}

func inProgress(status cfntypes.StackStatus) bool {
	return strings.HasSuffix(string(status), "_IN_PROGRESS")
}

func isNotExists(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		return strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		return strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
	}
	return false
}

func toParameters(params map[string]string) []cfntypes.Parameter {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cfntypes.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return out
}
