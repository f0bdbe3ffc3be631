// File: cmd/envctl/confirm_test.go
// Brief: Tests for interactive confirmation prompts.

package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestConfirmActionYesAcceptsYes(t *testing.T) {
	in := strings.NewReader("yes\n")
	out := &bytes.Buffer{}
	if err := confirmAction(context.Background(), in, out, approvalDecision{InteractiveTTY: true}, "Confirm?", confirmModeYes, ""); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestConfirmActionYesRejectsOtherInput(t *testing.T) {
	in := strings.NewReader("no\n")
	out := &bytes.Buffer{}
	if err := confirmAction(context.Background(), in, out, approvalDecision{InteractiveTTY: true}, "Confirm?", confirmModeYes, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConfirmActionExactRequiresMatch(t *testing.T) {
	in := strings.NewReader("prod\n")
	out := &bytes.Buffer{}
	if err := confirmAction(context.Background(), in, out, approvalDecision{InteractiveTTY: true}, "Type the environment name:", confirmModeExact, "prod"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	in = strings.NewReader("dev\n")
	if err := confirmAction(context.Background(), in, out, approvalDecision{InteractiveTTY: true}, "Type the environment name:", confirmModeExact, "prod"); err == nil {
		t.Fatalf("expected error on mismatch")
	}
}

func TestConfirmActionNonInteractiveFails(t *testing.T) {
	in := strings.NewReader("yes\n")
	out := &bytes.Buffer{}
	if err := confirmAction(context.Background(), in, out, approvalDecision{InteractiveTTY: false}, "Confirm?", confirmModeYes, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConfirmActionApprovedNeverPrompts(t *testing.T) {
	in := strings.NewReader("no\n")
	out := &bytes.Buffer{}
	if err := confirmAction(context.Background(), in, out, approvalDecision{Approved: true, NonInteractive: true}, "Confirm?", confirmModeYes, ""); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no prompt output, got %q", out.String())
	}
}

func TestConfirmActionCanceledReturnsContextCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &bytes.Buffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- confirmAction(ctx, pr, out, approvalDecision{InteractiveTTY: true}, "Confirm?", confirmModeYes, "")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	_ = pw.Close()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for confirmAction to return")
	}
}

func TestApprovedFromEnv(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"1":     true,
		"true":  true,
		"YES":   true,
		"no":    false,
		"maybe": false,
	}
	for value, want := range cases {
		t.Setenv("ENVCTL_YES", value)
		if got := approvedFromEnv(); got != want {
			t.Fatalf("ENVCTL_YES=%q: got %v, want %v", value, got, want)
		}
	}
}
