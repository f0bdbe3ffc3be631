// File: cmd/envctl/main_test.go
// Brief: Tests for exit code mapping.

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/envctl/internal/config"
)

func TestExitCodeMapping(t *testing.T) {
	if got := exitCode(nil); got != exitOK {
		t.Fatalf("nil error: exit %d", got)
	}
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Fatalf("plain error: exit %d", got)
	}
	verr := &config.ValidationError{Path: "config.yaml", Problems: []string{"bad"}}
	if got := exitCode(fmt.Errorf("load: %w", verr)); got != exitValidation {
		t.Fatalf("validation error: exit %d", got)
	}
}
