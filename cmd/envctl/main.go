// File: cmd/envctl/main.go
// Brief: Entry point: builds the root command and executes with a signal-aware context.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/example/envctl/internal/config"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	os.Exit(exitCode(err))
}

// exitCode maps the failure to the documented exit codes: 2 for configuration
// validation problems, 1 for everything else.
func exitCode(err error) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return exitValidation
	}
	return exitFailure
}
