// Package main provides the gridrun test-matrix runner CLI.
package main

import (
	"errors"
	"os"

	"github.com/gridrun-labs/gridrun/internal/cli"
	"github.com/gridrun-labs/gridrun/internal/matrix"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to a process exit code. Matrix configuration
// errors exit with 2 so callers can tell a bad matrix file apart from a
// failing test command.
func exitCode(err error) int {
	var parseErr *matrix.ParseError
	var pinErr *matrix.UnknownPinError
	if errors.As(err, &parseErr) || errors.As(err, &pinErr) {
		return 2
	}
	return 1
}
