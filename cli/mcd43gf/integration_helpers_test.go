//go:build integration

package main

import (
	"bytes"
	"context"
	"testing"
)

const testTokenEnv = "MCD43GF_TEST_TOKEN"

// runCLI executes one command line and returns everything it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
