package sessiontest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruffel/russh"
)

// Standard categories for grouping tests.
const (
	CategoryCore       = "core"
	CategoryChannel    = "channel"
	CategoryFilesystem = "filesystem"
	CategoryErrors     = "errors"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Context() context.Context
	TempDir() string
	Name() string
	Cleanup(fn func())
}

// Env is the session under test plus a writable remote directory the
// filesystem contracts can create scratch directories in.
type Env struct {
	Session   russh.Session
	RemoteDir string
}

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string
	Run         func(t T, env Env)
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// Verify is the standard Go test entry point for Session implementations.
func Verify(t *testing.T, env Env) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			tc.Run(t, env)
		})
	}
}
