//go:build integration

package russh_test

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruffel/russh"
	"github.com/ruffel/russh/sessiontest"
)

// TestIntegration runs the contract suite against a real sshd configured through
// RUSSH_TEST_HOST, RUSSH_TEST_PORT, RUSSH_TEST_USER, RUSSH_TEST_PASSWORD and
// RUSSH_TEST_KEY. Host keys are checked against RUSSH_TEST_KNOWN_HOSTS when set.
func TestIntegration(t *testing.T) {
	host := os.Getenv("RUSSH_TEST_HOST")
	if host == "" {
		t.Skip("RUSSH_TEST_HOST not set")
	}

	var creds []russh.Credential
	if pw := os.Getenv("RUSSH_TEST_PASSWORD"); pw != "" {
		creds = append(creds, russh.NewPasswordAuth(pw))
	}

	if key := os.Getenv("RUSSH_TEST_KEY"); key != "" {
		creds = append(creds, russh.NewPrivateKeyAuth(key))
	}

	opts := []russh.Option{russh.WithInsecureSkipVerify(true)}
	if kh := os.Getenv("RUSSH_TEST_KNOWN_HOSTS"); kh != "" {
		opts = []russh.Option{russh.WithKnownHosts(kh)}
	}

	if p := os.Getenv("RUSSH_TEST_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		require.NoError(t, err)

		opts = append(opts, russh.WithPort(port))
	}

	client := russh.NewClient()
	t.Cleanup(func() { _ = client.Close() })

	err := client.Connect(context.Background(), host, os.Getenv("RUSSH_TEST_USER"), russh.Auth(creds...), opts...)
	require.NoError(t, err)

	sessiontest.Verify(t, sessiontest.Env{Session: client, RemoteDir: os.Getenv("RUSSH_TEST_REMOTE_DIR")})
}
