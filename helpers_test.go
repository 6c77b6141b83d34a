package russh

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/ruffel/russh/russhtest"
)

const (
	testUser     = "tester"
	testPassword = "secret"
)

func testOptions(srv *russhtest.Server) []Option {
	return []Option{
		WithPort(srv.Port()),
		WithTimeout(5 * time.Second),
		WithHostKeyCallback(ssh.FixedHostKey(srv.HostKey())),
	}
}

func connectedClient(t *testing.T, srv *russhtest.Server, auth AuthMethods) *SSHClient {
	t.Helper()

	c := NewClient()
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Connect(context.Background(), srv.Host(), testUser, auth, testOptions(srv)...))

	return c
}

func passwordServer(t *testing.T) (*russhtest.Server, *SSHClient) {
	t.Helper()

	srv := russhtest.New(t, russhtest.Options{Password: testPassword})

	return srv, connectedClient(t, srv, Auth(NewPasswordAuth(testPassword)))
}

func openFS(t *testing.T, c *SSHClient) *SFTPClient {
	t.Helper()

	fs, err := c.OpenSFTP(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { _ = fs.Close() })

	sc, ok := fs.(*SFTPClient)
	require.True(t, ok)

	return sc
}

// closedPort returns a loopback port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return port
}
