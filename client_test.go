package russh

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ruffel/russh/russhtest"
)

func TestConnect_Password(t *testing.T) {
	t.Parallel()

	srv, c := passwordServer(t)

	assert.Equal(t, StateConnected, c.State())

	info := c.Session()
	assert.Equal(t, srv.Host(), info.Host)
	assert.Equal(t, srv.Port(), info.Port)
	assert.Equal(t, testUser, info.User)
	assert.Equal(t, MethodPassword, info.Method)
	assert.Equal(t, Authenticated, info.AuthState)
}

func TestConnect_PasswordBeforeKey(t *testing.T) {
	t.Parallel()

	keyPath, pub := russhtest.NewKey(t, "")
	srv := russhtest.New(t, russhtest.Options{Password: testPassword, AuthorizedKeys: []ssh.PublicKey{pub}})

	c := connectedClient(t, srv, Auth(NewPrivateKeyAuth(keyPath), NewPasswordAuth(testPassword)))

	assert.Equal(t, MethodPassword, c.Session().Method)

	for _, a := range srv.AuthLog() {
		assert.NotEqual(t, "publickey", a.Method, "key must not be offered once the password succeeded")
	}
}

func TestConnect_FallsBackToKey(t *testing.T) {
	t.Parallel()

	keyPath, pub := russhtest.NewKey(t, "")
	srv := russhtest.New(t, russhtest.Options{Password: testPassword, AuthorizedKeys: []ssh.PublicKey{pub}})

	c := connectedClient(t, srv, Auth(NewPasswordAuth("wrong"), NewPrivateKeyAuth(keyPath)))

	assert.Equal(t, MethodPrivateKey, c.Session().Method)
	assert.Equal(t, 2, srv.Connections())

	log := srv.AuthLog()
	require.Len(t, log, 2)
	assert.Equal(t, russhtest.AuthAttempt{User: testUser, Method: "password", Accepted: false}, log[0])
	assert.Equal(t, russhtest.AuthAttempt{User: testUser, Method: "publickey", Accepted: true}, log[1])
}

func TestConnect_EncryptedKey(t *testing.T) {
	t.Parallel()

	keyPath, pub := russhtest.NewKey(t, "hunter2")
	srv := russhtest.New(t, russhtest.Options{AuthorizedKeys: []ssh.PublicKey{pub}})

	c := connectedClient(t, srv, Auth(NewPrivateKeyAuthWithPassphrase(keyPath, "hunter2")))

	assert.Equal(t, MethodPrivateKey, c.Session().Method)
}

func TestConnect_AllRejected(t *testing.T) {
	t.Parallel()

	keyPath, _ := russhtest.NewKey(t, "")
	srv := russhtest.New(t, russhtest.Options{Password: testPassword})

	c := NewClient()
	defer func() { _ = c.Close() }()

	err := c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth("wrong"), NewPrivateKeyAuth(keyPath)), testOptions(srv)...)
	require.ErrorIs(t, err, ErrAuthentication)

	var rErr *Error

	require.ErrorAs(t, err, &rErr)
	require.Len(t, rErr.Attempts, 2)
	assert.Equal(t, rErr.Attempts[1], rErr.Err)
	assert.Contains(t, rErr.Err.Error(), "publickey")

	assert.Equal(t, StateNew, c.State())
	assert.Equal(t, Unauthenticated, c.Session().AuthState)
}

func TestConnect_UnreachableHost(t *testing.T) {
	t.Parallel()

	keyPath, _ := russhtest.NewKey(t, "")

	c := NewClient()
	defer func() { _ = c.Close() }()

	err := c.Connect(context.Background(), "127.0.0.1", testUser,
		Auth(NewPasswordAuth("pw"), NewPrivateKeyAuth(keyPath)),
		WithPort(closedPort(t)), WithTimeout(2*time.Second), WithInsecureSkipVerify(true))

	require.ErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrAuthentication)

	var rErr *Error

	require.ErrorAs(t, err, &rErr)
	assert.Empty(t, rErr.Attempts)
	assert.NotEmpty(t, rErr.Suggestion)
	assert.Equal(t, StateNew, c.State())
}

func TestConnect_MissingDefaultKnownHosts(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Run("unreachable host", func(t *testing.T) {
		c := NewClient()
		defer func() { _ = c.Close() }()

		err := c.Connect(context.Background(), "127.0.0.1", testUser, Auth(NewPasswordAuth("bad")),
			WithPort(closedPort(t)), WithTimeout(5*time.Second))
		require.ErrorIs(t, err, ErrConnection)
		assert.NotErrorIs(t, err, ErrLibrary)
	})

	t.Run("unknown host key", func(t *testing.T) {
		srv := russhtest.New(t, russhtest.Options{Password: testPassword})

		c := NewClient()
		defer func() { _ = c.Close() }()

		err := c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth(testPassword)),
			WithPort(srv.Port()), WithTimeout(5*time.Second))
		require.ErrorIs(t, err, ErrConnection)

		var rErr *Error

		require.ErrorAs(t, err, &rErr)
		assert.Contains(t, rErr.Suggestion, "ssh-keyscan")
		assert.Empty(t, srv.AuthLog())
	})
}

func TestConnect_DialFailureStopsAuth(t *testing.T) {
	t.Parallel()

	dials := 0

	c := NewClient()
	c.dial = func(context.Context, string, string) (net.Conn, error) {
		dials++

		return nil, errors.New("dial tcp 10.0.0.1:22: i/o timeout")
	}

	err := c.Connect(context.Background(), "10.0.0.1", testUser,
		Auth(NewPasswordAuth("pw"), NewPrivateKeyAuth("/unused")), WithInsecureSkipVerify(true))

	require.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 1, dials)
}

func TestConnect_Validation(t *testing.T) {
	t.Parallel()

	dialed := false

	c := NewClient()
	c.dial = func(context.Context, string, string) (net.Conn, error) {
		dialed = true

		return nil, errors.New("unexpected dial")
	}

	tests := []struct {
		name string
		host string
		user string
		auth AuthMethods
	}{
		{name: "no credentials", host: "example.com", user: testUser, auth: AuthMethods{}},
		{name: "empty host", host: "", user: testUser, auth: Auth(NewPasswordAuth("pw"))},
		{name: "empty user", host: "example.com", user: "", auth: Auth(NewPasswordAuth("pw"))},
	}

	for _, tt := range tests {
		err := c.Connect(context.Background(), tt.host, tt.user, tt.auth, WithInsecureSkipVerify(true))
		require.ErrorIs(t, err, ErrLibrary, tt.name)
	}

	assert.False(t, dialed)
}

func TestConnect_KnownHosts(t *testing.T) {
	t.Parallel()

	srv := russhtest.New(t, russhtest.Options{Password: testPassword})
	other := russhtest.New(t, russhtest.Options{Password: testPassword})

	dir := t.TempDir()
	good := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(good, []byte(srv.KnownHostsLine()+"\n"), 0o600))

	t.Run("matching key", func(t *testing.T) {
		t.Parallel()

		c := NewClient()
		defer func() { _ = c.Close() }()

		err := c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth(testPassword)),
			WithPort(srv.Port()), WithKnownHosts(good))
		require.NoError(t, err)
	})

	t.Run("changed key", func(t *testing.T) {
		t.Parallel()

		c := NewClient()
		defer func() { _ = c.Close() }()

		// srv's address pinned to other's key looks like a changed host key.
		bad := filepath.Join(t.TempDir(), "known_hosts")
		line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr())}, other.HostKey())
		require.NoError(t, os.WriteFile(bad, []byte(line+"\n"), 0o600))

		err := c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth(testPassword)),
			WithPort(srv.Port()), WithKnownHosts(bad))
		require.ErrorIs(t, err, ErrConnection)

		var mismatch *HostKeyMismatchError

		require.ErrorAs(t, err, &mismatch)

		var rErr *Error

		require.ErrorAs(t, err, &rErr)
		assert.Contains(t, rErr.Suggestion, "ssh-keygen -R")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		c := NewClient()
		defer func() { _ = c.Close() }()

		err := c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth(testPassword)),
			WithPort(srv.Port()), WithKnownHosts(filepath.Join(dir, "absent")))
		require.ErrorIs(t, err, ErrLibrary)
	})
}

func TestConnect_Reconnect(t *testing.T) {
	t.Parallel()

	srv, c := passwordServer(t)

	ch, err := c.ExecCommand(context.Background(), "cat")
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth(testPassword)), testOptions(srv)...))
	assert.Equal(t, 2, srv.Connections())

	// The channel keeps the retired transport alive.
	require.NoError(t, ch.WriteStdin("still here"))

	out, err := ch.ReadStdout()
	require.NoError(t, err)
	assert.Equal(t, "still here", out)

	code, err := ch.ExitStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	res, err := c.Run(context.Background(), "echo fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", res.Stdout)
}

func TestConnect_FailedReconnectKeepsSession(t *testing.T) {
	t.Parallel()

	srv, c := passwordServer(t)

	err := c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth("wrong")), testOptions(srv)...)
	require.ErrorIs(t, err, ErrAuthentication)

	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, MethodPassword, c.Session().Method)

	res, err := c.Run(context.Background(), "echo ok")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", res.Stdout)
}

func TestClient_NotConnected(t *testing.T) {
	t.Parallel()

	c := NewClient()

	_, err := c.ExecCommand(context.Background(), "echo hi")
	require.ErrorIs(t, err, ErrSession)

	_, err = c.OpenSFTP(context.Background())
	require.ErrorIs(t, err, ErrSession)

	_, err = c.Run(context.Background(), "echo hi")
	require.ErrorIs(t, err, ErrSession)

	require.NoError(t, c.Close())
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	srv, c := passwordServer(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, SessionClosed, c.Session().AuthState)

	_, err := c.ExecCommand(context.Background(), "echo hi")
	require.ErrorIs(t, err, ErrSession)

	_, err = c.OpenSFTP(context.Background())
	require.ErrorIs(t, err, ErrSession)

	err = c.Connect(context.Background(), srv.Host(), testUser, Auth(NewPasswordAuth(testPassword)), testOptions(srv)...)
	require.ErrorIs(t, err, ErrSession)
}

func TestClient_Run(t *testing.T) {
	t.Parallel()

	_, c := passwordServer(t)

	tests := []struct {
		name    string
		command string
		want    Result
	}{
		{name: "stdout", command: "echo hi", want: Result{Stdout: "hi\n"}},
		{name: "stderr", command: "echo oops >&2", want: Result{Stderr: "oops\n"}},
		{name: "non-zero exit", command: "exit 3", want: Result{ExitCode: 3}},
		{name: "built command", command: NewCommand("echo", "a b").String(), want: Result{Stdout: "a b\n"}},
		{name: "reads empty stdin", command: "cat", want: Result{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			res, err := c.Run(ctx, tt.command)
			require.NoError(t, err)

			assert.Equal(t, tt.want.Stdout, res.Stdout)
			assert.Equal(t, tt.want.Stderr, res.Stderr)
			assert.Equal(t, tt.want.ExitCode, res.ExitCode)
			assert.Equal(t, tt.want.ExitCode == 0, res.Success())
		})
	}
}

func TestClient_ExecutorClosesStdin(t *testing.T) {
	t.Parallel()

	_, c := passwordServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := NewExecutor(c).Run(ctx, NewCommand("cat"))
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)
	assert.Equal(t, 0, res.ExitCode)

	res, err = NewExecutor(c).Run(ctx, NewCommand("cat"), WithStdin("fed"))
	require.NoError(t, err)
	assert.Equal(t, "fed", res.Stdout)
}

func TestClient_CloseDropsChannels(t *testing.T) {
	t.Parallel()

	_, c := passwordServer(t)

	ch, err := c.ExecCommand(context.Background(), "sleep 30")
	require.NoError(t, err)

	require.NoError(t, c.Close())

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = ch.ExitStatus()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ExitStatus did not return after the client closed")
	}

	require.NoError(t, ch.Close())
}

func TestTransport_Refcount(t *testing.T) {
	t.Parallel()

	tr := &transport{}

	require.True(t, tr.acquire())
	require.True(t, tr.acquire())

	tr.mu.Lock()
	tr.retired = true
	tr.mu.Unlock()

	assert.False(t, tr.acquire())

	tr.mu.Lock()
	assert.Equal(t, 2, tr.active)
	tr.mu.Unlock()
}
