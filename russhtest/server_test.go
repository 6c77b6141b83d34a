package russhtest

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func dial(t *testing.T, s *Server, auth ssh.AuthMethod) *ssh.Client {
	t.Helper()

	client, err := ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            "tester",
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.FixedHostKey(s.HostKey()),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestServer_PasswordAuth(t *testing.T) {
	t.Parallel()

	s := New(t, Options{Password: "secret"})

	dial(t, s, ssh.Password("secret"))

	_, err := ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            "tester",
		Auth:            []ssh.AuthMethod{ssh.Password("wrong")},
		HostKeyCallback: ssh.FixedHostKey(s.HostKey()),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to authenticate")

	log := s.AuthLog()
	require.Len(t, log, 2)
	assert.Equal(t, AuthAttempt{User: "tester", Method: "password", Accepted: true}, log[0])
	assert.Equal(t, AuthAttempt{User: "tester", Method: "password", Accepted: false}, log[1])
	assert.Equal(t, 2, s.Connections())
}

func TestServer_PublicKeyAuth(t *testing.T) {
	t.Parallel()

	path, pub := NewKey(t, "")
	s := New(t, Options{AuthorizedKeys: []ssh.PublicKey{pub}})

	signer := loadSigner(t, path, "")
	dial(t, s, ssh.PublicKeys(signer))

	log := s.AuthLog()
	require.NotEmpty(t, log)
	assert.Equal(t, "publickey", log[len(log)-1].Method)
	assert.True(t, log[len(log)-1].Accepted)
}

func TestNewKey_Passphrase(t *testing.T) {
	t.Parallel()

	path, pub := NewKey(t, "hunter2")

	signer := loadSigner(t, path, "hunter2")
	assert.Equal(t, pub.Marshal(), signer.PublicKey().Marshal())
}

func TestServer_Exec(t *testing.T) {
	t.Parallel()

	s := New(t, Options{Password: "secret"})
	client := dial(t, s, ssh.Password("secret"))

	tests := []struct {
		name    string
		command string
		stdin   string
		stdout  string
		stderr  string
		code    int
	}{
		{name: "echo", command: "echo hi", stdout: "hi\n"},
		{name: "echo to stderr", command: "echo oops >&2", stderr: "oops\n"},
		{name: "cat", command: "cat", stdin: "piped", stdout: "piped"},
		{name: "exit", command: "exit 3", code: 3},
		{name: "false", command: "false", code: 1},
		{name: "sh -c", command: "sh -c 'echo nested'", stdout: "nested\n"},
		{name: "unknown", command: "frobnicate", stderr: "sh: frobnicate: command not found\n", code: 127},
	}

	t.Cleanup(func() {
		assert.Len(t, s.Commands(), len(tests))
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess, err := client.NewSession()
			require.NoError(t, err)

			defer func() { _ = sess.Close() }()

			var stdout, stderr bytes.Buffer
			sess.Stdout = &stdout
			sess.Stderr = &stderr
			sess.Stdin = strings.NewReader(tt.stdin)

			err = sess.Run(tt.command)
			if tt.code == 0 {
				require.NoError(t, err)
			} else {
				var exitErr *ssh.ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tt.code, exitErr.ExitStatus())
			}

			assert.Equal(t, tt.stdout, stdout.String())
			assert.Equal(t, tt.stderr, stderr.String())
		})
	}
}

func TestServer_ExecWithoutStatus(t *testing.T) {
	t.Parallel()

	s := New(t, Options{
		Password: "secret",
		Exec:     func(context.Context, ExecRequest) int { return -1 },
	})
	client := dial(t, s, ssh.Password("secret"))

	sess, err := client.NewSession()
	require.NoError(t, err)

	var missing *ssh.ExitMissingError
	require.ErrorAs(t, sess.Run("anything"), &missing)
}

func TestServer_SFTP(t *testing.T) {
	t.Parallel()

	s := New(t, Options{Password: "secret"})
	client := dial(t, s, ssh.Password("secret"))

	fs, err := sftp.NewClient(client)
	require.NoError(t, err)

	defer func() { _ = fs.Close() }()

	require.NoError(t, fs.Mkdir("/data"))

	f, err := fs.Create("/data/hello.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = fs.Open("/data/hello.txt")
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, f.Close())

	info, err := fs.Stat("data")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestServer_Close(t *testing.T) {
	t.Parallel()

	s, err := Start(Options{Password: "secret"})
	require.NoError(t, err)

	client, err := ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            "tester",
		Auth:            []ssh.AuthMethod{ssh.Password("secret")},
		HostKeyCallback: ssh.FixedHostKey(s.HostKey()),
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// Returns once the server drops the connection.
	_ = client.Wait()

	_, err = client.NewSession()
	require.Error(t, err)
}

func loadSigner(t *testing.T, path, passphrase string) ssh.Signer {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var signer ssh.Signer

	if passphrase == "" {
		signer, err = ssh.ParsePrivateKey(data)
	} else {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}

	require.NoError(t, err)

	return signer
}
