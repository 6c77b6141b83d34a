package russh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ruffel/russh/logging"
)

var _ Session = (*SSHClient)(nil)

// dialFunc opens the TCP connection an SSH handshake runs over.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// SSHClient owns one SSH connection and its authenticated session.
// It is meant for single-owner use; Close is safe to call from deferred cleanup.
type SSHClient struct {
	mu        sync.Mutex
	state     State
	config    Config
	transport *transport
	method    Method
	log       zerolog.Logger
	dial      dialFunc
}

// NewClient returns a client in StateNew. opts seed the configuration used by
// every later Connect.
func NewClient(opts ...Option) *SSHClient {
	c := &SSHClient{
		log:  logging.Component("russh"),
		dial: (&net.Dialer{}).DialContext,
	}

	for _, o := range opts {
		o(&c.config)
	}

	return c
}

// Connect establishes an authenticated session with host.
//
// Credentials in auth are tried password first. A network failure aborts with a
// connection error without trying the remaining credentials. Calling Connect
// again while connected replaces the session; channels and SFTP sessions
// opened earlier keep the old transport alive until they are closed.
func (c *SSHClient) Connect(ctx context.Context, host, username string, auth AuthMethods, opts ...Option) error {
	c.mu.Lock()
	cfg := c.config
	c.mu.Unlock()

	for _, o := range opts {
		o(&cfg)
	}

	cfg.Host = host
	cfg.User = username
	cfg.Auth = auth

	return c.ConnectConfig(ctx, cfg)
}

// ConnectConfig establishes an authenticated session described by cfg.
func (c *SSHClient) ConnectConfig(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	closed := c.state == StateClosed
	c.mu.Unlock()

	if closed {
		return newError(KindSession, "connect", "client is closed", nil)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Auth.Empty() {
		return errNoCredentials()
	}

	hostKey, err := cfg.hostKeyCallback()
	if err != nil {
		return err
	}

	log := c.logger(cfg)

	handshake := func(ctx context.Context, method ssh.AuthMethod) (*ssh.Client, error) {
		return c.handshake(ctx, cfg, hostKey, method)
	}

	client, method, err := selectAuth(ctx, cfg.Auth, handshake, log)
	if err != nil {
		log.Debug().Err(err).Msg("connect failed")

		return err
	}

	c.mu.Lock()

	if c.state == StateClosed {
		c.mu.Unlock()

		_ = client.Close()

		return newError(KindSession, "connect", "client was closed while connecting", nil)
	}

	old := c.transport
	c.transport = newTransport(client, log)
	c.config = cfg
	c.method = method
	c.state = StateConnected
	c.log = log
	c.mu.Unlock()

	if old != nil {
		old.retire()
	}

	log.Debug().Str("method", method.String()).Msg("session established")

	return nil
}

// handshake dials cfg's address and runs an SSH handshake offering only method.
func (c *SSHClient) handshake(ctx context.Context, cfg Config, hostKey ssh.HostKeyCallback, method ssh.AuthMethod) (*ssh.Client, error) {
	addr := cfg.Address()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := c.dial(dialCtx, "tcp", addr)
	if err != nil {
		rErr := newError(KindConnection, "connect", "can't reach "+addr, err)
		rErr.Suggestion = suggestionForDialError(err)

		return nil, rErr
	}

	deadline := time.Now().Add(cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg.clientConfig(hostKey, method))
	if !stop() {
		if err == nil {
			_ = sshConn.Close()
		}

		return nil, newError(KindConnection, "connect", "connect canceled", ctx.Err())
	}

	if err != nil {
		_ = conn.Close()

		if isAuthFailure(err) {
			return nil, err
		}

		rErr := newError(KindConnection, "connect", fmt.Sprintf("ssh handshake with %s failed", addr), err)

		var (
			mismatch *HostKeyMismatchError
			keyErr   *knownhosts.KeyError
		)

		switch {
		case errors.As(err, &mismatch):
			rErr.Suggestion = mismatch.Suggestion()
		case errors.As(err, &keyErr) && cfg.HostKeyCheck == nil:
			rErr.Suggestion = unknownHostSuggestion(cfg.Host, cfg.Port, cfg.KnownHostsPath)
		}

		return nil, rErr
	}

	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// ExecCommand opens a channel and starts command on it. The command runs until
// it exits, ExitStatus or Close is called, or ctx is canceled.
func (c *SSHClient) ExecCommand(ctx context.Context, command string) (Channel, error) {
	t, log, err := c.acquire("exec")
	if err != nil {
		return nil, err
	}

	sess, err := t.client.NewSession()
	if err != nil {
		t.release()

		return nil, newError(KindSession, "exec", "failed to open channel", err)
	}

	out, err := startExec(ctx, sess, command, t.release)
	if err != nil {
		_ = sess.Close()

		t.release()

		return nil, err
	}

	log.Debug().Str("command", logging.Redact(command)).Msg("command started")

	return out, nil
}

// Run executes command and collects its output. A non-zero exit code is not an error.
func (c *SSHClient) Run(ctx context.Context, command string) (*Result, error) {
	start := time.Now()

	ch, err := c.ExecCommand(ctx, command)
	if err != nil {
		return nil, err
	}

	defer func() { _ = ch.Close() }()

	return drain(ch, "", start)
}

// OpenSFTP starts an SFTP sub-session on the current transport.
func (c *SSHClient) OpenSFTP(ctx context.Context) (FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindSFTP, "open_sftp", "canceled", err)
	}

	t, log, err := c.acquire("open_sftp")
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(t.client)
	if err != nil {
		t.release()

		return nil, newError(KindSFTP, "open_sftp", "failed to start sftp subsystem", err)
	}

	log.Debug().Msg("sftp session opened")

	return newSFTPClient(client, t.release, log), nil
}

// State returns the client's lifecycle state.
func (c *SSHClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Session describes the current session.
func (c *SSHClient) Session() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := SessionInfo{
		Host:   c.config.Host,
		Port:   c.config.Port,
		User:   c.config.User,
		Method: c.method,
	}

	switch c.state {
	case StateConnected:
		info.AuthState = Authenticated
	case StateClosed:
		info.AuthState = SessionClosed
	case StateNew:
		info.AuthState = Unauthenticated
	}

	return info
}

// Close releases the transport. Channels and SFTP sessions still open on it stop working.
func (c *SSHClient) Close() error {
	c.mu.Lock()

	if c.state == StateClosed {
		c.mu.Unlock()

		return nil
	}

	c.state = StateClosed
	t := c.transport
	c.transport = nil
	log := c.log
	c.mu.Unlock()

	if t == nil {
		return nil
	}

	log.Debug().Msg("session closed")

	if err := t.close(); err != nil {
		return newError(KindSession, "close", "failed to close transport", err)
	}

	return nil
}

func (c *SSHClient) acquire(op string) (*transport, zerolog.Logger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateNew:
		return nil, c.log, newError(KindSession, op, "not connected", nil)
	case StateClosed:
		return nil, c.log, newError(KindSession, op, "client is closed", nil)
	case StateConnected:
	}

	if c.transport == nil || !c.transport.acquire() {
		return nil, c.log, newError(KindSession, op, "transport is closed", nil)
	}

	return c.transport, c.log, nil
}

func (c *SSHClient) logger(cfg Config) zerolog.Logger {
	base := c.log
	if cfg.Logger != nil {
		base = *cfg.Logger
	}

	return logging.WithHost(base, cfg.Address())
}

// transport is an *ssh.Client shared by every channel and SFTP session opened on it.
type transport struct {
	mu      sync.Mutex
	client  *ssh.Client
	active  int
	retired bool
	closed  bool
	log     zerolog.Logger
}

func newTransport(client *ssh.Client, log zerolog.Logger) *transport {
	return &transport{client: client, log: log}
}

func (t *transport) acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.retired {
		return false
	}

	t.active++

	return true
}

// release drops one reference. A retired transport closes with its last reference.
func (t *transport) release() {
	t.mu.Lock()

	if t.active > 0 {
		t.active--
	}

	last := t.retired && t.active == 0 && !t.closed
	if last {
		t.closed = true
	}

	t.mu.Unlock()

	if last {
		_ = t.client.Close()

		t.log.Debug().Msg("retired transport released")
	}
}

// retire stops new acquisitions and closes the transport once nothing uses it.
func (t *transport) retire() {
	t.mu.Lock()

	t.retired = true

	idle := t.active == 0 && !t.closed
	if idle {
		t.closed = true
	}

	t.mu.Unlock()

	if idle {
		_ = t.client.Close()

		t.log.Debug().Msg("retired transport released")
	}
}

// close shuts the transport down regardless of outstanding references.
func (t *transport) close() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()

		return nil
	}

	t.closed = true
	t.mu.Unlock()

	err := t.client.Close()
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}

	return err
}
