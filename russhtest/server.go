// Package russhtest runs an in-process SSH server for tests.
//
// The server accepts password and public-key logins, answers exec requests
// with a tiny built-in command set (or a custom ExecHandler) and serves the
// sftp subsystem from an in-memory filesystem.
package russhtest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Options configures a Server.
type Options struct {
	// Password accepted for any user. Empty rejects every password.
	Password string

	// AuthorizedKeys are accepted for any user.
	AuthorizedKeys []ssh.PublicKey

	// Exec answers exec requests. Defaults to Builtin.
	Exec ExecHandler

	// Handlers serve the sftp subsystem. Defaults to one sftp.InMemHandler
	// shared by every connection.
	Handlers *sftp.Handlers

	// Logger receives server-side diagnostics. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// AuthAttempt records one authentication callback.
type AuthAttempt struct {
	User     string
	Method   string // "password" or "publickey"
	Accepted bool
}

// Server is a running test server.
type Server struct {
	opts     Options
	listener net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.PublicKey
	handlers sftp.Handlers
	log      zerolog.Logger

	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc

	mu       sync.Mutex
	auth     []AuthAttempt
	commands []string
	conns    map[net.Conn]struct{}
	accepted int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Start listens on a random loopback port and serves until Close.
func Start(opts Options) (*Server, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create host key signer: %w", err)
	}

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	if opts.Exec == nil {
		opts.Exec = Builtin
	}

	handlers := sftp.InMemHandler()
	if opts.Handlers != nil {
		handlers = *opts.Handlers
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		opts:     opts,
		listener: ln,
		hostKey:  signer.PublicKey(),
		handlers: handlers,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}

	s.config = &ssh.ServerConfig{
		PasswordCallback:  s.checkPassword,
		PublicKeyCallback: s.checkPublicKey,
	}
	s.config.AddHostKey(signer)

	s.wg.Add(1)

	go s.acceptLoop()

	return s, nil
}

// New starts a server and closes it when the test ends.
func New(t testing.TB, opts Options) *Server {
	t.Helper()

	s, err := Start(opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening IP address.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())

	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)

	return n
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey
}

// KnownHostsLine returns a known_hosts entry for the server.
func (s *Server) KnownHostsLine() string {
	return knownhosts.Line([]string{knownhosts.Normalize(s.Addr())}, s.hostKey)
}

// AuthLog returns every authentication callback seen so far, in order.
func (s *Server) AuthLog() []AuthAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]AuthAttempt(nil), s.auth...)
}

// Commands returns every exec command received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// Connections returns how many TCP connections the server has accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accepted
}

// Close stops the listener and drops every open connection.
func (s *Server) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.cancel()
		err = s.listener.Close()

		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
	})

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func (s *Server) checkPassword(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	ok := s.opts.Password != "" && subtle.ConstantTimeCompare(password, []byte(s.opts.Password)) == 1
	s.recordAuth(meta.User(), "password", ok)

	if !ok {
		return nil, fmt.Errorf("password rejected for %q", meta.User())
	}

	return &ssh.Permissions{}, nil
}

func (s *Server) checkPublicKey(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	marshaled := key.Marshal()

	for _, k := range s.opts.AuthorizedKeys {
		if subtle.ConstantTimeCompare(k.Marshal(), marshaled) == 1 {
			s.recordAuth(meta.User(), "publickey", true)

			return &ssh.Permissions{}, nil
		}
	}

	s.recordAuth(meta.User(), "publickey", false)

	return nil, fmt.Errorf("unknown public key for %q", meta.User())
}

func (s *Server) recordAuth(user, method string, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auth = append(s.auth, AuthAttempt{User: user, Method: method, Accepted: accepted})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()

		if s.ctx.Err() != nil {
			s.mu.Unlock()
			_ = conn.Close()

			return
		}

		s.conns[conn] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	defer func() {
		_ = conn.Close()

		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		s.log.Debug().Err(err).Msg("handshake failed")

		return
	}

	defer func() { _ = sshConn.Close() }()

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unknown channel type")

			continue
		}

		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}

		go s.handleSession(ch, chReqs)
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	started := false

	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if started || ssh.Unmarshal(req.Payload, &payload) != nil {
				_ = req.Reply(false, nil)

				continue
			}

			started = true
			_ = req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			go s.runExec(ctx, ch, payload.Command)
		case "subsystem":
			var payload struct{ Name string }
			if started || ssh.Unmarshal(req.Payload, &payload) != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)

				continue
			}

			started = true
			_ = req.Reply(true, nil)

			go s.serveSFTP(ch)
		case "signal":
			cancel()

			if req.WantReply {
				_ = req.Reply(true, nil)
			}
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}

	if !started {
		_ = ch.Close()
	}
}

func (s *Server) runExec(ctx context.Context, ch ssh.Channel, command string) {
	defer func() { _ = ch.Close() }()

	code := s.opts.Exec(ctx, ExecRequest{
		Command: command,
		Stdin:   ch,
		Stdout:  ch,
		Stderr:  ch.Stderr(),
	})

	if code < 0 {
		return
	}

	status := struct{ Status uint32 }{Status: uint32(code)} //nolint:gosec // code is non-negative
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
}

func (s *Server) serveSFTP(ch ssh.Channel) {
	server := sftp.NewRequestServer(ch, s.handlers)

	if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
		s.log.Debug().Err(err).Msg("sftp server stopped")
	}

	_ = server.Close()
}
