package russh

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	// DefaultPort is the SSH port used when none is configured.
	DefaultPort = 22
	// DefaultTimeout bounds the TCP dial and the SSH handshake.
	DefaultTimeout = 30 * time.Second
)

// Config holds all parameters required to establish an SSH session.
type Config struct {
	// Connection details
	Host string // Hostname or IP address
	Port int    // Port number (default 22)
	User string // Username to authenticate as

	// Credentials, tried password first
	Auth AuthMethods

	// Connection settings
	Timeout            time.Duration       // Dial + handshake timeout (default 30s)
	HostKeyCheck       ssh.HostKeyCallback // Callback to verify host key. You normally generate this from known_hosts.
	InsecureSkipVerify bool                // If true, disables strict host key checking. Use ONLY for testing.
	KnownHostsPath     string              // known_hosts file used when HostKeyCheck is nil and verification is on

	Logger *zerolog.Logger // Defaults to logging.Component("russh")
}

// NewConfig creates a Config with the default port and timeout.
// Host keys are verified against ~/.ssh/known_hosts unless HostKeyCheck,
// KnownHostsPath or InsecureSkipVerify say otherwise.
func NewConfig(host, username string, auth AuthMethods) Config {
	return Config{
		Host:    host,
		User:    username,
		Auth:    auth,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// NewFromSSHConfig loads configuration for alias from an OpenSSH client config file.
// An empty path reads ~/.ssh/config.
func NewFromSSHConfig(alias, path string) (Config, error) {
	if path == "" {
		path = filepath.Join(homeDir(), ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, newError(KindLibrary, "ssh-config", "failed to open ssh config", err)
	}

	defer func() { _ = f.Close() }()

	return NewFromSSHConfigReader(alias, f)
}

// NewFromSSHConfigReader resolves alias to HostName, User, Port and IdentityFile.
// An IdentityFile becomes the PrivateKey credential.
func NewFromSSHConfigReader(alias string, r io.Reader) (Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return Config{}, newError(KindLibrary, "ssh-config", "failed to parse ssh config", err)
	}

	hostName, err := cfg.Get(alias, "HostName")
	if err != nil || hostName == "" {
		hostName = alias
	}

	username, _ := cfg.Get(alias, "User")
	if username == "" {
		username = currentUser()
	}

	port := DefaultPort

	if portStr, _ := cfg.Get(alias, "Port"); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return Config{}, newError(KindLibrary, "ssh-config", fmt.Sprintf("invalid port %q for host %s", portStr, alias), err)
		}
	}

	c := NewConfig(hostName, username, AuthMethods{})
	c.Port = port

	if identityFile, _ := cfg.Get(alias, "IdentityFile"); identityFile != "" {
		key := NewPrivateKeyAuth(expandHome(identityFile))
		c.Auth.PrivateKey = &key
	}

	if timeout, _ := cfg.Get(alias, "ConnectTimeout"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			c.Timeout = time.Duration(secs) * time.Second
		}
	}

	if strict, _ := cfg.Get(alias, "StrictHostKeyChecking"); strict == "no" {
		c.InsecureSkipVerify = true
	}

	if knownHosts, _ := cfg.Get(alias, "UserKnownHostsFile"); knownHosts != "" && knownHosts != "/dev/null" {
		c.KnownHostsPath = expandHome(strings.Fields(knownHosts)[0])
	}

	return c, nil
}

// WithDefaults sets default values for zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	// If insecure is requested and no callback provided, use insecure ignore.
	if c.InsecureSkipVerify && c.HostKeyCheck == nil {
		c.HostKeyCheck = ssh.InsecureIgnoreHostKey() //nolint:gosec // caller explicitly disabled verification
	}

	// Otherwise verify against the user's known_hosts.
	if c.HostKeyCheck == nil && c.KnownHostsPath == "" {
		c.KnownHostsPath = DefaultKnownHostsPath()
	}

	return c
}

// Validate ensures all required fields are present.
func (c Config) Validate() error {
	if c.Host == "" {
		return newError(KindLibrary, "connect", "host address cannot be empty", nil)
	}

	if c.User == "" {
		return newError(KindLibrary, "connect", "user cannot be empty", nil)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return newError(KindLibrary, "connect", fmt.Sprintf("port %d out of range", c.Port), nil)
	}

	if c.Timeout < 0 {
		return newError(KindLibrary, "connect", "timeout cannot be negative", nil)
	}

	if c.HostKeyCheck == nil && c.KnownHostsPath == "" {
		err := newError(KindLibrary, "connect", "no host key verification configured", nil)
		err.Suggestion = "Set HostKeyCheck or KnownHostsPath (e.g. DefaultKnownHostsPath()), or InsecureSkipVerify=true for testing."

		return err
	}

	return nil
}

// Address returns the host:port string for dialing.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// hostKeyCallback returns the configured callback, loading known_hosts when needed.
// A missing default known_hosts file counts as empty, so every host is unknown.
func (c Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.HostKeyCheck != nil {
		return c.HostKeyCheck, nil
	}

	cb, err := knownhosts.New(c.KnownHostsPath)
	if errors.Is(err, fs.ErrNotExist) && c.KnownHostsPath == DefaultKnownHostsPath() {
		cb, err = knownhosts.New()
	}

	if err != nil {
		return nil, newError(KindLibrary, "connect", "failed to load known_hosts", err)
	}

	return wrapKnownHosts(cb, c.KnownHostsPath), nil
}

// clientConfig builds the x/crypto config for one attempt offering a single method.
func (c Config) clientConfig(hostKey ssh.HostKeyCallback, method ssh.AuthMethod) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{method},
		HostKeyCallback: hostKey,
		Timeout:         c.Timeout,
	}
}

// DefaultKnownHostsPath returns ~/.ssh/known_hosts.
func DefaultKnownHostsPath() string {
	return filepath.Join(homeDir(), ".ssh", "known_hosts")
}

// DefaultKnownHosts returns a HostKeyCallback that verifies the host key against
// the user's ~/.ssh/known_hosts file.
func DefaultKnownHosts() (ssh.HostKeyCallback, error) {
	path := DefaultKnownHostsPath()

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return wrapKnownHosts(cb, path), nil
}

// HostKeyMismatchError is returned when the server key does not match known_hosts.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns the commands that fix the mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	return fmt.Sprintf("If the key change is expected, remove the old entry: ssh-keygen -R %s -f %s", host, e.KnownHosts)
}

func unknownHostSuggestion(host string, port int, path string) string {
	return fmt.Sprintf("The host key is not in %s. Add it with: ssh-keyscan -p %d %s >> %s", path, port, host, path)
}

func wrapKnownHosts(cb ssh.HostKeyCallback, path string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)

		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   path,
				Want:         keyErr.Want,
			}
		}

		return err
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}

	return home
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u != nil {
		return u.Username
	}

	return os.Getenv("USER")
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}

	return path
}
