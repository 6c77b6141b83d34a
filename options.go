package russh

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/ruffel/russh/fileutil"
)

// Option defines a functional option for Connect.
type Option func(*Config)

// WithConfig returns an Option that replaces the whole Config.
// Host, user and credentials passed to Connect still take precedence.
func WithConfig(c Config) Option {
	return func(cfg *Config) {
		*cfg = c
	}
}

// WithPort sets the SSH port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithTimeout bounds the TCP dial and the SSH handshake.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHostKeyCallback sets the host key verification callback.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(c *Config) {
		c.HostKeyCheck = cb
	}
}

// WithKnownHosts verifies host keys against the given known_hosts file.
func WithKnownHosts(path string) Option {
	return func(c *Config) {
		c.KnownHostsPath = path
	}
}

// WithInsecureSkipVerify enables/disables strict host key checking.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Config) {
		c.InsecureSkipVerify = skip
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = &l
	}
}

// ProgressFunc is a callback for tracking file transfer progress.
type ProgressFunc = fileutil.ProgressFunc

// FileConfig holds configuration for SFTP file operations.
type FileConfig struct {
	Permissions    os.FileMode // Destination perms, applied when SetPermissions is true
	SetPermissions bool
	UID, GID       int // Destination ownership, applied when SetOwner is true
	SetOwner       bool
	Progress       ProgressFunc
}

// FileOption defines a functional option for SFTP file operations.
type FileOption func(*FileConfig)

func newFileConfig(opts []FileOption) FileConfig {
	var cfg FileConfig
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

// WithPermissions forces a specific destination mode. A zero mode is applied as given.
func WithPermissions(mode os.FileMode) FileOption {
	return func(c *FileConfig) {
		c.Permissions = mode
		c.SetPermissions = true
	}
}

// WithOwner forces specific destination ownership on uploads.
func WithOwner(uid, gid int) FileOption {
	return func(c *FileConfig) {
		c.UID = uid
		c.GID = gid
		c.SetOwner = true
	}
}

// WithProgress calls fn with progress updates.
func WithProgress(fn ProgressFunc) FileOption {
	return func(c *FileConfig) {
		c.Progress = fn
	}
}
