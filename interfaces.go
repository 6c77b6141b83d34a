// Package russh is an SSH client with SFTP support built on golang.org/x/crypto/ssh
// and github.com/pkg/sftp.
//
// # Core Types
//
//   - SSHClient: owns one connection and authenticated session (New, Connected, Closed).
//   - ExecOutput: one remote command with one-shot stdin/stdout/stderr and an exit status.
//   - SFTPClient: an SFTP sub-session with an emulated working directory.
//
// # Authentication
//
// Credentials are tried password first, then private key, stopping at the first
// success. Network failures abort immediately; rejected credentials fall
// through to the next one. When everything is rejected the error from the last
// attempt is the cause.
//
// # One-shot streams
//
// Every stream of an ExecOutput is consumed exactly once. Reading it again
// returns "" and asking for the exit status again returns 0. ExitStatus closes
// the channel, so read stdout and stderr first.
//
// Usage:
//
//	client := russh.NewClient()
//	defer func() { _ = client.Close() }()
//
//	auth := russh.Auth(russh.NewPasswordAuth("secret"))
//	err := client.Connect(ctx, "example.com", "user", auth, russh.WithKnownHosts(russh.DefaultKnownHostsPath()))
package russh

import (
	"context"
	"io"
	"os"
)

// Session is an authenticated connection that can run commands and open SFTP sessions.
type Session interface {
	io.Closer

	// ExecCommand starts command and returns without waiting for it to finish.
	// Output is pulled through the returned Channel.
	ExecCommand(ctx context.Context, command string) (Channel, error)

	// Run executes command to completion and captures its output.
	// A non-zero exit code is reported in the Result, not as an error.
	Run(ctx context.Context, command string) (*Result, error)

	// OpenSFTP starts an SFTP sub-session on the same transport.
	OpenSFTP(ctx context.Context) (FileSystem, error)
}

// Channel is one remote command execution.
type Channel interface {
	io.Closer

	// WriteStdin sends data followed by EOF. Later calls are ignored.
	WriteStdin(data string) error

	// ReadStdout blocks until stdout reaches EOF and returns all of it, once.
	ReadStdout() (string, error)

	// ReadStderr blocks until stderr reaches EOF and returns all of it, once.
	ReadStderr() (string, error)

	// ExitStatus waits for the command and closes the channel. Later calls return 0.
	ExitStatus() (int, error)
}

// FileSystem is an SFTP session.
type FileSystem interface {
	io.Closer

	Chdir(dir string) error
	Getcwd() (string, bool)
	Mkdir(dir string, opts ...FileOption) error
	Remove(path string) error
	Rmdir(dir string) error
	Stat(path string) (os.FileInfo, error)
	ListDir(dir string) ([]string, error)
	Open(name, mode string) (File, error)
	File(name, mode string) (File, error)
	Get(ctx context.Context, remotePath, localPath string, opts ...FileOption) error
	Put(ctx context.Context, localPath, remotePath string, opts ...FileOption) error
	IsClosed() bool
}

// File is an open remote file.
type File interface {
	io.ReadWriteSeeker
	io.Closer

	Name() string
	Stat() (os.FileInfo, error)
}
