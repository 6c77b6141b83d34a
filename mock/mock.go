package mock

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/ruffel/russh"
)

// Session implements a mock russh.Session using testify/mock.
type Session struct {
	mock.Mock
}

var _ russh.Session = (*Session)(nil)

// NewSession creates a new mock session.
func NewSession() *Session {
	return &Session{}
}

// ExecCommand mocks starting a command.
func (m *Session) ExecCommand(ctx context.Context, command string) (russh.Channel, error) {
	args := m.Called(ctx, command)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(russh.Channel), args.Error(1)
}

// Run mocks running a command to completion.
func (m *Session) Run(ctx context.Context, command string) (*russh.Result, error) {
	args := m.Called(ctx, command)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*russh.Result), args.Error(1)
}

// OpenSFTP mocks opening an SFTP session.
func (m *Session) OpenSFTP(ctx context.Context) (russh.FileSystem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(russh.FileSystem), args.Error(1)
}

// Close mocks closing the session.
func (m *Session) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Channel implements a mock russh.Channel using testify/mock.
type Channel struct {
	mock.Mock
}

var _ russh.Channel = (*Channel)(nil)

// NewChannel returns a channel that reports the given output and exit code once
// each, like a finished remote command.
func NewChannel(stdout, stderr string, code int) *Channel {
	m := &Channel{}
	m.On("ReadStdout").Return(stdout, nil).Once()
	m.On("ReadStdout").Return("", nil)
	m.On("ReadStderr").Return(stderr, nil).Once()
	m.On("ReadStderr").Return("", nil)
	m.On("ExitStatus").Return(code, nil).Once()
	m.On("ExitStatus").Return(0, nil)
	m.On("WriteStdin", mock.Anything).Return(nil)
	m.On("Close").Return(nil)

	return m
}

// WriteStdin mocks writing stdin.
func (m *Channel) WriteStdin(data string) error {
	args := m.Called(data)

	return args.Error(0)
}

// ReadStdout mocks draining stdout.
func (m *Channel) ReadStdout() (string, error) {
	args := m.Called()

	return args.String(0), args.Error(1)
}

// ReadStderr mocks draining stderr.
func (m *Channel) ReadStderr() (string, error) {
	args := m.Called()

	return args.String(0), args.Error(1)
}

// ExitStatus mocks waiting for the exit status.
func (m *Channel) ExitStatus() (int, error) {
	args := m.Called()

	return args.Int(0), args.Error(1)
}

// Close mocks closing the channel.
func (m *Channel) Close() error {
	args := m.Called()

	return args.Error(0)
}

// FileSystem implements a mock russh.FileSystem using testify/mock.
type FileSystem struct {
	mock.Mock
}

var _ russh.FileSystem = (*FileSystem)(nil)

// NewFileSystem creates a new mock filesystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{}
}

// Chdir mocks setting the working directory.
func (m *FileSystem) Chdir(dir string) error {
	args := m.Called(dir)

	return args.Error(0)
}

// Getcwd mocks reading the working directory.
func (m *FileSystem) Getcwd() (string, bool) {
	args := m.Called()

	return args.String(0), args.Bool(1)
}

// Mkdir mocks creating a directory.
func (m *FileSystem) Mkdir(dir string, opts ...russh.FileOption) error {
	// Variadic capture fix for testify
	args := m.Called(dir, opts)

	return args.Error(0)
}

// Remove mocks deleting a file.
func (m *FileSystem) Remove(path string) error {
	args := m.Called(path)

	return args.Error(0)
}

// Rmdir mocks deleting a directory.
func (m *FileSystem) Rmdir(dir string) error {
	args := m.Called(dir)

	return args.Error(0)
}

// Stat mocks reading file information.
func (m *FileSystem) Stat(path string) (os.FileInfo, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(os.FileInfo), args.Error(1)
}

// ListDir mocks listing a directory.
func (m *FileSystem) ListDir(dir string) ([]string, error) {
	args := m.Called(dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

// Open mocks opening a remote file.
func (m *FileSystem) Open(name, mode string) (russh.File, error) {
	args := m.Called(name, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(russh.File), args.Error(1)
}

// File mocks the Open alias.
func (m *FileSystem) File(name, mode string) (russh.File, error) {
	args := m.Called(name, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(russh.File), args.Error(1)
}

// Get mocks downloading a file.
func (m *FileSystem) Get(ctx context.Context, remotePath, localPath string, opts ...russh.FileOption) error {
	args := m.Called(ctx, remotePath, localPath, opts)

	return args.Error(0)
}

// Put mocks uploading a file.
func (m *FileSystem) Put(ctx context.Context, localPath, remotePath string, opts ...russh.FileOption) error {
	args := m.Called(ctx, localPath, remotePath, opts)

	return args.Error(0)
}

// IsClosed mocks reporting the closed state.
func (m *FileSystem) IsClosed() bool {
	args := m.Called()

	return args.Bool(0)
}

// Close mocks closing the filesystem.
func (m *FileSystem) Close() error {
	args := m.Called()

	return args.Error(0)
}

// File implements a mock russh.File using testify/mock.
type File struct {
	mock.Mock
}

var _ russh.File = (*File)(nil)

// Read mocks reading from the file.
func (m *File) Read(p []byte) (int, error) {
	args := m.Called(p)

	return args.Int(0), args.Error(1)
}

// Write mocks writing to the file.
func (m *File) Write(p []byte) (int, error) {
	args := m.Called(p)

	return args.Int(0), args.Error(1)
}

// Seek mocks moving the file offset.
func (m *File) Seek(offset int64, whence int) (int64, error) {
	args := m.Called(offset, whence)

	return args.Get(0).(int64), args.Error(1)
}

// Name mocks returning the file name.
func (m *File) Name() string {
	args := m.Called()

	return args.String(0)
}

// Stat mocks reading file information.
func (m *File) Stat() (os.FileInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(os.FileInfo), args.Error(1)
}

// Close mocks closing the file.
func (m *File) Close() error {
	args := m.Called()

	return args.Error(0)
}
