package russh

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/pkg/sftp"
)

var _ File = (*RemoteFile)(nil)

// RemoteFile is a file opened through an SFTPClient.
type RemoteFile struct {
	mu     sync.Mutex
	file   *sftp.File
	name   string
	closed bool
}

func newRemoteFile(f *sftp.File, name string) *RemoteFile {
	return &RemoteFile{file: f, name: name}
}

// Name returns the resolved remote path.
func (f *RemoteFile) Name() string {
	return f.name
}

// Read reads up to len(p) bytes. It returns io.EOF itself at end of file.
func (f *RemoteFile) Read(p []byte) (int, error) {
	file, err := f.active("read")
	if err != nil {
		return 0, err
	}

	n, err := file.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, sftpError("read", f.name, err)
	}

	return n, err //nolint:wrapcheck // io.EOF must reach callers unwrapped
}

// Write writes p at the current offset.
func (f *RemoteFile) Write(p []byte) (int, error) {
	file, err := f.active("write")
	if err != nil {
		return 0, err
	}

	n, err := file.Write(p)
	if err != nil {
		return n, sftpError("write", f.name, err)
	}

	return n, nil
}

// Seek sets the offset for the next Read or Write.
func (f *RemoteFile) Seek(offset int64, whence int) (int64, error) {
	file, err := f.active("seek")
	if err != nil {
		return 0, err
	}

	pos, err := file.Seek(offset, whence)
	if err != nil {
		return pos, sftpError("seek", f.name, err)
	}

	return pos, nil
}

// Stat returns the file's attributes.
func (f *RemoteFile) Stat() (os.FileInfo, error) {
	file, err := f.active("stat")
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		return nil, sftpError("stat", f.name, err)
	}

	return info, nil
}

// Truncate changes the size of the file.
func (f *RemoteFile) Truncate(size int64) error {
	file, err := f.active("truncate")
	if err != nil {
		return err
	}

	if err := file.Truncate(size); err != nil {
		return sftpError("truncate", f.name, err)
	}

	return nil
}

// Close closes the file. Calling it again is a no-op.
func (f *RemoteFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true

	if err := f.file.Close(); err != nil && !errors.Is(err, io.EOF) {
		return sftpError("close", f.name, err)
	}

	return nil
}

func (f *RemoteFile) active(op string) (*sftp.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, newError(KindSFTP, op, f.name+": file is closed", nil)
	}

	return f.file, nil
}
