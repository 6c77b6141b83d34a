package russh

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"

	"github.com/ruffel/russh/fileutil"
)

var _ FileSystem = (*SFTPClient)(nil)

// SFTPClient is an SFTP sub-session. SFTP has no working directory of its own,
// so Chdir only records an absolute path that later relative paths are joined to.
type SFTPClient struct {
	mu      sync.Mutex
	client  *sftp.Client
	cwd     string
	closed  bool
	release func()
	log     zerolog.Logger
}

func newSFTPClient(client *sftp.Client, release func(), log zerolog.Logger) *SFTPClient {
	return &SFTPClient{
		client:  client,
		release: release,
		log:     log,
	}
}

// Chdir sets the working directory used to resolve relative paths. dir must be
// absolute and is not checked on the server. An empty dir clears it, after
// which relative paths go to the server unchanged.
func (s *SFTPClient) Chdir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir == "" {
		s.cwd = ""
		return nil
	}

	if s.closed {
		return errSFTPClosed("chdir")
	}

	if !fileutil.IsRemoteAbs(dir) {
		return newError(KindSFTP, "chdir", fmt.Sprintf("%q: only absolute paths are supported", dir), nil)
	}

	s.cwd = path.Clean(dir)

	return nil
}

// Getcwd returns the working directory and whether one is set.
func (s *SFTPClient) Getcwd() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cwd, s.cwd != ""
}

// Mkdir creates dir. The request carries no mode, so the server's default
// applies (0o777 less umask on OpenSSH). WithPermissions chmods the new
// directory to exactly that mode.
func (s *SFTPClient) Mkdir(dir string, opts ...FileOption) error {
	client, p, err := s.resolve("mkdir", dir)
	if err != nil {
		return err
	}

	cfg := newFileConfig(opts)

	if err := client.Mkdir(p); err != nil {
		return sftpError("mkdir", p, err)
	}

	if cfg.SetPermissions {
		if err := client.Chmod(p, cfg.Permissions); err != nil {
			return sftpError("mkdir", p, err)
		}
	}

	s.log.Debug().Str("path", p).Msg("directory created")

	return nil
}

// Remove deletes a file.
func (s *SFTPClient) Remove(name string) error {
	client, p, err := s.resolve("remove", name)
	if err != nil {
		return err
	}

	if err := client.Remove(p); err != nil {
		return sftpError("remove", p, err)
	}

	return nil
}

// Rmdir deletes an empty directory.
func (s *SFTPClient) Rmdir(dir string) error {
	client, p, err := s.resolve("rmdir", dir)
	if err != nil {
		return err
	}

	if err := client.RemoveDirectory(p); err != nil {
		return sftpError("rmdir", p, err)
	}

	return nil
}

// Stat returns file information for name.
func (s *SFTPClient) Stat(name string) (os.FileInfo, error) {
	client, p, err := s.resolve("stat", name)
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(p)
	if err != nil {
		return nil, sftpError("stat", p, err)
	}

	return info, nil
}

// ListDir returns the sorted entry names of dir. An empty dir lists the
// working directory, or the server's default directory when none is set.
func (s *SFTPClient) ListDir(dir string) ([]string, error) {
	client, p, err := s.resolve("listdir", dir)
	if err != nil {
		return nil, err
	}

	if p == "" {
		p = "."
	}

	entries, err := client.ReadDir(p)
	if err != nil {
		return nil, sftpError("listdir", p, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	sort.Strings(names)

	return names, nil
}

// Open opens name with a mode string: r, w, a or x, optionally followed by +
// and b or t. An empty mode means r. Append modes start at the end of the file.
func (s *SFTPClient) Open(name, mode string) (File, error) {
	flags, err := parseMode(mode)
	if err != nil {
		return nil, err
	}

	client, p, err := s.resolve("open", name)
	if err != nil {
		return nil, err
	}

	f, err := client.OpenFile(p, flags)
	if err != nil {
		return nil, sftpError("open", p, err)
	}

	if flags&os.O_APPEND != 0 {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()

			return nil, sftpError("open", p, err)
		}
	}

	return newRemoteFile(f, p), nil
}

// File is an alias for Open.
func (s *SFTPClient) File(name, mode string) (File, error) {
	return s.Open(name, mode)
}

// IsClosed reports whether Close has been called.
func (s *SFTPClient) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Close ends the SFTP session. The SSH session stays open.
func (s *SFTPClient) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	err := s.client.Close()

	s.release()
	s.log.Debug().Msg("sftp session closed")

	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}

	return newError(KindSFTP, "close", "failed to close sftp session", err)
}

// resolve returns the live client and p joined to the working directory.
func (s *SFTPClient) resolve(op, p string) (*sftp.Client, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, "", errSFTPClosed(op)
	}

	return s.client, fileutil.ResolveRemote(s.cwd, p), nil
}

func errSFTPClosed(op string) *Error {
	return newError(KindSFTP, op, "sftp session is closed", nil)
}

func sftpError(op, p string, err error) *Error {
	return newError(KindSFTP, op, p, err)
}

// parseMode converts a mode string to os.OpenFile flags.
func parseMode(mode string) (int, error) {
	if mode == "" {
		mode = "r"
	}

	var (
		base      byte
		plus      bool
		textOrBin bool
	)

	for i := 0; i < len(mode); i++ {
		switch c := mode[i]; c {
		case 'r', 'w', 'a', 'x':
			if base != 0 {
				return 0, invalidMode(mode)
			}

			base = c
		case '+':
			if plus {
				return 0, invalidMode(mode)
			}

			plus = true
		case 'b', 't':
			if textOrBin {
				return 0, invalidMode(mode)
			}

			textOrBin = true
		default:
			return 0, invalidMode(mode)
		}
	}

	var flags int

	switch base {
	case 'r':
		flags = os.O_RDONLY
		if plus {
			flags = os.O_RDWR
		}
	case 'w':
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if plus {
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
	case 'a':
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		if plus {
			flags = os.O_RDWR | os.O_CREATE | os.O_APPEND
		}
	case 'x':
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if plus {
			flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
		}
	default:
		return 0, invalidMode(mode)
	}

	return flags, nil
}

func invalidMode(mode string) *Error {
	err := newError(KindLibrary, "open", fmt.Sprintf("invalid mode %q", mode), nil)
	err.Suggestion = `Use one of r, w, a or x, optionally followed by "+" and "b" or "t".`

	return err
}
