package russh

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ruffel/russh/fileutil"
)

// Get downloads remotePath to localPath as a whole file. The local file gets the
// remote file's permission bits unless WithPermissions says otherwise.
func (s *SFTPClient) Get(ctx context.Context, remotePath, localPath string, opts ...FileOption) error {
	client, p, err := s.resolve("get", remotePath)
	if err != nil {
		return err
	}

	cfg := newFileConfig(opts)

	src, err := client.Open(p)
	if err != nil {
		return sftpError("get", p, err)
	}

	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return sftpError("get", p, err)
	}

	if info.IsDir() {
		return newError(KindSFTP, "get", p+": is a directory", nil)
	}

	mode := info.Mode().Perm()
	if cfg.SetPermissions {
		mode = cfg.Permissions
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return sftpError("get", localPath, err)
	}

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return sftpError("get", localPath, err)
	}

	n, err := fileutil.Copy(ctx, dst, src, info.Size(), cfg.Progress)
	if err != nil {
		_ = dst.Close()

		return sftpError("get", p, err)
	}

	if err := dst.Close(); err != nil {
		return sftpError("get", localPath, err)
	}

	// O_CREATE only applies mode to new files.
	if cfg.SetPermissions {
		if err := os.Chmod(localPath, cfg.Permissions); err != nil {
			return sftpError("get", localPath, err)
		}
	}

	s.log.Debug().Str("remote", p).Str("local", localPath).Int64("bytes", n).Msg("downloaded")

	return nil
}

// Put uploads localPath to remotePath as a whole file, replacing it.
// WithPermissions and WithOwner are applied to the remote file afterwards.
func (s *SFTPClient) Put(ctx context.Context, localPath, remotePath string, opts ...FileOption) error {
	client, p, err := s.resolve("put", remotePath)
	if err != nil {
		return err
	}

	cfg := newFileConfig(opts)

	src, err := os.Open(localPath)
	if err != nil {
		return sftpError("put", localPath, err)
	}

	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return sftpError("put", localPath, err)
	}

	if info.IsDir() {
		return newError(KindSFTP, "put", localPath+": is a directory", nil)
	}

	dst, err := client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return sftpError("put", p, err)
	}

	n, err := fileutil.Copy(ctx, dst, src, info.Size(), cfg.Progress)
	if err != nil {
		_ = dst.Close()

		return sftpError("put", p, err)
	}

	if err := dst.Close(); err != nil {
		return sftpError("put", p, err)
	}

	if cfg.SetPermissions {
		if err := client.Chmod(p, cfg.Permissions); err != nil {
			return sftpError("put", p, err)
		}
	}

	if cfg.SetOwner {
		if err := client.Chown(p, cfg.UID, cfg.GID); err != nil {
			return sftpError("put", p, err)
		}
	}

	s.log.Debug().Str("local", localPath).Str("remote", p).Int64("bytes", n).Msg("uploaded")

	return nil
}
