// Package fileutil provides shared file-transfer utilities for russh.
//
// It holds the progress reporting, context cancellation and remote path
// helpers used by whole-file SFTP transfers.
package fileutil

import (
	"context"
	"io"
	"path"
	"strings"
)

// ProgressFunc is a callback for tracking file transfer progress.
// Total is 0 when the size is unknown.
type ProgressFunc func(current, total int64)

// ProgressReader wraps an io.Reader to report progress via a ProgressFunc.
type ProgressReader struct {
	io.Reader

	Total   int64
	Current int64
	Fn      ProgressFunc
}

// Read reads from the underlying reader and reports progress.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		if pr.Fn != nil {
			pr.Fn(pr.Current, pr.Total)
		}
	}

	return n, err
}

// ContextReader wraps an io.Reader to check for context cancellation
// before each Read call. This allows long-running io.Copy operations
// to be interrupted by context cancellation.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

// Read checks for context cancellation before delegating to the underlying reader.
func (cr *ContextReader) Read(p []byte) (int, error) {
	if cr.Ctx.Err() != nil {
		return 0, cr.Ctx.Err()
	}

	return cr.Reader.Read(p)
}

// Copy copies src to dst in full, honouring ctx and reporting progress when fn is set.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, total int64, fn ProgressFunc) (int64, error) {
	var reader io.Reader = &ContextReader{Ctx: ctx, Reader: src}
	if fn != nil {
		reader = &ProgressReader{Reader: reader, Total: total, Fn: fn}
	}

	return io.Copy(dst, reader)
}

// IsRemoteAbs reports whether p is an absolute remote (forward-slash) path.
func IsRemoteAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// ResolveRemote joins a relative p onto cwd. Absolute paths, and every path
// when cwd is empty, are returned unchanged so the server resolves them.
func ResolveRemote(cwd, p string) string {
	if cwd == "" || IsRemoteAbs(p) {
		return p
	}

	if p == "" || p == "." {
		return cwd
	}

	return path.Join(cwd, p)
}
