package sessiontest

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruffel/russh"
)

const defaultRemoteDir = "/tmp"

func openFS(t T, env Env) russh.FileSystem {
	fs, err := env.Session.OpenSFTP(t.Context())
	require.NoError(t, err)
	require.NotNil(t, fs)

	t.Cleanup(func() { _ = fs.Close() })

	return fs
}

// workDir creates an empty scratch directory unique to the running contract.
func workDir(t T, env Env, fs russh.FileSystem) string {
	base := env.RemoteDir
	if base == "" {
		base = defaultRemoteDir
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dir := path.Join(base, "russh-contract-"+name)

	removeAll(fs, dir)
	require.NoError(t, fs.Mkdir(dir))

	t.Cleanup(func() { removeAll(fs, dir) })

	return dir
}

func removeAll(fs russh.FileSystem, dir string) {
	names, err := fs.ListDir(dir)
	if err != nil {
		return
	}

	for _, name := range names {
		p := path.Join(dir, name)

		info, err := fs.Stat(p)
		if err == nil && info.IsDir() {
			removeAll(fs, p)

			continue
		}

		_ = fs.Remove(p)
	}

	_ = fs.Rmdir(dir)
}

func writeFile(t T, fs russh.FileSystem, name, mode, content string) {
	f, err := fs.Open(name, mode)
	require.NoError(t, err)

	_, err = io.WriteString(f, content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t T, fs russh.FileSystem, name string) string {
	f, err := fs.Open(name, "r")
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	require.NoError(t, err)

	return string(data)
}

//nolint:funlen // Contract registration function; length comes from many test cases.
func fileContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryFilesystem,
			Name:        "cwd-unset-by-default",
			Description: "A new SFTP session has no working directory",
			Run: func(t T, env Env) {
				fs := openFS(t, env)

				cwd, ok := fs.Getcwd()
				assert.False(t, ok)
				assert.Empty(t, cwd)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "chdir-set-and-clear",
			Description: "Chdir to an absolute path sets the directory and Chdir(\"\") clears it",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				require.NoError(t, fs.Chdir(dir))

				cwd, ok := fs.Getcwd()
				assert.True(t, ok)
				assert.Equal(t, dir, cwd)

				require.NoError(t, fs.Chdir(""))

				_, ok = fs.Getcwd()
				assert.False(t, ok)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "write-read-roundtrip",
			Description: "Content written through Open(\"w\") reads back unchanged",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)
				name := path.Join(dir, "roundtrip.txt")

				writeFile(t, fs, name, "w", "hello russh")
				assert.Equal(t, "hello russh", readFile(t, fs, name))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "file-alias",
			Description: "File behaves exactly like Open",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)
				name := path.Join(dir, "alias.txt")

				f, err := fs.File(name, "w")
				require.NoError(t, err)

				_, err = f.Write([]byte("via File"))
				require.NoError(t, err)
				require.NoError(t, f.Close())

				assert.Equal(t, "via File", readFile(t, fs, name))

				_, err = fs.File(name, "rw")
				require.ErrorIs(t, err, russh.ErrLibrary)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "append-mode",
			Description: "Open(\"a\") writes at the end of existing content",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)
				name := path.Join(dir, "append.txt")

				writeFile(t, fs, name, "w", "first")
				writeFile(t, fs, name, "a", "+second")
				assert.Equal(t, "first+second", readFile(t, fs, name))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "relative-to-cwd",
			Description: "Relative paths resolve against the working directory",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				require.NoError(t, fs.Chdir(dir))
				require.NoError(t, fs.Mkdir("sub"))
				writeFile(t, fs, "sub/file.txt", "w", "data")

				info, err := fs.Stat(path.Join(dir, "sub", "file.txt"))
				require.NoError(t, err)
				assert.Equal(t, int64(len("data")), info.Size())

				require.NoError(t, fs.Remove("sub/file.txt"))
				require.NoError(t, fs.Rmdir("sub"))

				names, err := fs.ListDir("")
				require.NoError(t, err)
				assert.Empty(t, names)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "listdir-sorted",
			Description: "ListDir returns entry names in lexical order",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
					writeFile(t, fs, path.Join(dir, name), "w", name)
				}

				names, err := fs.ListDir(dir)
				require.NoError(t, err)
				assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "put-get-roundtrip",
			Description: "A file uploaded with Put downloads unchanged with Get",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				local := filepath.Join(t.TempDir(), "upload.txt")
				require.NoError(t, os.WriteFile(local, []byte("transfer content"), 0o600))

				remote := path.Join(dir, "upload.txt")
				require.NoError(t, fs.Put(t.Context(), local, remote))

				downloaded := filepath.Join(t.TempDir(), "download.txt")
				require.NoError(t, fs.Get(t.Context(), remote, downloaded))

				got, err := os.ReadFile(downloaded)
				require.NoError(t, err)
				assert.Equal(t, "transfer content", string(got))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "close-idempotent",
			Description: "Closing an SFTP session twice succeeds and marks it closed",
			Run: func(t T, env Env) {
				fs, err := env.Session.OpenSFTP(t.Context())
				require.NoError(t, err)

				require.NoError(t, fs.Close())
				require.NoError(t, fs.Close())
				assert.True(t, fs.IsClosed())
			},
		},
	}
}
