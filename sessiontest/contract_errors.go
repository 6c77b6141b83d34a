package sessiontest

import (
	"path"

	"github.com/stretchr/testify/require"

	"github.com/ruffel/russh"
)

func errorContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryErrors,
			Name:        "chdir-relative-rejected",
			Description: "Chdir with a relative path must wrap russh.ErrSFTP",
			Run: func(t T, env Env) {
				fs := openFS(t, env)

				require.ErrorIs(t, fs.Chdir("relative/dir"), russh.ErrSFTP)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "open-missing-file",
			Description: "Opening a missing file for reading must wrap russh.ErrSFTP",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				_, err := fs.Open(path.Join(dir, "missing.txt"), "r")
				require.ErrorIs(t, err, russh.ErrSFTP)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "remove-missing-file",
			Description: "Removing a missing file must wrap russh.ErrSFTP",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				require.ErrorIs(t, fs.Remove(path.Join(dir, "missing.txt")), russh.ErrSFTP)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "invalid-open-mode",
			Description: "An unknown open mode must wrap russh.ErrLibrary",
			Run: func(t T, env Env) {
				fs := openFS(t, env)
				dir := workDir(t, env, fs)

				_, err := fs.Open(path.Join(dir, "file.txt"), "rw")
				require.ErrorIs(t, err, russh.ErrLibrary)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "sftp-use-after-close",
			Description: "Operations on a closed SFTP session must wrap russh.ErrSFTP",
			Run: func(t T, env Env) {
				fs, err := env.Session.OpenSFTP(t.Context())
				require.NoError(t, err)
				require.NoError(t, fs.Close())

				_, err = fs.ListDir("/")
				require.ErrorIs(t, err, russh.ErrSFTP)
			},
		},
	}
}
