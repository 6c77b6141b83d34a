package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ruffel/russh"
)

func addCwdFlag(cmd *cobra.Command) {
	cmd.Flags().String("cwd", "", "absolute remote directory relative paths resolve against")
}

func addModeFlag(cmd *cobra.Command, usage string) *string {
	return cmd.Flags().String("mode", "", usage)
}

// fileOptions converts the --mode and --progress flags into FileOptions.
func (a *App) fileOptions(mode string, progress bool) ([]russh.FileOption, error) {
	var opts []russh.FileOption

	if mode != "" {
		perm, err := parseMode(mode)
		if err != nil {
			return nil, err
		}

		opts = append(opts, russh.WithPermissions(perm))
	}

	if progress {
		opts = append(opts, russh.WithProgress(func(current, total int64) {
			_, _ = fmt.Fprintf(a.Err, "\r%s", infoStyle.Render(fmt.Sprintf("%d/%d bytes", current, total)))

			if current == total {
				_, _ = fmt.Fprintln(a.Err)
			}
		}))
	}

	return opts, nil
}

func parseMode(s string) (os.FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil || n > 0o7777 {
		return 0, fmt.Errorf("invalid mode %q: want octal like 0644", s)
	}

	return os.FileMode(n), nil
}

func (a *App) getCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Download a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")

			opts, err := a.fileOptions(mode, progress)
			if err != nil {
				return err
			}

			return a.withFileSystem(cmd, func(ctx context.Context, fs russh.FileSystem) error {
				return fs.Get(ctx, args[0], args[1], opts...)
			})
		},
	}

	addCwdFlag(cmd)
	addModeFlag(cmd, "local file mode (default: remote mode)")
	cmd.Flags().BoolVar(&progress, "progress", false, "report transfer progress on stderr")

	return cmd
}

func (a *App) putCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")

			opts, err := a.fileOptions(mode, progress)
			if err != nil {
				return err
			}

			return a.withFileSystem(cmd, func(ctx context.Context, fs russh.FileSystem) error {
				return fs.Put(ctx, args[0], args[1], opts...)
			})
		},
	}

	addCwdFlag(cmd)
	addModeFlag(cmd, "remote file mode")
	cmd.Flags().BoolVar(&progress, "progress", false, "report transfer progress on stderr")

	return cmd
}

func (a *App) lsCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			return a.withFileSystem(cmd, func(_ context.Context, fs russh.FileSystem) error {
				names, err := fs.ListDir(dir)
				if err != nil {
					return err
				}

				for _, name := range names {
					if !long {
						_, _ = fmt.Fprintln(a.Out, name)

						continue
					}

					info, err := fs.Stat(path.Join(dirOrDot(dir), name))
					if err != nil {
						return err
					}

					display := name
					if info.IsDir() {
						display = dirStyle.Render(name)
					}

					_, _ = fmt.Fprintf(a.Out, "%s %10d %s %s\n",
						info.Mode(), info.Size(), info.ModTime().Format("Jan _2 15:04"), display)
				}

				return nil
			})
		},
	}

	addCwdFlag(cmd)
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show mode, size and modification time")

	return cmd
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}

	return dir
}

func (a *App) mkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <dir>",
		Short: "Create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")

			opts, err := a.fileOptions(mode, false)
			if err != nil {
				return err
			}

			return a.withFileSystem(cmd, func(_ context.Context, fs russh.FileSystem) error {
				return fs.Mkdir(args[0], opts...)
			})
		},
	}

	addCwdFlag(cmd)
	addModeFlag(cmd, "directory mode")

	return cmd
}

func (a *App) rmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove remote files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(cmd, func(_ context.Context, fs russh.FileSystem) error {
				for _, p := range args {
					if err := fs.Remove(p); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}

	addCwdFlag(cmd)

	return cmd
}

func (a *App) rmdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rmdir <dir>...",
		Short: "Remove empty remote directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(cmd, func(_ context.Context, fs russh.FileSystem) error {
				for _, dir := range args {
					if err := fs.Rmdir(dir); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}

	addCwdFlag(cmd)

	return cmd
}
