// Package cli implements the russh command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ruffel/russh"
	"github.com/ruffel/russh/logging"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(v, c string) {
	version = v
	commit = c
}

// ConnectFunc opens an authenticated session for cfg.
type ConnectFunc func(ctx context.Context, cfg russh.Config) (russh.Session, error)

// Connect dials cfg with a new russh client.
func Connect(ctx context.Context, cfg russh.Config) (russh.Session, error) {
	client := russh.NewClient()

	if err := client.ConnectConfig(ctx, cfg); err != nil {
		_ = client.Close()

		return nil, err
	}

	return client, nil
}

// App holds the dependencies shared by every command.
type App struct {
	Connect ConnectFunc
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
}

// New returns an App wired to the real network and the process streams.
func New() *App {
	return &App{
		Connect: Connect,
		In:      os.Stdin,
		Out:     os.Stdout,
		Err:     os.Stderr,
	}
}

// ExitError carries a remote exit code out to the process.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with code %d", e.Code)
}

// Execute runs the CLI against os.Args and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := New()

	return app.Run(ctx, os.Args[1:])
}

// Run executes args and maps the outcome to an exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd := a.Command()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	a.printError(err)

	return 1
}

func (a *App) printError(err error) {
	_, _ = fmt.Fprintln(a.Err, errorStyle.Render("Error: "+err.Error()))

	var rerr *russh.Error
	if errors.As(err, &rerr) && rerr.Suggestion != "" {
		_, _ = fmt.Fprintln(a.Err, hintStyle.Render(rerr.Suggestion))
	}
}

// Command builds the command tree.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "russh",
		Short: "Run commands and move files over SSH",
		Long: `russh runs remote commands and manages remote files over SSH and SFTP.

Connection settings come from flags, RUSSH_* environment variables
(e.g. RUSSH_HOST, RUSSH_KNOWN_HOSTS) or a config file given with --config.

Examples:
  russh --host deploy@example.com --identity ~/.ssh/id_ed25519 exec uptime
  russh --host web --ssh-config ~/.ssh/config ls /var/log`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}

			logging.Init(logging.Config{
				Level:  s.LogLevel,
				Format: s.LogFormat,
				Output: a.Err,
			})

			return nil
		},
	}

	registerFlags(root.PersistentFlags())

	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	root.AddCommand(
		a.execCmd(),
		a.getCmd(),
		a.putCmd(),
		a.lsCmd(),
		a.mkdirCmd(),
		a.rmCmd(),
		a.rmdirCmd(),
		a.checkCmd(),
		a.versionCmd(),
	)

	return root
}

// withSession connects using the command's settings and closes the session afterwards.
func (a *App) withSession(cmd *cobra.Command, fn func(ctx context.Context, s russh.Session) error) error {
	settings, err := loadSettings(cmd.Flags())
	if err != nil {
		return err
	}

	cfg, err := settings.Config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	session, err := a.Connect(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = session.Close() }()

	l := logging.Component("cli")
	l.Debug().Str("host", cfg.Address()).Msg("connected")

	return fn(ctx, session)
}

// withFileSystem opens an SFTP session, changing into --cwd when given.
func (a *App) withFileSystem(cmd *cobra.Command, fn func(ctx context.Context, fs russh.FileSystem) error) error {
	return a.withSession(cmd, func(ctx context.Context, s russh.Session) error {
		fs, err := s.OpenSFTP(ctx)
		if err != nil {
			return err
		}

		defer func() { _ = fs.Close() }()

		if cwd, _ := cmd.Flags().GetString("cwd"); cwd != "" {
			if err := fs.Chdir(cwd); err != nil {
				return err
			}
		}

		return fn(ctx, fs)
	})
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "russh %s (%s)\n", version, commit)

			return err
		},
	}
}
