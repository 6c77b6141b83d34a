package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ruffel/russh"
)

func (a *App) execCmd() *cobra.Command {
	var sendStdin bool

	cmd := &cobra.Command{
		Use:   "exec <command>",
		Short: "Run a command on the remote host",
		Long: `Run a command on the remote host and print its output once it exits.

The remote exit code becomes the exit code of russh.

Examples:
  russh exec uptime
  russh exec -- ls -la /tmp
  echo data | russh exec --stdin cat`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s russh.Session) error {
				return a.runRemote(ctx, s, strings.Join(args, " "), sendStdin)
			})
		},
	}

	cmd.Flags().BoolVar(&sendStdin, "stdin", false, "send local stdin to the command")

	return cmd
}

func (a *App) runRemote(ctx context.Context, s russh.Session, command string, sendStdin bool) error {
	ch, err := s.ExecCommand(ctx, command)
	if err != nil {
		return err
	}

	defer func() { _ = ch.Close() }()

	var data []byte
	if sendStdin {
		data, err = io.ReadAll(a.In)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	// Without --stdin the pipe is closed empty so the command sees EOF.
	if err := ch.WriteStdin(string(data)); err != nil {
		return err
	}

	stdout, err := ch.ReadStdout()
	if err != nil {
		return err
	}

	stderr, err := ch.ReadStderr()
	if err != nil {
		return err
	}

	_, _ = io.WriteString(a.Out, stdout)
	_, _ = io.WriteString(a.Err, stderr)

	code, err := ch.ExitStatus()
	if err != nil {
		return err
	}

	if code != 0 {
		return &ExitError{Code: code}
	}

	return nil
}
