package russh

import (
	"bufio"
	"context"
	"strings"
	"time"
)

// Executor runs structured Commands on a Session, adding sudo and stdin handling.
type Executor struct {
	session Session
}

// NewExecutor creates a new Executor over session.
func NewExecutor(session Session) *Executor {
	return &Executor{session: session}
}

// ExecConfig holds the per-call settings of an Executor run.
type ExecConfig struct {
	Sudo     bool
	SudoUser string  // Run as this user instead of root; implies Sudo
	Stdin    *string // Sent to the command before its output is read
}

// ExecOption configures a single Executor call.
type ExecOption func(*ExecConfig)

// WithSudo runs the command through non-interactive sudo.
func WithSudo() ExecOption {
	return func(c *ExecConfig) {
		c.Sudo = true
	}
}

// WithSudoUser runs the command as user via sudo -u.
func WithSudoUser(user string) ExecOption {
	return func(c *ExecConfig) {
		c.Sudo = true
		c.SudoUser = user
	}
}

// WithStdin sends data as the command's one-shot stdin.
func WithStdin(data string) ExecOption {
	return func(c *ExecConfig) {
		c.Stdin = &data
	}
}

// Run executes cmd to completion. A non-zero exit code is reported in the
// Result, not as an error.
func (e *Executor) Run(ctx context.Context, cmd *Command, opts ...ExecOption) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var cfg ExecConfig
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.Sudo {
		cmd = applySudo(cmd, cfg.SudoUser)
	}

	start := time.Now()

	ch, err := e.session.ExecCommand(ctx, cmd.String())
	if err != nil {
		return nil, err
	}

	defer func() { _ = ch.Close() }()

	var stdin string
	if cfg.Stdin != nil {
		stdin = *cfg.Stdin
	}

	return drain(ch, stdin, start)
}

// RunShell executes script with sh -c.
func (e *Executor) RunShell(ctx context.Context, script string, opts ...ExecOption) (*Result, error) {
	return e.Run(ctx, Shell(script), opts...)
}

// RunLines executes cmd and hands each stdout line to onLine once the command has finished.
func (e *Executor) RunLines(ctx context.Context, cmd *Command, onLine func(string), opts ...ExecOption) (*Result, error) {
	res, err := e.Run(ctx, cmd, opts...)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return res, newError(KindLibrary, "run_lines", "failed to split output", err)
	}

	return res, nil
}

// LookPath resolves file against the remote user's PATH with command -v.
func (e *Executor) LookPath(ctx context.Context, file string) (string, error) {
	res, err := e.RunShell(ctx, "command -v "+shellQuote(file))
	if err != nil {
		return "", err
	}

	path := strings.TrimSpace(res.Stdout)
	if !res.Success() || path == "" {
		return "", newError(KindSession, "lookpath", file+" not found in remote PATH", nil)
	}

	return path, nil
}

func applySudo(cmd *Command, user string) *Command {
	args := []string{"-n"}
	if user != "" {
		args = append(args, "-u", user)
	}

	newCmd := *cmd
	newCmd.Args = append(append(args, "--", cmd.Cmd), cmd.Args...)
	newCmd.Cmd = "sudo"

	return &newCmd
}

// drain sends stdin and closes it, then reads both streams and the exit status
// of ch, in that order. An empty stdin still closes the pipe so commands that
// read input see EOF.
func drain(ch Channel, stdin string, start time.Time) (*Result, error) {
	if err := ch.WriteStdin(stdin); err != nil {
		return nil, err
	}

	stdout, err := ch.ReadStdout()
	if err != nil {
		return nil, err
	}

	stderr, err := ch.ReadStderr()
	if err != nil {
		return nil, err
	}

	code, err := ch.ExitStatus()
	if err != nil {
		return nil, err
	}

	return &Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: code,
		Duration: time.Since(start),
	}, nil
}
