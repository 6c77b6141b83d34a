package russh

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Command is a remote command line built from parts. String renders it for
// ExecCommand with every part shell-quoted, so arguments cannot inject syntax.
type Command struct {
	Cmd  string   // Binary name or path to executable
	Args []string // Arguments to pass to the binary
	Env  []string // Environment variables in "KEY=VALUE" format
	Dir  string   // Working directory on the remote host
}

// NewCommand creates a new Command with the given binary and arguments.
func NewCommand(binary string, args ...string) *Command {
	return &Command{
		Cmd:  binary,
		Args: args,
	}
}

// Shell returns a command that runs script with sh -c.
func Shell(script string) *Command {
	return NewCommand("sh", "-c", script)
}

// ParseCommand splits a shell-like command string into a Command using shlex.
func ParseCommand(cmdStr string) (*Command, error) {
	parts, err := shlex.Split(cmdStr)
	if err != nil {
		return nil, newError(KindLibrary, "parse_command", "failed to parse command", err)
	}

	if len(parts) == 0 {
		return nil, newError(KindLibrary, "parse_command", "empty command", nil)
	}

	return &Command{
		Cmd:  parts[0],
		Args: parts[1:],
	}, nil
}

// Validate checks that the command has a binary.
func (c *Command) Validate() error {
	if c == nil {
		return newError(KindLibrary, "command", "command cannot be nil", nil)
	}

	if strings.TrimSpace(c.Cmd) == "" {
		return newError(KindLibrary, "command", "command binary cannot be empty", nil)
	}

	return nil
}

// String returns the full POSIX command line: env exports, cd, then the command.
func (c *Command) String() string {
	return buildEnvPrefix(c.Env) + buildDirPrefix(c.Dir) + c.argv()
}

func (c *Command) argv() string {
	var b strings.Builder

	b.WriteString(shellQuote(c.Cmd))

	for _, arg := range c.Args {
		b.WriteString(" ")
		b.WriteString(shellQuote(arg))
	}

	return b.String()
}

// buildEnvPrefix turns KEY=VALUE pairs into "export KEY='VALUE'; " statements.
// OpenSSH ignores Setenv unless PermitUserEnvironment is on, so the values
// travel in the command line instead.
func buildEnvPrefix(envVars []string) string {
	var prefix strings.Builder

	for _, env := range envVars {
		k, v, found := strings.Cut(env, "=")
		if !found {
			continue // Skip malformed env
		}

		fmt.Fprintf(&prefix, "export %s=%s; ", k, singleQuote(v))
	}

	return prefix.String()
}

func buildDirPrefix(dir string) string {
	if dir == "" {
		return ""
	}

	return "cd " + singleQuote(dir) + " && "
}

// shellQuote quotes s only when it contains characters the shell would interpret.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}

	return singleQuote(s)
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("_-./=:,@%+", r):
		return false
	default:
		return true
	}
}

// Builder provides a fluent API for constructing Commands.
type Builder struct {
	cmd *Command
}

// Cmd creates a new Builder for a command with the given name/path.
func Cmd(binary string) *Builder {
	return &Builder{
		cmd: &Command{
			Cmd: binary,
		},
	}
}

// Arg adds a single argument.
func (b *Builder) Arg(arg string) *Builder {
	b.cmd.Args = append(b.cmd.Args, arg)
	return b
}

// Args adds multiple arguments.
func (b *Builder) Args(args ...string) *Builder {
	b.cmd.Args = append(b.cmd.Args, args...)
	return b
}

// Env adds an environment variable.
func (b *Builder) Env(key, value string) *Builder {
	b.cmd.Env = append(b.cmd.Env, key+"="+value)
	return b
}

// Dir sets the remote working directory.
func (b *Builder) Dir(dir string) *Builder {
	b.cmd.Dir = dir
	return b
}

// Build returns the constructed Command.
func (b *Builder) Build() *Command {
	return b.cmd
}
