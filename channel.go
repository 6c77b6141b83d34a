package russh

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

var _ Channel = (*ExecOutput)(nil)

// ExecOutput is a running remote command. Every stream is one-shot: stdin takes
// a single write, stdout and stderr are returned in full once, and the exit
// status is reported once. Consuming a stream again yields "" (or 0).
type ExecOutput struct {
	mu      sync.Mutex
	session *ssh.Session
	command string

	stdin  *inputStream
	stdout *outputStream
	stderr *outputStream

	closed    bool
	release   func()
	stopWatch func() bool
}

// startExec wires the session's pipes and starts command. release is called
// exactly once, when the channel closes.
func startExec(ctx context.Context, sess *ssh.Session, command string, release func()) (*ExecOutput, error) {
	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, newError(KindSession, "exec", "failed to open stdin", err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, newError(KindSession, "exec", "failed to open stdout", err)
	}

	stderr, err := sess.StderrPipe()
	if err != nil {
		return nil, newError(KindSession, "exec", "failed to open stderr", err)
	}

	if err := sess.Start(command); err != nil {
		return nil, newError(KindSession, "exec", "failed to start command", err)
	}

	out := &ExecOutput{
		session: sess,
		command: command,
		stdin:   newInputStream(stdin),
		stdout:  newOutputStream(stdout),
		stderr:  newOutputStream(stderr),
		release: release,
	}

	// Runs without the lock so a blocked ExitStatus can be interrupted.
	out.stopWatch = context.AfterFunc(ctx, func() {
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
	})

	return out, nil
}

// Command returns the command line the channel was started with.
func (o *ExecOutput) Command() string {
	return o.command
}

// WriteStdin sends data to the command and then closes its stdin.
func (o *ExecOutput) WriteStdin(data string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}

	if err := o.stdin.send(data); err != nil {
		return newError(KindSession, "write_stdin", "failed to write stdin", err)
	}

	return nil
}

// ReadStdout blocks until the command closes stdout and returns everything it wrote.
func (o *ExecOutput) ReadStdout() (string, error) {
	return o.read("read_stdout", o.stdout)
}

// ReadStderr blocks until the command closes stderr and returns everything it wrote.
func (o *ExecOutput) ReadStderr() (string, error) {
	return o.read("read_stderr", o.stderr)
}

func (o *ExecOutput) read(op string, s *outputStream) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return "", nil
	}

	out, err := s.drain()
	if err != nil {
		return out, newError(KindSession, op, "stream failed", err)
	}

	return out, nil
}

// ExitStatus closes stdin if it is still open, waits for the command to exit and
// closes the channel. Output that was not read yet is discarded.
func (o *ExecOutput) ExitStatus() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, nil
	}

	o.stdin.discard()

	waitErr := o.session.Wait()
	_ = o.closeLocked()

	if waitErr == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitStatus(), nil
	}

	var missing *ssh.ExitMissingError
	if errors.As(waitErr, &missing) {
		return -1, newError(KindSession, "exit_status", "command ended without reporting an exit status", waitErr)
	}

	return -1, newError(KindSession, "exit_status", "lost channel while waiting for command", waitErr)
}

// Close releases the channel. It does not wait for the command.
func (o *ExecOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}

	return o.closeLocked()
}

func (o *ExecOutput) closeLocked() error {
	o.closed = true

	o.stdin.discard()
	o.stdout.discard()
	o.stderr.discard()

	o.stopWatch()

	err := o.session.Close()

	o.release()

	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	return newError(KindSession, "close", "failed to close channel", err)
}
