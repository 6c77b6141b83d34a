package russhtest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// ExecRequest is one exec request as seen by an ExecHandler.
type ExecRequest struct {
	Command string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// ExecHandler runs a command and returns its exit status. A negative status
// closes the channel without sending one. ctx is canceled when the client
// signals the command, closes the channel or the server shuts down.
type ExecHandler func(ctx context.Context, req ExecRequest) int

// Builtin understands a handful of POSIX commands:
//
//	echo WORDS...      prints WORDS; a trailing >&2 prints to stderr instead
//	cat                copies stdin to stdout
//	exit N             exits with status N
//	true, false        exit 0 and 1
//	sleep SECONDS      waits, or until ctx is canceled (status 130)
//	sh -c SCRIPT       runs SCRIPT with Builtin
//
// Anything else prints "command not found" and exits 127.
func Builtin(ctx context.Context, req ExecRequest) int {
	args, err := shlex.Split(req.Command)
	if err != nil {
		_, _ = fmt.Fprintf(req.Stderr, "sh: %v\n", err)

		return 2
	}

	if len(args) == 0 {
		return 0
	}

	switch args[0] {
	case "echo":
		words, out := args[1:], req.Stdout
		if n := len(words); n > 0 && words[n-1] == ">&2" {
			words, out = words[:n-1], req.Stderr
		}

		_, _ = fmt.Fprintln(out, strings.Join(words, " "))

		return 0
	case "cat":
		if _, err := io.Copy(req.Stdout, req.Stdin); err != nil {
			return 1
		}

		return 0
	case "true":
		return 0
	case "false":
		return 1
	case "exit":
		if len(args) < 2 {
			return 0
		}

		code, err := strconv.Atoi(args[1])
		if err != nil || code < 0 || code > 255 {
			_, _ = fmt.Fprintf(req.Stderr, "sh: exit: %s: numeric argument required\n", args[1])

			return 2
		}

		return code
	case "sleep":
		if len(args) < 2 {
			return 1
		}

		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			_, _ = fmt.Fprintf(req.Stderr, "sleep: invalid time interval %q\n", args[1])

			return 1
		}

		timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
			return 0
		case <-ctx.Done():
			return 130
		}
	case "sh":
		if len(args) == 3 && args[1] == "-c" {
			return Builtin(ctx, ExecRequest{Command: args[2], Stdin: req.Stdin, Stdout: req.Stdout, Stderr: req.Stderr})
		}
	}

	_, _ = fmt.Fprintf(req.Stderr, "sh: %s: command not found\n", args[0])

	return 127
}
