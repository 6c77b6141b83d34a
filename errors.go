package russh

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can branch on it without type switches.
type Kind int

const (
	// KindUnknown is the zero value and never produced by this package.
	KindUnknown Kind = iota
	// KindConnection covers TCP dial, timeout and non-auth handshake failures.
	KindConnection
	// KindAuthentication means every configured credential was rejected.
	KindAuthentication
	// KindSession means an operation needed an active session and had none.
	KindSession
	// KindSFTP covers filesystem-level failures on an SFTP session.
	KindSFTP
	// KindLibrary reports misuse at construction time (bad arguments, no credentials).
	KindLibrary
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuthentication:
		return "authentication"
	case KindSession:
		return "session"
	case KindSFTP:
		return "sftp"
	case KindLibrary:
		return "library"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Origin reports which layer an error kind belongs to.
type Origin int

const (
	// OriginSession is the SSH connection and channel layer.
	OriginSession Origin = iota
	// OriginSFTP is the SFTP sub-session layer.
	OriginSFTP
	// OriginConstruction is argument and configuration validation.
	OriginConstruction
)

func (o Origin) String() string {
	switch o {
	case OriginSession:
		return "session"
	case OriginSFTP:
		return "sftp"
	case OriginConstruction:
		return "construction"
	default:
		return "unknown"
	}
}

// Origin returns the layer the kind is raised from.
func (k Kind) Origin() Origin {
	switch k {
	case KindSFTP:
		return OriginSFTP
	case KindLibrary, KindUnknown:
		return OriginConstruction
	case KindConnection, KindAuthentication, KindSession:
		return OriginSession
	default:
		return OriginConstruction
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConnection     = errors.New("connection error")
	ErrAuthentication = errors.New("authentication error")
	ErrSession        = errors.New("session error")
	ErrSFTP           = errors.New("sftp error")
	ErrLibrary        = errors.New("library error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindAuthentication:
		return ErrAuthentication
	case KindSession:
		return ErrSession
	case KindSFTP:
		return ErrSFTP
	case KindLibrary:
		return ErrLibrary
	case KindUnknown:
		return nil
	default:
		return nil
	}
}

// Error is the single error type returned by this package.
type Error struct {
	Kind       Kind
	Op         string // Operation that failed, e.g. "connect", "mkdir"
	Message    string
	Suggestion string // How to fix it, when there is something useful to say
	Err        error  // Underlying cause

	// Attempts holds every failed credential attempt, in order, when Kind is
	// KindAuthentication. Err is always the last of them.
	Attempts []error
}

func newError(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     cause,
	}
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("russh: ")

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()

	return s != nil && target == s
}

// Origin returns the layer the error was raised from.
func (e *Error) Origin() Origin {
	return e.Kind.Origin()
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}

	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr.Kind == kind
	}

	return false
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr.Kind
	}

	return KindUnknown
}

func suggestionForDialError(err error) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is an SSH server listening on that port?"
	case strings.Contains(msg, "no such host"):
		return "The host name did not resolve. Check for typos or DNS issues."
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(msg, "timeout"):
		return "Connection timed out. The host may be offline or blocked by a firewall."
	default:
		return "Make sure the host is reachable."
	}
}
