package russh

import "time"

// State is the lifecycle of an SSHClient.
type State int

const (
	// StateNew is a client that has never connected.
	StateNew State = iota
	// StateConnected is a client with an authenticated session.
	StateConnected
	// StateClosed is terminal; the transport has been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AuthState is the authentication lifecycle of a session.
type AuthState int

const (
	// Unauthenticated means no credential has succeeded yet.
	Unauthenticated AuthState = iota
	// Authenticated means a credential succeeded and the session is usable.
	Authenticated
	// SessionClosed means the session transport has been released.
	SessionClosed
)

func (s AuthState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionInfo describes the client's current session.
type SessionInfo struct {
	Host      string
	Port      int
	User      string
	Method    Method // Credential that authenticated the session
	AuthState AuthState
}

// Result contains the captured output of a completed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int           // Process exit code (0 indicates success)
	Duration time.Duration // Time taken for execution
}

// Success returns true if the command exited with code 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}
