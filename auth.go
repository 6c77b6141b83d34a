package russh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Method identifies a credential type.
type Method int

const (
	// MethodNone means no credential has authenticated the session.
	MethodNone Method = iota
	// MethodPassword is password authentication.
	MethodPassword
	// MethodPrivateKey is public-key authentication from a private key file.
	MethodPrivateKey
)

func (m Method) String() string {
	switch m {
	case MethodPassword:
		return "password"
	case MethodPrivateKey:
		return "publickey"
	case MethodNone:
		return "none"
	default:
		return "none"
	}
}

// Credential is a single authentication method.
// The only implementations are PasswordAuth and PrivateKeyAuth.
type Credential interface {
	fmt.Stringer

	// Kind reports which method this credential uses.
	Kind() Method

	authMethod() (ssh.AuthMethod, error)
}

// PasswordAuth authenticates with a password.
type PasswordAuth struct {
	password string
}

// NewPasswordAuth returns a password credential.
func NewPasswordAuth(password string) PasswordAuth {
	return PasswordAuth{password: password}
}

// Kind returns MethodPassword.
func (PasswordAuth) Kind() Method { return MethodPassword }

func (PasswordAuth) String() string { return "PasswordAuth(********)" }

func (p PasswordAuth) authMethod() (ssh.AuthMethod, error) {
	return ssh.Password(p.password), nil
}

// PrivateKeyAuth authenticates with a private key file and optional passphrase.
type PrivateKeyAuth struct {
	path       string
	passphrase string
	encrypted  bool
}

// NewPrivateKeyAuth returns a credential for an unencrypted private key file.
func NewPrivateKeyAuth(path string) PrivateKeyAuth {
	return PrivateKeyAuth{path: path}
}

// NewPrivateKeyAuthWithPassphrase returns a credential for a passphrase protected key file.
func NewPrivateKeyAuthWithPassphrase(path, passphrase string) PrivateKeyAuth {
	return PrivateKeyAuth{path: path, passphrase: passphrase, encrypted: true}
}

// Kind returns MethodPrivateKey.
func (PrivateKeyAuth) Kind() Method { return MethodPrivateKey }

// Path returns the private key file path.
func (k PrivateKeyAuth) Path() string { return k.path }

// HasPassphrase reports whether a passphrase was supplied.
func (k PrivateKeyAuth) HasPassphrase() bool { return k.encrypted }

func (k PrivateKeyAuth) String() string {
	if k.encrypted {
		return fmt.Sprintf("PrivateKeyAuth(%s, passphrase=********)", k.path)
	}

	return fmt.Sprintf("PrivateKeyAuth(%s)", k.path)
}

func (k PrivateKeyAuth) authMethod() (ssh.AuthMethod, error) {
	keyBytes, err := os.ReadFile(expandHome(k.path))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	var signer ssh.Signer
	if k.encrypted {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(k.passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}

	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("private key %s is encrypted and no passphrase was given: %w", k.path, err)
		}

		return nil, fmt.Errorf("failed to parse private key file: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// AuthMethods is the set of credentials to try. Password is always tried before PrivateKey.
type AuthMethods struct {
	Password   *PasswordAuth
	PrivateKey *PrivateKeyAuth
}

// Auth builds an AuthMethods from any combination of credentials.
// Later credentials of the same kind replace earlier ones.
func Auth(creds ...Credential) AuthMethods {
	var a AuthMethods

	for _, c := range creds {
		switch c := c.(type) {
		case PasswordAuth:
			a.Password = &c
		case PrivateKeyAuth:
			a.PrivateKey = &c
		}
	}

	return a
}

// Empty reports whether no credential is configured.
func (a AuthMethods) Empty() bool {
	return a.Password == nil && a.PrivateKey == nil
}

// Sequence returns the credentials in attempt order.
func (a AuthMethods) Sequence() []Credential {
	seq := make([]Credential, 0, 2)

	if a.Password != nil {
		seq = append(seq, *a.Password)
	}

	if a.PrivateKey != nil {
		seq = append(seq, *a.PrivateKey)
	}

	return seq
}

// handshakeFunc dials and completes an SSH handshake offering only method.
// Errors it returns must already be classified (*Error of KindConnection) unless
// they are authentication rejections.
type handshakeFunc func(ctx context.Context, method ssh.AuthMethod) (*ssh.Client, error)

// selectAuth walks the credential sequence and returns the first client that authenticates.
func selectAuth(ctx context.Context, auth AuthMethods, handshake handshakeFunc, log zerolog.Logger) (*ssh.Client, Method, error) {
	seq := auth.Sequence()
	if len(seq) == 0 {
		return nil, MethodNone, errNoCredentials()
	}

	attempts := make([]error, 0, len(seq))

	for _, cred := range seq {
		if err := ctx.Err(); err != nil {
			return nil, MethodNone, newError(KindConnection, "connect", "connect canceled", err)
		}

		log.Debug().Str("method", cred.Kind().String()).Msg("attempting authentication")

		method, err := cred.authMethod()
		if err != nil {
			attempts = append(attempts, fmt.Errorf("%s: %w", cred.Kind(), err))
			log.Debug().Err(err).Str("method", cred.Kind().String()).Msg("credential unusable")

			continue
		}

		client, err := handshake(ctx, method)
		if err == nil {
			log.Debug().Str("method", cred.Kind().String()).Msg("authenticated")

			return client, cred.Kind(), nil
		}

		if !isAuthFailure(err) {
			return nil, MethodNone, err
		}

		attempts = append(attempts, fmt.Errorf("%s: %w", cred.Kind(), err))
		log.Debug().Err(err).Str("method", cred.Kind().String()).Msg("authentication rejected")
	}

	last := attempts[len(attempts)-1]
	authErr := newError(KindAuthentication, "connect", "all configured credentials were rejected", last)
	authErr.Attempts = attempts
	authErr.Suggestion = "Check the username, password and key. Only the last failure is reported as the cause."

	return nil, MethodNone, authErr
}

func errNoCredentials() *Error {
	err := newError(KindLibrary, "connect", "no credentials configured", nil)
	err.Suggestion = "Provide a password, a private key, or both."

	return err
}

// isAuthFailure reports whether a handshake error came from the server
// rejecting credentials. x/crypto/ssh only exposes this through the message.
func isAuthFailure(err error) bool {
	var rErr *Error
	if errors.As(err, &rErr) && rErr.Kind == KindConnection {
		return false
	}

	msg := err.Error()

	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}
