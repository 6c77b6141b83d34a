package russhtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// WriteKey generates an ed25519 key pair and writes the private half to path in
// OpenSSH format, encrypted when passphrase is not empty.
func WriteKey(path, passphrase string) (ssh.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "russhtest")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "russhtest", []byte(passphrase))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	return sshPub, nil
}

// NewKey writes a fresh key into a temporary directory and returns its path.
func NewKey(t testing.TB, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "id_ed25519")

	pub, err := WriteKey(path, passphrase)
	require.NoError(t, err)

	return path, pub
}
