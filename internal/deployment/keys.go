package deployment

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds a generated SSH key pair in on-disk encodings.
type KeyPair struct {
	PrivateKeyPEM []byte
	AuthorizedKey []byte
}

// GenerateKeyPair generates an ed25519 SSH key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	return &KeyPair{
		PrivateKeyPEM: pem.EncodeToMemory(block),
		AuthorizedKey: ssh.MarshalAuthorizedKey(sshPub),
	}, nil
}

// EnsureKeys makes sure the deployment has a usable key pair. When the
// configuration points at an operator-supplied public key nothing is
// generated; otherwise a key pair is generated once and persisted inside
// the deployment directory, private key readable by owner only.
func (d *Deployment) EnsureKeys() error {
	if d.Config.SSHPublicKeyPath != "" {
		return nil
	}
	if _, err := os.Stat(d.PrivateKeyPath()); err == nil {
		return nil
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.PrivateKeyPath(), kp.PrivateKeyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(d.PublicKeyPath(), kp.AuthorizedKey, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// SSHPrivateKey returns the private key path used to reach the host: the
// generated key when present, otherwise the operator key derived from the
// configured public key path. Empty when neither exists.
func (d *Deployment) SSHPrivateKey() string {
	if _, err := os.Stat(d.PrivateKeyPath()); err == nil {
		return d.PrivateKeyPath()
	}
	if p := d.Config.SSHPublicKeyPath; strings.HasSuffix(p, ".pub") {
		return strings.TrimSuffix(p, ".pub")
	}
	return ""
}

// SSHPublicKey returns the public key path the provisioning templates
// should install on the server.
func (d *Deployment) SSHPublicKey() string {
	if d.Config.SSHPublicKeyPath != "" {
		return d.Config.SSHPublicKeyPath
	}
	return d.PublicKeyPath()
}
