// Package vault stores provider credential profiles as a single
// age-encrypted JSON blob. Encryption runs through the age CLI so the
// operator's existing identity and tooling stay in charge of key custody;
// plaintext exists only in memory.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mjtechguy/roughneck/internal/deployment"
)

const credentialsFile = "credentials.age"

// Profile is one stored credential set.
type Profile struct {
	// Name identifies the profile, e.g. "hetzner-personal".
	Name string `json:"name"`

	// Provider is the backend kind the profile belongs to.
	Provider string `json:"provider"`

	// Data holds the provider-specific secret fields by tfvars key name.
	Data map[string]string `json:"data"`
}

// lookPath and runCommand are swapped in tests.
var (
	lookPath   = exec.LookPath
	runCommand = func(cmd *exec.Cmd) error { return cmd.Run() }
)

// Vault manages the encrypted profile blob under a data directory.
type Vault struct {
	// Root is the data directory holding the encrypted blob, typically
	// the deployment store root.
	Root string

	// IdentityPath is the age identity file. Empty means ~/.age/key.txt.
	IdentityPath string
}

// New returns a Vault rooted at dir with the default identity location.
func New(dir string) *Vault {
	return &Vault{Root: dir}
}

func (v *Vault) blobPath() string {
	return filepath.Join(v.Root, credentialsFile)
}

func (v *Vault) identityPath() string {
	if v.IdentityPath != "" {
		return v.IdentityPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".age", "key.txt")
	}
	return filepath.Join(home, ".age", "key.txt")
}

// Available reports whether the age tooling is installed. When it is not,
// callers fall back to one-shot manual credential entry; that is a reduced
// mode, not an error.
func (v *Vault) Available() bool {
	if _, err := lookPath("age"); err != nil {
		return false
	}
	if _, err := lookPath("age-keygen"); err != nil {
		return false
	}
	return true
}

// ensureIdentity creates the age identity on first use.
func (v *Vault) ensureIdentity(ctx context.Context) error {
	path := v.identityPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	keygen, err := lookPath("age-keygen")
	if err != nil {
		return deployment.ErrVaultUnavailable
	}
	cmd := exec.CommandContext(ctx, keygen, "-o", path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := runCommand(cmd); err != nil {
		return fmt.Errorf("failed to generate age identity: %w", err)
	}
	return nil
}

// recipient reads the public key from the identity file.
func (v *Vault) recipient() (string, error) {
	data, err := os.ReadFile(v.identityPath())
	if err != nil {
		return "", fmt.Errorf("failed to read age identity: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "# public key:"); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", fmt.Errorf("no public key in age identity file")
}

func (v *Vault) encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := v.ensureIdentity(ctx); err != nil {
		return nil, err
	}
	recipient, err := v.recipient()
	if err != nil {
		return nil, err
	}
	bin, err := lookPath("age")
	if err != nil {
		return nil, deployment.ErrVaultUnavailable
	}

	cmd := exec.CommandContext(ctx, bin, "-r", recipient)
	cmd.Stdin = bytes.NewReader(plaintext)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := runCommand(cmd); err != nil {
		return nil, fmt.Errorf("age encryption failed: %w", err)
	}
	return stdout.Bytes(), nil
}

func (v *Vault) decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := v.ensureIdentity(ctx); err != nil {
		return nil, err
	}
	bin, err := lookPath("age")
	if err != nil {
		return nil, deployment.ErrVaultUnavailable
	}

	cmd := exec.CommandContext(ctx, bin, "-d", "-i", v.identityPath())
	cmd.Stdin = bytes.NewReader(ciphertext)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := runCommand(cmd); err != nil {
		return nil, fmt.Errorf("age decryption failed: %w", err)
	}
	return stdout.Bytes(), nil
}

// List returns all stored profiles, sorted by name. A missing blob means an
// empty vault.
func (v *Vault) List(ctx context.Context) ([]Profile, error) {
	ciphertext, err := os.ReadFile(v.blobPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials blob: %w", err)
	}

	plaintext, err := v.decrypt(ctx, ciphertext)
	if err != nil {
		return nil, err
	}
	var profiles []Profile
	if err := json.Unmarshal(plaintext, &profiles); err != nil {
		return nil, fmt.Errorf("corrupt credentials blob: %w", err)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// ListForProvider returns the stored profiles for one backend kind.
func (v *Vault) ListForProvider(ctx context.Context, provider string) ([]Profile, error) {
	all, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Profile
	for _, p := range all {
		if p.Provider == provider {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Get returns the named profile.
func (v *Vault) Get(ctx context.Context, name string) (*Profile, error) {
	profiles, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("no credential profile named %q", name)
}

func (v *Vault) save(ctx context.Context, profiles []Profile) error {
	plaintext, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return err
	}
	ciphertext, err := v.encrypt(ctx, plaintext)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(v.Root, 0o700); err != nil {
		return err
	}
	return os.WriteFile(v.blobPath(), ciphertext, 0o600)
}

// Put stores a profile, replacing any existing one with the same name.
func (v *Vault) Put(ctx context.Context, profile Profile) error {
	profiles, err := v.List(ctx)
	if err != nil {
		return err
	}
	kept := profiles[:0]
	for _, p := range profiles {
		if p.Name != profile.Name {
			kept = append(kept, p)
		}
	}
	kept = append(kept, profile)
	return v.save(ctx, kept)
}

// Remove deletes the named profile. Removing an absent profile is an error
// so callers can tell the operator nothing changed.
func (v *Vault) Remove(ctx context.Context, name string) error {
	profiles, err := v.List(ctx)
	if err != nil {
		return err
	}
	kept := profiles[:0]
	for _, p := range profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(profiles) {
		return fmt.Errorf("no credential profile named %q", name)
	}
	return v.save(ctx, kept)
}

// Resolve copies the named profile's secret fields into the config record
// in memory. The stored record keeps only the profile reference.
func (v *Vault) Resolve(ctx context.Context, cfg *deployment.Config) error {
	if cfg.CredentialProfile == "" {
		return nil
	}
	profile, err := v.Get(ctx, cfg.CredentialProfile)
	if err != nil {
		return err
	}
	for key, value := range profile.Data {
		switch key {
		case "hetzner_token":
			cfg.HetznerToken = value
		case "aws_access_key":
			cfg.AWSAccessKey = value
		case "aws_secret_key":
			cfg.AWSSecretKey = value
		case "digitalocean_token":
			cfg.DigitalOceanToken = value
		}
	}
	return nil
}
