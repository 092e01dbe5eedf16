package deployment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configFile     = "terraform.tfvars"
	stateFile      = "state.yaml"
	tfStateFile    = "terraform.tfstate"
	inventoryFile  = "inventory.ini"
	privateKeyFile = "id_ed25519"
	publicKeyFile  = "id_ed25519.pub"
	lockFile       = ".lock"
)

// nameRe validates deployment names as filesystem-safe.
var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Store reads and writes isolated deployment records under a root directory.
type Store struct {
	// Root is the data directory, typically ~/.roughneck.
	Root string

	// Templates, when set, is the bundled provisioning template tree
	// (terraform/ and ansible/ subtrees) pinned into each deployment at
	// creation time.
	Templates fs.FS
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Root: dir}
}

// DefaultRoot resolves the data directory: $ROUGHNECK_HOME if set,
// otherwise ~/.roughneck.
func DefaultRoot() string {
	if dir := os.Getenv("ROUGHNECK_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roughneck"
	}
	return filepath.Join(home, ".roughneck")
}

// Deployment is an open deployment record. Mutations become durable only
// through Store.Persist (state) and Store.SaveConfig (config record).
type Deployment struct {
	Name   string
	Dir    string
	Config *Config
	State  State
}

// Summary is the one-line view of a deployment used by list output.
type Summary struct {
	Name     string `json:"name"`
	Phase    Phase  `json:"phase"`
	FailedAt Phase  `json:"failed_at,omitempty"`
	Provider string `json:"provider"`
	Address  string `json:"address,omitempty"`
}

// ValidateName checks that a deployment name is safe to use as a directory
// name.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid deployment name %q: use lowercase letters, digits, '-' and '_', max 63 characters", name)
	}
	return nil
}

func (s *Store) deploymentsDir() string {
	return filepath.Join(s.Root, "deployments")
}

func (s *Store) dir(name string) string {
	return filepath.Join(s.deploymentsDir(), name)
}

// Exists reports whether a deployment directory exists for name.
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.dir(name))
	return err == nil && info.IsDir()
}

// Create makes a new, empty deployment in phase Unprovisioned and pins the
// bundled provisioning templates into its directory. It fails with
// ErrNameConflict when a directory for the name already exists, leaving the
// existing deployment untouched.
func (s *Store) Create(name string) (*Deployment, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	dir := s.dir(name)
	if s.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrNameConflict, name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create deployment directory: %w", err)
	}

	now := time.Now().UTC()
	d := &Deployment{
		Name:   name,
		Dir:    dir,
		Config: &Config{ProjectName: name},
		State: State{
			Phase:     PhaseUnprovisioned,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := s.Persist(d); err != nil {
		return nil, err
	}
	if s.Templates != nil {
		if err := s.pinTemplates(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Open loads an existing deployment. It fails with ErrNotFound when no
// directory exists for the name.
func (s *Store) Open(name string) (*Deployment, error) {
	if !s.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	dir := s.dir(name)

	d := &Deployment{Name: name, Dir: dir, Config: &Config{}}

	if data, err := os.ReadFile(filepath.Join(dir, configFile)); err == nil {
		d.Config = ParseConfig(data)
	}

	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &d.State); err != nil {
			return nil, fmt.Errorf("failed to parse state record for %s: %w", name, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Pre-phase-record deployment; treat as unprovisioned.
		d.State.Phase = PhaseUnprovisioned
	default:
		return nil, fmt.Errorf("failed to read state record for %s: %w", name, err)
	}
	return d, nil
}

// Names returns the sorted deployment names. Callers summarize one
// deployment at a time so a directory scan can restart cheaply.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.deploymentsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Summarize reads a single deployment's summary line.
func (s *Store) Summarize(name string) (Summary, error) {
	d, err := s.Open(name)
	if err != nil {
		return Summary{}, err
	}
	provider := d.State.Provider
	if provider == "" {
		provider = d.Config.Provider
	}
	if provider == "" {
		provider = "unknown"
	}
	return Summary{
		Name:     name,
		Phase:    d.State.Phase,
		FailedAt: d.State.FailedAt,
		Provider: provider,
		Address:  d.State.Address,
	}, nil
}

// Persist writes the deployment's state record atomically: the new record
// is written to a temp file in the same directory and renamed over the old
// one, so a crash mid-write never corrupts the last known good state. This
// is the only path by which the on-disk phase changes.
func (s *Store) Persist(d *Deployment) error {
	d.State.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(&d.State)
	if err != nil {
		return fmt.Errorf("failed to encode state record: %w", err)
	}
	return atomicWrite(filepath.Join(d.Dir, stateFile), data, 0o600)
}

// SaveConfig writes the deployment's configuration record.
func (s *Store) SaveConfig(d *Deployment) error {
	return atomicWrite(filepath.Join(d.Dir, configFile), d.Config.Marshal(), 0o600)
}

// Delete removes a deployment's directory tree. Callers must have collected
// destroy confirmation first; the store does not second-guess them.
func (s *Store) Delete(name string) error {
	if !s.Exists(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return os.RemoveAll(s.dir(name))
}

// pinTemplates copies the bundled terraform and ansible trees into the
// deployment directory so later upgrades of the orchestrator never alter an
// existing deployment's already-applied configuration.
func (s *Store) pinTemplates(d *Deployment) error {
	for _, sub := range []string{"terraform", "ansible"} {
		if err := copyFS(s.Templates, sub, filepath.Join(d.Dir, sub)); err != nil {
			return fmt.Errorf("failed to pin %s templates: %w", sub, err)
		}
	}
	return nil
}

func copyFS(src fs.FS, root, dst string) error {
	return fs.WalkDir(src, root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o600)
	})
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Per-deployment path helpers.

// ConfigPath returns the path of the configuration record.
func (d *Deployment) ConfigPath() string { return filepath.Join(d.Dir, configFile) }

// StateBlobPath returns the path of the provisioning backend's opaque state.
func (d *Deployment) StateBlobPath() string { return filepath.Join(d.Dir, tfStateFile) }

// InventoryPath returns the path of the generated inventory artifact.
func (d *Deployment) InventoryPath() string { return filepath.Join(d.Dir, inventoryFile) }

// PrivateKeyPath returns the path of the generated private key.
func (d *Deployment) PrivateKeyPath() string { return filepath.Join(d.Dir, privateKeyFile) }

// PublicKeyPath returns the path of the generated public key.
func (d *Deployment) PublicKeyPath() string { return filepath.Join(d.Dir, publicKeyFile) }

// TerraformDir returns the pinned provisioning template directory for the
// given provider.
func (d *Deployment) TerraformDir(provider string) string {
	return filepath.Join(d.Dir, "terraform", "providers", provider)
}

// AnsibleDir returns the pinned configuration template directory.
func (d *Deployment) AnsibleDir() string { return filepath.Join(d.Dir, "ansible") }

// HasStateBlob reports whether the provisioning backend has recorded any
// state for this deployment. The blob itself is opaque to the orchestrator.
func (d *Deployment) HasStateBlob() bool {
	info, err := os.Stat(d.StateBlobPath())
	return err == nil && info.Size() > 0
}
