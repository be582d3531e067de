// Package registry stores trained model artifacts on the local filesystem,
// addressed by model version and verified by sha256 digest.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/staffcast/staffcast/internal/domain"
)

// Store manages artifact blobs under dir/artifacts.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Init ensures the directory structure exists.
func (s *Store) Init() error {
	d := filepath.Join(s.dir, "artifacts")
	if err := os.MkdirAll(d, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d, err)
	}
	return nil
}

// Dir returns the artifact root.
func (s *Store) Dir() string { return s.dir }

// Path returns the filesystem path of a version's artifact.
func (s *Store) Path(version string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(version)
	return filepath.Join(s.dir, "artifacts", safe+".model.json")
}

// Put writes data for version atomically and returns its sha256 hex digest.
// An existing artifact is never replaced: Put reports domain.ErrAlreadyExists
// and leaves it untouched.
func (s *Store) Put(version string, data []byte) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	path := s.Path(version)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact %s: %w", version, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync artifact %s: %w", version, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact %s: %w", version, err)
	}
	// Link fails on an existing target, unlike Rename.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("artifact %s: %w", version, domain.ErrAlreadyExists)
		}
		return "", fmt.Errorf("install artifact %s: %w", version, err)
	}
	return computeSHA256(data), nil
}

// Get reads a version's artifact and checks it against digest. A missing
// file or digest mismatch is reported as domain.ErrArtifactCorrupted.
func (s *Store) Get(version, digest string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(version))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s missing: %w", version, domain.ErrArtifactCorrupted)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", version, err)
	}
	if got := computeSHA256(data); got != digest {
		return nil, fmt.Errorf("artifact %s digest %s, want %s: %w",
			version, got[:12], shortDigest(digest), domain.ErrArtifactCorrupted)
	}
	return data, nil
}

// Remove deletes a version's artifact. Removing a missing artifact is not an error.
func (s *Store) Remove(version string) error {
	err := os.Remove(s.Path(version))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove artifact %s: %w", version, err)
	}
	return nil
}

// Writable reports whether the artifact directory accepts new files.
// It does not create the directory; Init does.
func (s *Store) Writable() error {
	f, err := os.CreateTemp(filepath.Join(s.dir, "artifacts"), ".probe-*")
	if err != nil {
		return fmt.Errorf("artifact dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func computeSHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
