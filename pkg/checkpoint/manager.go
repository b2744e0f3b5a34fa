package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/persist"
)

// MetadataVersion is the current checkpoint metadata format version.
const MetadataVersion = 1

// Sentinel errors for checkpoint validation.
var (
	ErrRootMismatch    = errors.New("checkpoint root mismatch")
	ErrModeMismatch    = errors.New("checkpoint mode mismatch")
	ErrVersionMismatch = errors.New("checkpoint version mismatch")
	ErrExpired         = errors.New("checkpoint expired")
)

// DefaultMaxAge is how long a checkpoint stays resumable.
const DefaultMaxAge = 7 * 24 * time.Hour

const (
	metadataName  = "checkpoint"
	inventoryName = "inventory"
)

// DefaultDir returns the default checkpoint directory (~/.compactor/checkpoints).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".compactor", "checkpoints")
}

// RootHash computes a short hash of a root directory for use as directory name.
func RootHash(root string) string {
	h := sha256.Sum256([]byte(filepath.Clean(root)))

	return hex.EncodeToString(h[:8])
}

// Run is a restored checkpoint.
type Run struct {
	Metadata Metadata
	Folder   *inventory.Folder
}

// Manager reads and writes the checkpoint of one root directory.
type Manager struct {
	BaseDir  string
	RootHash string
	MaxAge   time.Duration

	meta   *persist.Persister[Metadata]
	folder *persist.Persister[inventory.Folder]
	now    func() time.Time
}

// NewManager creates a manager for root under baseDir.
func NewManager(baseDir, root string) *Manager {
	return &Manager{
		BaseDir:  baseDir,
		RootHash: RootHash(root),
		MaxAge:   DefaultMaxAge,
		meta:     persist.NewPersister[Metadata](metadataName, persist.NewJSONCodec()),
		folder:   persist.NewPersister[inventory.Folder](inventoryName, persist.NewJSONCodec()),
		now:      time.Now,
	}
}

// CheckpointDir returns the directory for this root's checkpoint.
func (m *Manager) CheckpointDir() string {
	return filepath.Join(m.BaseDir, m.RootHash)
}

// MetadataPath returns the path to the metadata file.
func (m *Manager) MetadataPath() string {
	return filepath.Join(m.CheckpointDir(), m.meta.Filename())
}

// Exists reports whether a checkpoint has been saved.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.MetadataPath())

	return err == nil
}

// Clear removes the checkpoint for this root.
func (m *Manager) Clear() error {
	err := os.RemoveAll(m.CheckpointDir())
	if err != nil {
		return fmt.Errorf("remove checkpoint dir: %w", err)
	}

	return nil
}

// Save records folder as the state of an interrupted run. The inventory is
// written before the metadata so Exists never reports a half-written
// checkpoint.
func (m *Manager) Save(folder *inventory.Folder, mode, runID string, processed int) error {
	dir := m.CheckpointDir()

	err := m.folder.Save(dir, folder)
	if err != nil {
		return fmt.Errorf("save checkpoint inventory: %w", err)
	}

	meta := Metadata{
		Version:   MetadataVersion,
		Root:      folder.Path,
		RootHash:  m.RootHash,
		Mode:      mode,
		RunID:     runID,
		CreatedAt: m.now().UTC().Format(time.RFC3339),
		Processed: processed,
		Remaining: folder.Len(),
	}

	err = m.meta.Save(dir, &meta)
	if err != nil {
		return fmt.Errorf("save checkpoint metadata: %w", err)
	}

	return nil
}

// LoadMetadata loads the checkpoint metadata.
func (m *Manager) LoadMetadata() (*Metadata, error) {
	meta, err := m.meta.Load(m.CheckpointDir())
	if err != nil {
		return nil, fmt.Errorf("load checkpoint metadata: %w", err)
	}

	return meta, nil
}

// Validate checks that the checkpoint belongs to root and mode and is recent enough.
func (m *Manager) Validate(root, mode string) error {
	meta, err := m.LoadMetadata()
	if err != nil {
		return err
	}

	if meta.Version != MetadataVersion {
		return fmt.Errorf("%w: checkpoint has %d, want %d", ErrVersionMismatch, meta.Version, MetadataVersion)
	}

	if filepath.Clean(meta.Root) != filepath.Clean(root) {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrRootMismatch, meta.Root, root)
	}

	if meta.Mode != mode {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrModeMismatch, meta.Mode, mode)
	}

	created, err := time.Parse(time.RFC3339, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("parse checkpoint time: %w", err)
	}

	if m.MaxAge > 0 && m.now().Sub(created) > m.MaxAge {
		return fmt.Errorf("%w: created %s", ErrExpired, meta.CreatedAt)
	}

	return nil
}

// Load validates and restores the checkpoint for root and mode.
func (m *Manager) Load(root, mode string) (*Run, error) {
	err := m.Validate(root, mode)
	if err != nil {
		return nil, err
	}

	meta, err := m.LoadMetadata()
	if err != nil {
		return nil, err
	}

	folder, err := m.folder.Load(m.CheckpointDir())
	if err != nil {
		return nil, fmt.Errorf("load checkpoint inventory: %w", err)
	}

	return &Run{Metadata: *meta, Folder: folder}, nil
}
