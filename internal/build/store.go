package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store persists checkpoints as one JSON file per structure id under
// the data directory. Writes go through a temp file and an atomic
// rename so a crash never leaves a partial checkpoint.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(structureID string) string {
	return filepath.Join(s.dir, structureID+".checkpoint.json")
}

// Load restores the checkpoint for a structure. A missing file yields
// a fresh survey-phase checkpoint, so the first build step of a new
// structure needs no special casing.
func (s *Store) Load(structureID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(structureID))
	if err != nil {
		if os.IsNotExist(err) {
			return NewCheckpoint(), nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", structureID, err)
	}
	cp, err := Restore(data)
	if err != nil {
		return nil, fmt.Errorf("restore checkpoint %s: %w", structureID, err)
	}
	return cp, nil
}

// Save persists the checkpoint for a structure.
func (s *Store) Save(structureID string, cp *Checkpoint) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	data, err := cp.Serialize()
	if err != nil {
		return err
	}

	path := s.path(structureID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}

// Delete removes a structure's checkpoint, used once inspection has
// completed.
func (s *Store) Delete(structureID string) error {
	err := os.Remove(s.path(structureID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint %s: %w", structureID, err)
	}
	return nil
}
