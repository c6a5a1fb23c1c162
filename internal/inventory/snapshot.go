package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bjs/parser/internal/domain"
)

// Snapshot persists the inventory document at a file path
type Snapshot struct {
	path string
}

func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

func (s *Snapshot) Path() string {
	return s.path
}

// Exists reports whether a snapshot has been written before
func (s *Snapshot) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat snapshot %s: %w", s.path, err)
}

func (s *Snapshot) Load() (*domain.Inventory, error) {
	return Load(s.path)
}

// Reset replaces the snapshot with an empty inventory
func (s *Snapshot) Reset() (*domain.Inventory, error) {
	inventory := domain.NewInventory()
	if err := s.Save(inventory); err != nil {
		return nil, err
	}
	return inventory, nil
}

// Save writes the whole document to a temporary file and renames it over the snapshot,
// so a crash mid-write leaves the previous page's snapshot intact
func (s *Snapshot) Save(inventory *domain.Inventory) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(inventory); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", s.path, err)
	}
	return nil
}

// Load reads an inventory document from path
func Load(path string) (*domain.Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory %s: %w", path, err)
	}
	defer f.Close()

	inventory := domain.NewInventory()
	if err := json.NewDecoder(f).Decode(inventory); err != nil {
		return nil, fmt.Errorf("failed to decode inventory %s: %w", path, err)
	}
	if inventory.Items == nil {
		inventory.Items = make([]domain.Item, 0)
	}
	return inventory, nil
}
