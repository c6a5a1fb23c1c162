package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"

	"bjs/parser/internal/domain"
)

// fileResumeCache keeps the cache in memory and rewrites its two JSON files on every change
type fileResumeCache struct {
	itemsPath     string
	completedPath string

	items     map[string]map[string]domain.Item
	completed map[string]struct{}
}

// NewFileResumeCache loads the cache files if they exist
func NewFileResumeCache(itemsPath, completedPath string) (ResumeCache, error) {
	c := &fileResumeCache{
		itemsPath:     itemsPath,
		completedPath: completedPath,
		items:         make(map[string]map[string]domain.Item),
		completed:     make(map[string]struct{}),
	}

	if err := readJSON(itemsPath, &c.items); err != nil {
		return nil, err
	}

	var completed []string
	if err := readJSON(completedPath, &completed); err != nil {
		return nil, err
	}
	for _, key := range completed {
		c.completed[key] = struct{}{}
	}

	return c, nil
}

func (c *fileResumeCache) Completed(_ context.Context, path domain.Path) (bool, error) {
	_, ok := c.completed[path.Key()]
	return ok, nil
}

func (c *fileResumeCache) Items(_ context.Context, path domain.Path) (map[string]domain.Item, bool, error) {
	items, ok := c.items[path.Key()]
	return maps.Clone(items), ok, nil
}

func (c *fileResumeCache) PutItems(_ context.Context, path domain.Path, items map[string]domain.Item) error {
	c.items[path.Key()] = maps.Clone(items)
	return c.flushItems()
}

func (c *fileResumeCache) RollUp(_ context.Context, path domain.Path, items map[string]domain.Item) error {
	for key := range c.items {
		if isDirectChild(key, path) {
			delete(c.items, key)
		}
	}
	c.items[path.Key()] = maps.Clone(items)
	return c.flushItems()
}

func (c *fileResumeCache) MarkCompleted(_ context.Context, path domain.Path) error {
	c.completed[path.Key()] = struct{}{}

	keys := make([]string, 0, len(c.completed))
	for key := range c.completed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return writeJSON(c.completedPath, keys)
}

func (c *fileResumeCache) flushItems() error {
	return writeJSON(c.itemsPath, c.items)
}

// readJSON leaves v untouched when the file is missing or empty
func readJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode cache %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces the file through a temporary sibling and a rename,
// so an interrupted write leaves the previous contents readable
func writeJSON(path string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace cache %s: %w", path, err)
	}
	return nil
}
