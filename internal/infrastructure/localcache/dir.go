package localcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir stores one file per key under a device directory. Writes go through a
// temp file and rename so a crash never leaves a torn entry.
type Dir struct {
	root string
}

func NewDir(root, prefix string) (*Dir, error) {
	dir := filepath.Join(root, prefix)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Dir{root: dir}, nil
}

func (c *Dir) path(key string) string {
	return filepath.Join(c.root, key+".cbor")
}

func (c *Dir) Get(_ context.Context, key string, dest any) (bool, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	if err := unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache value %s: %w", key, err)
	}
	return true, nil
}

func (c *Dir) Set(_ context.Context, key string, value any) error {
	data, err := marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(c.root, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), c.path(key))
}
