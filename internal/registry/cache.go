package registry

import (
	"sync"

	"llamadeskd/pkg/types"
)

// Cache holds the last scan of a models directory and supports rescanning on
// demand (the UI's refresh action).
type Cache struct {
	mu     sync.Mutex
	dir    string
	models []types.Model
}

// NewCache performs an initial scan of dir.
func NewCache(dir string) (*Cache, error) {
	c := &Cache{dir: dir}
	if _, err := c.Rescan(); err != nil {
		return nil, err
	}
	return c, nil
}

// ListModels returns the models from the last scan.
func (c *Cache) ListModels() []types.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Model(nil), c.models...)
}

// Rescan re-reads the directory and replaces the cached listing.
func (c *Cache) Rescan() ([]types.Model, error) {
	models, err := LoadDir(c.dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	return append([]types.Model(nil), models...), nil
}

// SetDir switches the scanned directory and rescans.
func (c *Cache) SetDir(dir string) ([]types.Model, error) {
	c.mu.Lock()
	c.dir = dir
	c.mu.Unlock()
	return c.Rescan()
}
