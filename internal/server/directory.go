// internal/server/directory.go
package server

import (
	"strings"
	"sync"
	"time"

	"github.com/valpere/BrandLocator/internal/output"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Directory holds the merged directory being served and swaps it atomically
// on reload.
type Directory struct {
	path string

	mu       sync.RWMutex
	dir      *types.MergedDirectory
	index    map[string]*types.CanonicalStoreRecord
	loadedAt time.Time
}

// NewDirectory creates a holder for the directory file at path.
func NewDirectory(path string) *Directory {
	return &Directory{path: path}
}

// Load reads the file and replaces the served directory. On error the
// previous directory stays in place.
func (d *Directory) Load() error {
	dir, err := output.ReadDirectory(d.path)
	if err != nil {
		return err
	}
	d.Set(dir)
	return nil
}

// Set replaces the served directory.
func (d *Directory) Set(dir *types.MergedDirectory) {
	index := dir.Index()
	d.mu.Lock()
	d.dir = dir
	d.index = index
	d.loadedAt = time.Now()
	d.mu.Unlock()
}

// Current returns the served directory, or nil before the first load.
func (d *Directory) Current() *types.MergedDirectory {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dir
}

// LoadedAt returns when the directory was last replaced.
func (d *Directory) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

// Lookup finds a store by identity key.
func (d *Directory) Lookup(key string) (*types.CanonicalStoreRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.index[key]
	return s, ok
}

// StoreFilter selects stores for the list endpoint. Empty fields match all.
type StoreFilter struct {
	Brand     string
	State     string
	City      string
	MinBrands int
}

// Match reports whether store passes the filter. Text comparisons ignore case.
func (f StoreFilter) Match(store *types.CanonicalStoreRecord) bool {
	if f.MinBrands > 0 && len(store.Brands) < f.MinBrands {
		return false
	}
	if f.State != "" && !strings.EqualFold(strings.TrimSpace(store.State), f.State) {
		return false
	}
	if f.City != "" && !strings.EqualFold(strings.TrimSpace(store.City), f.City) {
		return false
	}
	if f.Brand != "" {
		for _, b := range store.Brands {
			if strings.EqualFold(b, f.Brand) {
				return true
			}
		}
		return false
	}
	return true
}

// Filter returns the matching stores in directory order.
func (d *Directory) Filter(f StoreFilter) []*types.CanonicalStoreRecord {
	dir := d.Current()
	if dir == nil {
		return []*types.CanonicalStoreRecord{}
	}
	out := make([]*types.CanonicalStoreRecord, 0)
	for _, s := range dir.Stores {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
