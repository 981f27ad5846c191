// internal/merge/engine.go
package merge

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Engine accumulates datasets into canonical stores keyed by identity.
// Stores live in a map arena keyed by identity string; order keeps the
// first-seen sequence. An Engine is used by a single goroutine.
type Engine struct {
	defaultPlatform types.Platform
	logger          utils.Logger

	stores     map[string]*types.CanonicalStoreRecord
	order      []string
	brandStats map[string]*types.BrandStats
	sources    []string
}

// NewEngine creates an empty engine.
func NewEngine(defaultPlatform types.Platform, logger utils.Logger) *Engine {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Engine{
		defaultPlatform: defaultPlatform,
		logger:          logger,
		stores:          make(map[string]*types.CanonicalStoreRecord),
		brandStats:      make(map[string]*types.BrandStats),
	}
}

// Add merges one dataset. A store seen before gains the dataset's brand
// unless it already carries it.
func (e *Engine) Add(ds *Dataset) *types.BrandStats {
	stats, ok := e.brandStats[ds.Brand]
	if !ok {
		stats = &types.BrandStats{}
		e.brandStats[ds.Brand] = stats
	}
	stats.TotalStores += len(ds.Records)

	before := *stats
	for _, rec := range ds.Records {
		key := IdentityKey(rec, e.defaultPlatform)
		if store, seen := e.stores[key]; seen {
			store.AddBrand(ds.Brand)
			stats.ExistingStores++
			continue
		}
		e.stores[key] = newCanonical(key, rec, ds.Brand)
		e.order = append(e.order, key)
		stats.NewStores++
	}
	e.sources = append(e.sources, ds.Path)

	e.logger.WithFields(map[string]interface{}{
		"brand":    ds.Brand,
		"file":     ds.Path,
		"stores":   len(ds.Records),
		"new":      stats.NewStores - before.NewStores,
		"existing": stats.ExistingStores - before.ExistingStores,
	}).Info("merged brand dataset")
	return stats
}

func newCanonical(key string, rec types.RawLocationRecord, brand string) *types.CanonicalStoreRecord {
	extra := make(map[string]interface{}, len(rec.Payload))
	for k, v := range rec.Payload {
		extra[k] = v
	}
	store := &types.CanonicalStoreRecord{
		IdentityKey: key,
		Name:        rec.Name,
		AddressLine: addressOf(rec),
		City:        rec.City,
		State:       rec.State,
		Extra:       extra,
	}
	store.AddBrand(brand)
	return store
}

// Len returns the number of canonical stores.
func (e *Engine) Len() int { return len(e.order) }

// Store returns the canonical store for key.
func (e *Engine) Store(key string) (*types.CanonicalStoreRecord, bool) {
	s, ok := e.stores[key]
	return s, ok
}

// Directory snapshots the merge as a directory. Stores are in first-seen order.
func (e *Engine) Directory(runID string, mergedAt time.Time) *types.MergedDirectory {
	stores := make([]*types.CanonicalStoreRecord, 0, len(e.order))
	for _, key := range e.order {
		stores = append(stores, e.stores[key])
	}
	stats := make(map[string]*types.BrandStats, len(e.brandStats))
	for brand, s := range e.brandStats {
		copied := *s
		stats[brand] = &copied
	}
	return &types.MergedDirectory{
		RunID:       runID,
		MergedAt:    mergedAt,
		SourceFiles: append([]string{}, e.sources...),
		TotalStores: len(stores),
		BrandStats:  stats,
		Stores:      stores,
	}
}

// Options control a merge run.
type Options struct {
	DefaultPlatform types.Platform
	Namer           *BrandNamer
}

// Report is the outcome of Run.
type Report struct {
	Directory *types.MergedDirectory
	Failures  []LoadError
}

// Run loads paths and merges them in the order given. Files that cannot be
// read are skipped and listed in the report.
func Run(ctx context.Context, paths []string, opts Options, logger utils.Logger) *Report {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if opts.Namer == nil {
		opts.Namer = NewBrandNamer(config.Default().Brands)
	}
	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)

	datasets, failures := LoadDatasets(ctx, paths, opts.Namer, opts.DefaultPlatform, log)

	engine := NewEngine(opts.DefaultPlatform, log)
	for _, ds := range datasets {
		engine.Add(ds)
	}

	dir := engine.Directory(runID, time.Now())
	log.WithFields(map[string]interface{}{
		"files":   len(paths),
		"skipped": len(failures),
		"stores":  dir.TotalStores,
		"brands":  len(dir.BrandStats),
	}).Info("merge complete")
	return &Report{Directory: dir, Failures: failures}
}
