// internal/merge/load.go
package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Dataset is one brand's stores read from a per-brand file.
type Dataset struct {
	Path     string
	Brand    string
	Platform types.Platform
	Records  []types.RawLocationRecord
	// Ignored counts store entries carrying neither a name nor an id.
	Ignored int
}

// LoadError records an input file that could not be read.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e LoadError) Unwrap() error { return e.Err }

// datasetFile is the subset of a per-brand file the merge reads.
type datasetFile struct {
	Brand    string                   `json:"brand"`
	Platform string                   `json:"platform"`
	Stores   []map[string]interface{} `json:"stores"`
}

// LoadDataset reads one per-brand file. The brand comes from a namer
// override, else the file's brand field, else the file name. Store entries
// without a name or id key are not stores and are ignored.
func LoadDataset(path string, namer *BrandNamer, defaultPlatform types.Platform) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInput, "merge.load", err)
	}
	return ParseDataset(path, data, namer, defaultPlatform)
}

// ParseDataset decodes a per-brand file already in memory.
func ParseDataset(path string, data []byte, namer *BrandNamer, defaultPlatform types.Platform) (*Dataset, error) {
	var file datasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "merge.parse", fmt.Errorf("%s: %w", path, err))
	}

	ds := &Dataset{Path: path, Platform: defaultPlatform}
	switch {
	case namer.HasOverride(path):
		ds.Brand = namer.Name(path)
	case file.Brand != "":
		ds.Brand = file.Brand
	default:
		ds.Brand = namer.Name(path)
	}
	if p := types.Platform(file.Platform); p.IsValid() {
		ds.Platform = p
	}

	ds.Records = make([]types.RawLocationRecord, 0, len(file.Stores))
	for _, payload := range file.Stores {
		_, hasName := payload["name"]
		_, hasID := payload["id"]
		if !hasName && !hasID {
			ds.Ignored++
			continue
		}
		ds.Records = append(ds.Records, types.RecordFromPayload(ds.Platform, payload))
	}
	return ds, nil
}

// LoadDatasets parses paths in parallel and returns the readable datasets in
// the order given. Unreadable files are logged and reported, never fatal.
func LoadDatasets(ctx context.Context, paths []string, namer *BrandNamer, defaultPlatform types.Platform, logger utils.Logger) ([]*Dataset, []LoadError) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	slots := make([]*Dataset, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			ds, err := LoadDataset(path, namer, defaultPlatform)
			if err != nil {
				errs[i] = err
				return nil
			}
			slots[i] = ds
			return nil
		})
	}
	_ = g.Wait()

	datasets := make([]*Dataset, 0, len(paths))
	var failures []LoadError
	for i, path := range paths {
		if errs[i] != nil {
			logger.WithField("file", path).Errorf("skipping unreadable input: %v", errs[i])
			failures = append(failures, LoadError{Path: path, Err: errs[i]})
			continue
		}
		logger.WithFields(map[string]interface{}{
			"file":    path,
			"brand":   slots[i].Brand,
			"stores":  len(slots[i].Records),
			"ignored": slots[i].Ignored,
		}).Info("loaded brand dataset")
		datasets = append(datasets, slots[i])
	}
	return datasets, failures
}
