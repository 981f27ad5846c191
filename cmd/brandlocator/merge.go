// cmd/brandlocator/merge.go
package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/merge"
	"github.com/valpere/BrandLocator/internal/output"
	"github.com/valpere/BrandLocator/pkg/types"
)

type mergeOptions struct {
	out       string
	brands    []string
	quiet     bool
	topStores int
}

func newMergeCmd(a *app) *cobra.Command {
	opts := &mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge file|dir...",
		Short: "Merge per-brand files into one directory of physical stores",
		Long: `merge reads per-brand scrape files (directories are expanded to their
*.json files) in the order given, resolves each location to a physical store
and writes the merged directory as JSON. Unreadable files are skipped.`,
		Example: `  brandlocator merge output/
  brandlocator merge alice.json yolele_enriched.json --brand yolele_enriched.json=Yolele`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMerge(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "", "directory file (default <output.dir>/directory.json)")
	f.StringArrayVar(&opts.brands, "brand", nil, "pin a brand name: file=Brand Name (repeatable)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "skip the summary tables")
	f.IntVar(&opts.topStores, "top", -1, "stores listed in the multi-brand table (overrides merge.top_stores)")
	return cmd
}

func (a *app) runMerge(cmd *cobra.Command, args []string, opts *mergeOptions) error {
	out := opts.out
	if out == "" {
		out = filepath.Join(a.cfg.Output.Dir, "directory.json")
	}
	paths, err := expandInputs(args, out)
	if err != nil {
		return err
	}

	namer := merge.NewBrandNamer(a.cfg.Brands)
	for _, pin := range opts.brands {
		file, brand, ok := strings.Cut(pin, "=")
		if !ok || strings.TrimSpace(file) == "" || strings.TrimSpace(brand) == "" {
			return errors.Newf(errors.KindInput, "merge.brand", "invalid --brand %q, want file=Brand Name", pin)
		}
		namer.Override(strings.TrimSpace(file), strings.TrimSpace(brand))
	}

	report := merge.Run(cmd.Context(), paths, merge.Options{
		DefaultPlatform: types.Platform(a.cfg.Merge.DefaultPlatform),
		Namer:           namer,
	}, a.logger)
	for _, f := range report.Failures {
		a.logger.WithField("file", f.Path).Warnf("skipped: %v", f.Err)
	}

	mm := a.metrics()
	if mm != nil {
		mm.ObserveMerge(report)
		mm.ObserveDirectory(report.Directory)
	}

	if len(report.Failures) == len(paths) {
		return errors.Newf(errors.KindInput, "merge", "none of the %d input file(s) could be read", len(paths))
	}

	manager := output.NewManager(a.cfg.Output, a.logger)
	exportErr := manager.Export(cmd.Context(), output.FormatJSON, out, report.Directory)
	if mm != nil {
		mm.ObserveExport(string(output.FormatJSON), exportErr)
	}
	if exportErr != nil {
		return exportErr
	}

	if !opts.quiet {
		top := a.cfg.Merge.TopStores
		if opts.topStores >= 0 {
			top = opts.topStores
		}
		merge.Summarize(report.Directory, top, a.cfg.Merge.SimilarityThreshold).Render(a.stdout)
	}
	return a.flushMetrics(mm)
}

// expandInputs replaces directories with their *.json files, sorted by name,
// leaving out the merge's own output file. Files are kept in argument order.
func expandInputs(args []string, exclude string) ([]string, error) {
	skip, _ := filepath.Abs(exclude)
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, errors.New(errors.KindInput, "merge.inputs", err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if abs, _ := filepath.Abs(m); abs == skip {
				continue
			}
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, errors.Newf(errors.KindInput, "merge.inputs", "no input files found in %s", strings.Join(args, ", "))
	}
	return paths, nil
}
