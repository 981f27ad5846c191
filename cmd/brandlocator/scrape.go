// cmd/brandlocator/scrape.go
package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/output"
	"github.com/valpere/BrandLocator/internal/pipeline"
	"github.com/valpere/BrandLocator/internal/utils"
)

type scrapeOptions struct {
	brandsFile string
	name       string
	platform   string
	instanceID string
	outDir     string
	noBrowser  bool
	brandDelay time.Duration
}

func newScrapeCmd(a *app) *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Scrape brand store locators into per-brand JSON files",
		Example: `  brandlocator scrape https://rishi-tea.com/pages/store-locator --name "Rishi Tea"
  brandlocator scrape --brands brands.yaml --out output/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScrape(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.brandsFile, "brands", "b", "", "brand list file (YAML list or name: url mapping)")
	f.StringVarP(&opts.name, "name", "n", "", "brand name for a single url")
	f.StringVar(&opts.platform, "platform", "", "skip detection: platform of a single url")
	f.StringVar(&opts.instanceID, "instance-id", "", "skip detection: platform instance id of a single url")
	f.StringVarP(&opts.outDir, "out", "o", "", "output directory (overrides output.dir)")
	f.BoolVar(&opts.noBrowser, "no-browser", false, "disable the headless browser fallback")
	f.DurationVar(&opts.brandDelay, "brand-delay", -1, "pause between brands (overrides http.brand_delay)")
	return cmd
}

func (a *app) runScrape(cmd *cobra.Command, args []string, opts *scrapeOptions) error {
	targets, err := scrapeTargets(a.cfg, args, opts)
	if err != nil {
		return err
	}

	cfg := a.cfg
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	if opts.noBrowser {
		cfg.Browser.Enabled = false
	}
	delay := cfg.HTTP.BrandDelay
	if opts.brandDelay >= 0 {
		delay = opts.brandDelay
	}

	p, components := pipeline.Build(cfg, nil, a.logger)
	mm := a.metrics()
	if mm != nil {
		mm.Attach(p, components)
	}
	manager := output.NewManager(cfg.Output, a.logger)

	files := make(map[*pipeline.Outcome]string)
	sink := func(o *pipeline.Outcome) error {
		path, err := manager.WriteScrapeResult(o.Result)
		if err != nil {
			return err
		}
		files[o] = path
		return nil
	}

	report, runErr := p.ScrapeBatch(cmd.Context(), targets, delay, sink)
	renderScrapeReport(a.stdout, report, files)

	if err := a.flushMetrics(mm); err != nil {
		a.logger.Warnf("metrics not written: %v", err)
	}
	if runErr != nil {
		return runErr
	}
	if len(report.SinkErrors) > 0 {
		errs := make([]error, 0, len(report.SinkErrors))
		for _, e := range report.SinkErrors {
			errs = append(errs, e)
		}
		return errors.New(errors.KindOutput, "scrape.write", errors.Join(errs...))
	}
	return nil
}

// scrapeTargets resolves targets from positional urls, the brand list file,
// or the configured targets, in that order.
func scrapeTargets(cfg *config.Config, args []string, opts *scrapeOptions) ([]config.BrandTarget, error) {
	var targets []config.BrandTarget

	if opts.brandsFile != "" {
		list, err := config.LoadBrandTargets(opts.brandsFile)
		if err != nil {
			return nil, err
		}
		targets = append(targets, list...)
	}

	if len(args) > 1 && (opts.name != "" || opts.platform != "" || opts.instanceID != "") {
		return nil, errors.Newf(errors.KindInput, "scrape.targets", "--name, --platform and --instance-id apply to a single url")
	}
	for _, u := range args {
		targets = append(targets, config.BrandTarget{
			Name:       opts.name,
			URL:        u,
			Platform:   opts.platform,
			InstanceID: opts.instanceID,
		})
	}

	if len(targets) == 0 {
		targets = append(targets, cfg.Brands.Targets...)
	}
	if len(targets) == 0 {
		return nil, errors.Newf(errors.KindInput, "scrape.targets", "no brands to scrape: pass urls, --brands or configure brands.targets")
	}
	return targets, nil
}

func renderScrapeReport(w io.Writer, report *pipeline.BatchReport, files map[*pipeline.Outcome]string) {
	if report == nil {
		return
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("Scrape results")
	t.AppendHeader(table.Row{"Brand", "Platform", "Strategy", "Stores", "Duplicates", "Chains", "File", "Status"})

	for _, o := range report.Outcomes {
		brand := o.Target.Name
		if brand == "" {
			brand = utils.TruncateString(o.Target.URL, 40)
		}
		status := "ok"
		switch {
		case len(o.Errors) > 0:
			status = utils.TruncateString(o.Errors[len(o.Errors)-1].Message, 60)
		case o.Result.TotalStores == 0:
			status = "empty"
		}
		t.AppendRow(table.Row{
			brand,
			string(o.Result.Platform),
			string(o.Result.Strategy),
			o.Result.TotalStores,
			o.Result.DuplicatesRemoved,
			o.Result.ExcludedChains,
			files[o],
			status,
		})
	}
	t.AppendFooter(table.Row{"Total", "", "", report.TotalStores, "", "", "", utils.FormatDuration(report.Duration)})
	t.Render()

	if len(report.EmptyBrands) > 0 {
		fmt.Fprintf(w, "%d brand(s) returned no stores\n", len(report.EmptyBrands))
	}
}
