// internal/pipeline/batch.go
package pipeline

import (
	"context"
	"time"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/utils"
)

// Sink receives each finished outcome, typically to write its file.
type Sink func(o *Outcome) error

// BatchReport summarises a batch run.
type BatchReport struct {
	Outcomes    []*Outcome
	SinkErrors  map[string]error
	TotalStores int
	EmptyBrands []string
	Duration    time.Duration
}

// ScrapeBatch scrapes targets sequentially, pausing brandDelay between
// brands. A failing brand or sink never stops the batch; only a cancelled
// context does, in which case the outcomes so far are returned with the
// context error.
func (p *Pipeline) ScrapeBatch(ctx context.Context, targets []config.BrandTarget, brandDelay time.Duration, sink Sink) (*BatchReport, error) {
	started := time.Now()
	pacer := utils.NewPacer(brandDelay)
	report := &BatchReport{SinkErrors: make(map[string]error)}

	for i, target := range targets {
		if err := pacer.Wait(ctx); err != nil {
			report.Duration = time.Since(started)
			return report, err
		}

		p.logger.WithFields(map[string]interface{}{
			"brand":    target.Name,
			"position": i + 1,
			"total":    len(targets),
		}).Info("scraping brand")

		out := p.Scrape(ctx, target)
		report.Outcomes = append(report.Outcomes, out)
		report.TotalStores += out.Result.TotalStores
		if out.Result.TotalStores == 0 {
			report.EmptyBrands = append(report.EmptyBrands, target.Name)
		}

		if sink != nil {
			if err := sink(out); err != nil {
				p.logger.WithField("brand", target.Name).Errorf("failed to write result: %v", err)
				report.SinkErrors[target.Name] = err
			}
		}
	}

	report.Duration = time.Since(started)
	p.logger.WithFields(map[string]interface{}{
		"brands":  len(targets),
		"stores":  report.TotalStores,
		"empty":   len(report.EmptyBrands),
		"elapsed": utils.FormatDuration(report.Duration),
	}).Info("batch complete")
	return report, nil
}
