// cmd/brandlocator/detect.go
package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/pipeline"
)

func newDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect url...",
		Short: "Identify the store locator platform behind each page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c := pipeline.Build(a.cfg, nil, a.logger)

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.SetOutputMirror(a.stdout)
			t.AppendHeader(table.Row{"URL", "Platform", "Instance", "Strategy", "Rule", "Error"})

			detected := 0
			for _, u := range args {
				src, _, err := c.Detector.DetectPage(cmd.Context(), c.Client, u)
				msg := ""
				if err != nil {
					msg = err.Error()
				}
				if src.Detected() {
					detected++
				}
				t.AppendRow(table.Row{u, string(src.Platform), src.InstanceID, string(src.Strategy), src.Rule, msg})
			}
			t.Render()

			if detected == 0 {
				return errors.Newf(errors.KindDetectionFailed, "detect", "no store locator platform detected on %d page(s)", len(args))
			}
			return nil
		},
	}
}
