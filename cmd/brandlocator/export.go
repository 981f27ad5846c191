// cmd/brandlocator/export.go
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/output"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		formats []string
		dest    string
	)
	valid := make([]string, 0, len(output.ValidFormats()))
	for _, f := range output.ValidFormats() {
		valid = append(valid, string(f))
	}

	cmd := &cobra.Command{
		Use:   "export directory.json",
		Short: "Export a merged directory to files or databases",
		Example: `  brandlocator export output/directory.json --format csv,xlsx
  brandlocator export output/directory.json --format postgres --dest "postgres://localhost/retail?sslmode=disable"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest != "" && len(formats) > 1 {
				return errors.Newf(errors.KindInput, "export", "--dest applies to a single --format")
			}
			for _, f := range formats {
				if !output.Format(f).IsValid() {
					return errors.Newf(errors.KindConfig, "export", "unsupported format %q (valid: %s)", f, strings.Join(valid, ", "))
				}
			}

			dir, err := output.ReadDirectory(args[0])
			if err != nil {
				return err
			}

			mm := a.metrics()
			manager := output.NewManager(a.cfg.Output, a.logger)
			var errs []error
			for _, f := range formats {
				err := manager.Export(cmd.Context(), output.Format(f), dest, dir)
				if mm != nil {
					mm.ObserveExport(f, err)
				}
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(a.stdout, "exported %d stores as %s\n", len(dir.Stores), f)
			}
			if err := a.flushMetrics(mm); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", []string{string(output.FormatCSV)}, "export formats: "+strings.Join(valid, ", "))
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "output file or database DSN (defaults from output config)")
	return cmd
}
