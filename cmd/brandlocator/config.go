// cmd/brandlocator/config.go
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/errors"
)

func newValidateCmd(a *app) *cobra.Command {
	var brandsFile string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and an optional brand list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := a.cfg.ValidateWithDetails()
			for _, w := range result.Warnings {
				fmt.Fprintf(a.stdout, "warning: %s\n", w)
			}

			source := a.configFile
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(a.stdout, "✓ Configuration '%s' is valid\n", source)

			if brandsFile != "" {
				targets, err := config.LoadBrandTargets(brandsFile)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "✓ Brand list '%s' has %d brand(s)\n", brandsFile, len(targets))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&brandsFile, "brands", "b", "", "brand list file to check")
	return cmd
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a configuration file with the default settings",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "brandlocator.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf(errors.KindInput, "init", "%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveToFile(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "✓ Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "brandlocator %s\n", version)
			fmt.Fprintf(a.stdout, "  built:  %s\n", buildTime)
			fmt.Fprintf(a.stdout, "  commit: %s\n", gitCommit)
			fmt.Fprintf(a.stdout, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
