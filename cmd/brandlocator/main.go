// cmd/brandlocator/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/monitoring"
	"github.com/valpere/BrandLocator/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		errorService := errors.NewService().WithVerbose(a.verbose)
		fmt.Fprint(stderr, errorService.FormatErrorForCLI(err))
		return errorService.GetExitCode(err)
	}
	return 0
}

// app carries global flags and the state shared by subcommands.
type app struct {
	configFile string
	envFile    string
	logLevel   string
	verbose    bool
	jsonLogs   bool
	noColor    bool
	metricsOut string

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger utils.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "brandlocator",
		Short: "Aggregate brand store locators into one retail directory",
		Long: `brandlocator finds the store locator widget behind each brand's website,
pulls every location through the widget's public API (or a headless browser
when detection fails), drops big-box chains, and merges all brands into one
directory keyed by physical store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "configuration file (YAML); defaults apply when omitted")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging and technical error details")
	flags.BoolVar(&a.jsonLogs, "json-logs", false, "write logs as JSON")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored log output")
	flags.StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics to this text file when the command ends")

	root.AddCommand(
		newScrapeCmd(a),
		newDetectCmd(a),
		newMergeCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newValidateCmd(a),
		newInitCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the environment and configuration and builds the logger.
func (a *app) setup() error {
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}
	if a.configFile == "" {
		a.configFile = os.Getenv("BRANDLOCATOR_CONFIG")
	}
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	if a.verbose {
		level = "debug"
	}
	a.logger = utils.NewSlogLogger(utils.LoggerOptions{
		Level:   utils.ParseLogLevel(level),
		Output:  a.stderr,
		NoColor: a.noColor,
		JSON:    a.jsonLogs,
	})
	return nil
}

// metrics returns a metrics manager when metrics are enabled.
func (a *app) metrics() *monitoring.MetricsManager {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	return monitoring.NewMetricsManager(a.cfg.Metrics.Namespace)
}

// flushMetrics writes mm to the --metrics-out text file.
func (a *app) flushMetrics(mm *monitoring.MetricsManager) error {
	if mm == nil || a.metricsOut == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsOut, mm.Registry()); err != nil {
		return errors.New(errors.KindOutput, "metrics.write", err)
	}
	a.logger.WithField("file", a.metricsOut).Debug("metrics written")
	return nil
}
