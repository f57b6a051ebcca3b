package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChicagoDave/buildstock/internal/config"
	"github.com/ChicagoDave/buildstock/internal/logging"
)

var (
	cfg     *config.Config
	logger  *zap.Logger
	envFile string
	verbose bool
)

// errInvalid signals a failed validation that was already printed.
var errInvalid = errors.New("validation failed")

func main() {
	rootCmd := &cobra.Command{
		Use:           "buildstock",
		Short:         "Stock-driven building floor area, material and emissions model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(envFile)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			logger, err = logging.New(level, cfg.Dev)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "settings file read before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(survivalCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [project-path]",
		Short: "Run a scenario and write flow and emission tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default from BUILDSTOCK_OUTPUT_DIR)")
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", []string{"csv"}, "output formats: csv, xlsx, sql")
	cmd.Flags().BoolVar(&opts.force, "force", false, "write outputs even when balance checks fail")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent cohort computations (default from BUILDSTOCK_WORKERS)")
	cmd.Flags().BoolVar(&opts.totals, "totals", false, "add per-area and per-region total rows")
	cmd.Flags().StringVar(&opts.dbDriver, "db-driver", "", "sql format driver: sqlite3 or postgres")
	cmd.Flags().StringVar(&opts.dbDSN, "db", "", "sql format data source (default <output>/runs.db)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project-path]",
		Short: "Validate a scenario and its dataset without running the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func summaryCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "summary [project-path]",
		Short: "Run a scenario and print regional totals for one year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), args[0], year)
		},
	}

	cmd.Flags().IntVarP(&year, "year", "y", 0, "year to report (default horizon end)")
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve [project-path]",
		Short: "Start the results server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = cfg.Port
			}
			return runServe(cmd.Context(), args[0], port, watch)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP server port")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run when the scenario or dataset changes")
	return cmd
}

func survivalCmd() *cobra.Command {
	var opts survivalOptions

	cmd := &cobra.Command{
		Use:   "survival",
		Short: "Print a survival curve",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSurvival(opts)
		},
	}

	cmd.Flags().StringVar(&opts.family, "family", "weibull", "weibull or folded-normal")
	cmd.Flags().Float64Var(&opts.first, "first", 2, "Weibull shape or folded-normal mean")
	cmd.Flags().Float64Var(&opts.second, "second", 50, "Weibull scale or folded-normal standard deviation")
	cmd.Flags().IntVar(&opts.years, "years", 150, "number of ages")
	cmd.Flags().IntVar(&opts.step, "step", 10, "print every step-th age")
	return cmd
}

func initCmd() *cobra.Command {
	var (
		regions  int
		name     string
		force    bool
		dataOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init [project-path]",
		Short: "Create a project with a default scenario and a synthetic dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if dataOnly {
				return runInitData(args[0], regions)
			}
			return runInit(args[0], name, regions, force)
		},
	}

	cmd.Flags().IntVar(&regions, "regions", 3, "number of synthetic regions")
	cmd.Flags().StringVar(&name, "name", "baseline", "scenario name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project")
	cmd.Flags().BoolVar(&dataOnly, "data-only", false, "only write a synthetic dataset for the existing scenario")
	return cmd
}

func runsCmd() *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the result store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), driver, dsn)
		},
	}

	cmd.Flags().StringVar(&driver, "db-driver", "", "sqlite3 or postgres (default from BUILDSTOCK_DB_DRIVER)")
	cmd.Flags().StringVar(&dsn, "db", "", "data source (default from BUILDSTOCK_DB_DSN)")
	return cmd
}
