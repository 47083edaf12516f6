package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"faturamento/internal/backend"
	"faturamento/internal/config"
	"faturamento/internal/core"
	applog "faturamento/internal/log"
	"faturamento/internal/sheets"
	"faturamento/internal/storage"
)

// ctl carries what the faturamentoctl subcommands share. Resources are
// opened on demand and released by close.
type ctl struct {
	dbPath   string
	logLevel string

	cfg      *config.Config
	logger   *applog.Logger
	factory  backend.Factory
	backend  backend.Config
	store    *storage.SQLiteRepository
	app      *App
	cleanups []backend.CleanupFunc
}

// Run executes faturamentoctl with args, writing command output to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	c := &ctl{}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, c.close())
}

func (c *ctl) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "faturamentoctl",
		Short: "Operate the faturamento billing ledger",
		Long: `faturamentoctl runs maintenance tasks against the billing database:
the overdue sweep, monthly summary refreshes and schema migrations.

Configuration is read from the environment (and a .env file when present),
like the API and the worker.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (default: SQLITE_DB_PATH)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: LOG_LEVEL)")

	root.AddCommand(c.sweepCommand(), c.summaryCommand(), c.migrateCommand())
	return root
}

func (c *ctl) setup(cmd *cobra.Command, args []string) error {
	LoadEnvFile()
	c.cfg = config.Load()
	if c.dbPath != "" {
		c.cfg.SQLiteDBPath = c.dbPath
	}
	if c.logLevel != "" {
		c.cfg.LogLevel = c.logLevel
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = SetupLogger(c.cfg.LogLevel, c.cfg.LogFormat, applog.ComponentCLI)
	c.factory = backend.NewFactory(c.logger.Logger)

	var err error
	c.backend, err = backend.FromAppConfig(c.cfg)
	return err
}

// open connects the store, the summary cache and the event publisher.
func (c *ctl) open(ctx context.Context) (*App, error) {
	if c.app != nil {
		return c.app, nil
	}

	store, err := storage.NewSQLiteRepository(c.cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.cleanups = append(c.cleanups, store.Close)

	summaries, cleanup, err := c.factory.SummaryCache(ctx, c.backend)
	if err != nil {
		return nil, err
	}
	c.cleanups = append(c.cleanups, cleanup)

	events, cleanup, err := c.factory.Events(c.backend)
	if err != nil {
		// The ledger stays correct without events; the worker's cron refresh catches up.
		c.logger.Warn("Continuing without billing events", applog.FieldError, err.Error())
	} else {
		c.cleanups = append(c.cleanups, cleanup)
	}

	c.app = NewApp(store, summaries, events, nil)
	return c.app, nil
}

func (c *ctl) close() error {
	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, c.cleanups[i]())
	}
	c.cleanups = nil
	c.app = nil
	return errors.Join(errs...)
}

func (c *ctl) sweepCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark pending invoices past their due date as overdue",
		Example: `  faturamentoctl sweep
  faturamentoctl sweep --as-of 2025-03-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			date := app.Sweeper.Today()
			if asOf != "" {
				if date, err = core.ParseDate(asOf); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}

			n, err := app.Sweeper.SweepOverdue(cmd.Context(), date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d invoice(s) overdue as of %s\n", n, date)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Sweep date YYYY-MM-DD (default: today)")
	return cmd
}

func (c *ctl) summaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Refresh or show monthly summaries",
	}

	var (
		month, year int
		export      bool
	)
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute and store the summary of a month",
		Example: `  faturamentoctl summary refresh
  faturamentoctl summary refresh --month 3 --year 2025 --export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			p := periodOrCurrent(month, year, app.Sweeper.Today())

			sum, err := app.Summaries.RefreshSummary(cmd.Context(), p.Month, p.Year)
			if err != nil {
				return err
			}
			if export {
				exporter, err := c.factory.Exporter(cmd.Context(), c.backend)
				if err != nil {
					return err
				}
				if err := exportSummary(cmd.Context(), exporter, sum); err != nil {
					return err
				}
			}
			return printSummaries(cmd.OutOrStdout(), []core.MonthlySummary{sum})
		},
	}
	refresh.Flags().IntVar(&month, "month", 0, "Month 1-12 (default: current)")
	refresh.Flags().IntVar(&year, "year", 0, "Year (default: current)")
	refresh.Flags().BoolVar(&export, "export", false, "Also export the summary to the configured spreadsheet")

	var showMonth, showYear, limit int
	show := &cobra.Command{
		Use:   "show",
		Short: "Show one month, or the latest stored summaries",
		Example: `  faturamentoctl summary show
  faturamentoctl summary show --month 3 --year 2025`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			var out []core.MonthlySummary
			if showMonth == 0 && showYear == 0 {
				out, err = app.Summaries.LatestSummaries(cmd.Context(), limit)
			} else {
				var sum core.MonthlySummary
				sum, err = app.Summaries.GetSummary(cmd.Context(), showMonth, showYear)
				out = []core.MonthlySummary{sum}
			}
			if err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), out)
		},
	}
	show.Flags().IntVar(&showMonth, "month", 0, "Month 1-12")
	show.Flags().IntVar(&showYear, "year", 0, "Year")
	show.Flags().IntVar(&limit, "limit", 12, "How many stored summaries to list without --month/--year")

	cmd.AddCommand(refresh, show)
	return cmd
}

func (c *ctl) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.RunMigrations(c.cfg.SQLiteDBPath); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(c.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}

func periodOrCurrent(month, year int, today core.Date) core.Period {
	p := core.PeriodOf(today)
	if month != 0 {
		p.Month = month
	}
	if year != 0 {
		p.Year = year
	}
	return p
}

func exportSummary(ctx context.Context, exporter sheets.SummaryExporter, sum core.MonthlySummary) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := exporter.ExportSummary(ctx, sum); err != nil {
		return fmt.Errorf("export %s: %w", sum.Period(), err)
	}
	return nil
}

func printSummaries(w io.Writer, summaries []core.MonthlySummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tRECEIVED\tPENDING\tOVERDUE\tCANCELLED\tSTORED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			s.Period(),
			s.Received.StringFixed(core.MoneyPlaces),
			s.Pending.StringFixed(core.MoneyPlaces),
			s.Overdue.StringFixed(core.MoneyPlaces),
			s.Cancelled.StringFixed(core.MoneyPlaces),
			s.Persisted)
	}
	return tw.Flush()
}
