package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"timesheet/internal/anomaly"
	"timesheet/internal/config"
	"timesheet/internal/core"
	"timesheet/internal/log"
	"timesheet/internal/services"
)

// Timesheet is the part of services.TimesheetService the commands use.
type Timesheet interface {
	Submit(ctx context.Context, c core.Candidate, ref core.Date) (*services.Result, error)
	ReplaceDay(ctx context.Context, d core.Date, candidates []core.Candidate, ref core.Date) (*services.Result, error)
	Reset(ctx context.Context, ref core.Date) *services.Result
	Precheck(c core.Candidate) error
	CheckAnomaly(ctx context.Context, c core.Candidate) anomaly.Result
	Summaries(ref core.Date) core.SummarySet
	EntriesFor(d core.Date) []core.TimeEntry
}

var _ Timesheet = (*services.TimesheetService)(nil)

// ErrNeedsConfirmation is returned by add when the anomaly check asks for
// confirmation and --yes was not given.
var ErrNeedsConfirmation = errors.New("entry needs confirmation, rerun with --yes")

// Deps holds what the commands need from the outside world so tests can
// replace it.
type Deps struct {
	Stdout io.Writer
	Stderr io.Writer
	Today  func() core.Date
	// Config loads and validates configuration.
	Config func() (*config.Config, error)
	// Open returns a hydrated Timesheet and a func releasing it.
	Open func(ctx context.Context, cfg *config.Config) (Timesheet, func() error, error)
}

// DefaultDeps wires the commands to the configured backend.
func DefaultDeps() *Deps {
	return &Deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Today:  core.Today,
		Config: LoadAndValidateConfig,
		Open: func(ctx context.Context, cfg *config.Config) (Timesheet, func() error, error) {
			svc, res, err := NewTimesheet(ctx, cfg, quietLogger(cfg))
			if err != nil {
				return nil, nil, err
			}
			return svc, res.Close, nil
		},
	}
}

// quietLogger keeps log records off stdout and below warn unless LOG_LEVEL
// asks for more detail.
func quietLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Output = os.Stderr
	lc.Format = cfg.LogFormat
	lc.Level = max(log.ParseLevel(cfg.LogLevel), slog.LevelWarn)
	if strings.EqualFold(cfg.LogLevel, "debug") {
		lc.Level = slog.LevelDebug
	}
	lc.Component = log.ComponentCLI
	return log.New(lc)
}

// NewRootCommand builds the timesheetctl command tree.
func NewRootCommand(deps *Deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "timesheetctl",
		Short: "Log work hours and read daily, weekly and monthly totals",
		Long: `timesheetctl works on the same timesheet as the web UI.

Entries go through the same daily cap and date rules; totals are grouped by
project and, unless disabled in the policy, by document.

Examples:
  timesheetctl add --project Apollo --hours 2.5 --description "code review"
  timesheetctl summary --date 2024-03-06
  timesheetctl list --date 2024-03-06
  timesheetctl edit-day 2024-03-06 --row "Apollo|DOC-1|4|design" --row "Zephyr||3|"
  timesheetctl reset --yes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)

	root.AddCommand(
		newSummaryCommand(deps),
		newListCommand(deps),
		newAddCommand(deps),
		newEditDayCommand(deps),
		newResetCommand(deps),
		newConfigCommand(deps),
	)
	return root
}

// withTimesheet opens the timesheet for the duration of fn.
func withTimesheet(cmd *cobra.Command, deps *Deps, fn func(Timesheet) error) error {
	cfg, err := deps.Config()
	if err != nil {
		return err
	}
	ts, closeFn, err := deps.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}()
	return fn(ts)
}

// dateFlag parses a --date value; empty means today.
func dateFlag(deps *Deps, v string) (core.Date, error) {
	if strings.TrimSpace(v) == "" {
		return deps.Today(), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", v)
	}
	return d, nil
}

func reportWarning(deps *Deps, st Styles, res *services.Result) {
	if res != nil && res.Warning != nil {
		fmt.Fprintln(deps.Stderr, st.Warning.Render("warning: saved for this run only, the backend write failed: "+res.Warning.Error()))
	}
}

func newSummaryCommand(deps *Deps) *cobra.Command {
	var (
		date   string
		bucket string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show daily, weekly and monthly totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := dateFlag(deps, date)
			if err != nil {
				return err
			}
			var only *core.Bucket
			if bucket != "" {
				b, err := core.ParseBucket(bucket)
				if err != nil {
					return err
				}
				only = &b
			}
			return withTimesheet(cmd, deps, func(ts Timesheet) error {
				set := ts.Summaries(ref)
				if asJSON {
					enc := json.NewEncoder(deps.Stdout)
					enc.SetIndent("", "  ")
					if only != nil {
						return enc.Encode(set.Get(*only))
					}
					return enc.Encode(set)
				}
				st := DefaultStyles()
				if only != nil {
					RenderSummary(deps.Stdout, st, set.Get(*only))
					return nil
				}
				RenderSummarySet(deps.Stdout, st, set)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Only one bucket: daily, weekly or monthly")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}

func newListCommand(deps *Deps) *cobra.Command {
	var (
		date   string
		asRows bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the entries of one date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := dateFlag(deps, date)
			if err != nil {
				return err
			}
			return withTimesheet(cmd, deps, func(ts Timesheet) error {
				list := ts.EntriesFor(d)
				if asRows {
					for _, e := range list {
						fmt.Fprintln(deps.Stdout, formatRow(e))
					}
					return nil
				}
				RenderEntries(deps.Stdout, DefaultStyles(), d, list)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date to list (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&asRows, "rows", false, "Print entries in the --row format of edit-day")
	return cmd
}

func newAddCommand(deps *Deps) *cobra.Command {
	var (
		date        string
		project     string
		document    string
		hours       string
		description string
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log one entry",
		Long: `Log one entry. The entry is rejected when it would take its date over the
daily cap. Unusual entries, such as long days or weekends, ask for --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := dateFlag(deps, date)
			if err != nil {
				return err
			}
			h, err := core.ParseOptionalHours(hours)
			if err != nil {
				return fmt.Errorf("invalid --hours %q", hours)
			}
			c := core.Candidate{
				Date:        d,
				Project:     project,
				Document:    document,
				Hours:       h,
				Description: description,
			}
			st := DefaultStyles()
			return withTimesheet(cmd, deps, func(ts Timesheet) error {
				if !yes {
					if err := ts.Precheck(c); err != nil {
						return err
					}
					if adv := ts.CheckAnomaly(cmd.Context(), c); adv.ConfirmationNeeded {
						fmt.Fprintln(deps.Stderr, st.Warning.Render("Please confirm: "+adv.Reason))
						return ErrNeedsConfirmation
					}
				}
				res, err := ts.Submit(cmd.Context(), c, d)
				if err != nil {
					return err
				}
				e := res.Entries[0]
				fmt.Fprintln(deps.Stdout, st.Success.Render(fmt.Sprintf("Logged %sh on %s for %s",
					core.FormatHours(e.Hours), e.Date, e.Project)))
				reportWarning(deps, st, res)
				RenderSummary(deps.Stdout, st, res.Summaries.Daily)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date of the work (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name")
	cmd.Flags().StringVarP(&document, "document", "d", "", "Document or ticket reference")
	cmd.Flags().StringVarP(&hours, "hours", "H", "", "Hours worked, e.g. 1.5")
	cmd.Flags().StringVarP(&description, "description", "m", "", "What was done")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the anomaly confirmation")
	return cmd
}

// parseRow reads "project|document|hours|description". Trailing fields may be
// omitted.
func parseRow(s string) (core.Candidate, error) {
	parts := strings.SplitN(s, "|", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	h, err := core.ParseOptionalHours(parts[2])
	if err != nil {
		return core.Candidate{}, fmt.Errorf("invalid hours %q", parts[2])
	}
	return core.Candidate{
		Project:     strings.TrimSpace(parts[0]),
		Document:    strings.TrimSpace(parts[1]),
		Hours:       h,
		Description: strings.TrimSpace(parts[3]),
	}, nil
}

func newEditDayCommand(deps *Deps) *cobra.Command {
	var (
		rows     []string
		clearDay bool
	)
	cmd := &cobra.Command{
		Use:   "edit-day <date>",
		Short: "Replace every entry of a date",
		Long: `Replace every entry of a date with the given rows. Each --row is
"project|document|hours|description". The new rows are checked as a whole
against the daily cap; on any error the date keeps its current entries.

Pass --clear without rows to remove every entry of the date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
			}
			if len(rows) == 0 && !clearDay {
				return errors.New("no --row given; use --clear to empty the date")
			}
			candidates := make([]core.Candidate, 0, len(rows))
			for i, r := range rows {
				c, err := parseRow(r)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				candidates = append(candidates, c)
			}
			st := DefaultStyles()
			return withTimesheet(cmd, deps, func(ts Timesheet) error {
				res, err := ts.ReplaceDay(cmd.Context(), d, candidates, d)
				if err != nil {
					return err
				}
				fmt.Fprintln(deps.Stdout, st.Success.Render(fmt.Sprintf("%s now has %sh in %d entries",
					d, core.FormatHours(core.SumHours(res.Entries)), len(res.Entries))))
				reportWarning(deps, st, res)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&rows, "row", "r", nil, `Entry as "project|document|hours|description", repeatable`)
	cmd.Flags().BoolVar(&clearDay, "clear", false, "Allow an empty row list, removing every entry of the date")
	return cmd
}

func newResetCommand(deps *Deps) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes every entry; rerun with --yes")
			}
			st := DefaultStyles()
			return withTimesheet(cmd, deps, func(ts Timesheet) error {
				res := ts.Reset(cmd.Context(), deps.Today())
				fmt.Fprintln(deps.Stdout, st.Success.Render("All entries cleared"))
				reportWarning(deps, st, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}

func newConfigCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the entry policy",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			p := cfg.Policy
			w := deps.Stdout
			fmt.Fprintf(w, "backend:              %s\n", cfg.DataBackend)
			fmt.Fprintf(w, "owner:                %s\n", cfg.OwnerID)
			fmt.Fprintf(w, "daily cap:            %sh\n", core.FormatHours(p.DailyCap))
			fmt.Fprintf(w, "week window:          %s\n", p.WeekWindow)
			fmt.Fprintf(w, "allow weekends:       %t\n", p.Dates.AllowWeekends)
			fmt.Fprintf(w, "current week only:    %t\n", p.Dates.NotBeforeWeekStart)
			fmt.Fprintf(w, "disallow future:      %t\n", p.Dates.NotAfterToday)
			fmt.Fprintf(w, "group by document:    %t\n", p.GroupByDocument)
			if len(p.Projects) > 0 {
				fmt.Fprintf(w, "projects:             %s\n", strings.Join(p.Projects, ", "))
			}
			if len(p.Documents) > 0 {
				fmt.Fprintf(w, "documents:            %s\n", strings.Join(p.Documents, ", "))
			}
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the current policy to a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			if err := config.WritePolicyFile(cfg.Policy, path); err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "Policy written to %s; set TIMESHEET_POLICY_FILE to use it\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}
