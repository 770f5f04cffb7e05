package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/store/sqlite"
)

// app is the state PersistentPreRunE builds for every subcommand.
type app struct {
	configPath string
	dbPath     string
	asJSON     bool

	cfg    *config.Config
	logger *zap.Logger
	store  *sqlite.Store
	engine *attendance.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "attendance",
		Short:         "Compute daily, weekly and monthly attendance",
		Long:          `attendance rebuilds attendance records from contracts and clocked work intervals.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "attendance.yaml", "YAML config path")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print reports as JSON")

	root.AddCommand(
		a.rangeCmd("daily", "Rebuild daily records for a date range", a.runDaily),
		a.rangeCmd("weekly", "Reallocate holiday overtime for the weeks of a date range", a.runWeekly),
		a.monthlyCmd(),
		a.recomputeCmd(),
		a.showCmd(),
		a.runsCmd(),
	)
	return root
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	a.cfg = cfg

	if a.logger, err = logging.New(cfg.Log); err != nil {
		return err
	}
	if a.store, err = sqlite.New(cfg.Database.Path); err != nil {
		return err
	}
	a.engine = attendance.NewEngine(a.store, a.logger.Named("engine"))
	return cfg.Engine.Apply(a.engine)
}

func (a *app) close() error {
	if a.logger != nil {
		a.logger.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// =============================================================================
// RECOMPUTE COMMANDS
// =============================================================================

type rangeFlags struct {
	from, to, employee string
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&f.employee, "employee", "e", "", "single employee (default: all active)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
}

func (f *rangeFlags) request() (attendance.RangeRequest, error) {
	return attendance.NewRangeRequest(f.from, f.to, f.employee)
}

func (a *app) rangeCmd(use, short string, run func(*cobra.Command, attendance.RangeRequest) error) *cobra.Command {
	var f rangeFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			return run(cmd, req)
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) runDaily(cmd *cobra.Command, req attendance.RangeRequest) error {
	report, err := a.engine.RecomputeDailyAttendance(cmd.Context(), req)
	if err != nil {
		return err
	}
	return a.printReport(cmd.OutOrStdout(), report)
}

func (a *app) runWeekly(cmd *cobra.Command, req attendance.RangeRequest) error {
	report, err := a.engine.ReallocateWeeklyOvertime(cmd.Context(), req)
	if err != nil {
		return err
	}
	return a.printReport(cmd.OutOrStdout(), report)
}

func (a *app) monthlyCmd() *cobra.Command {
	var month, employee string
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Rebuild monthly records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := attendance.NewMonthRequest(month, employee)
			if err != nil {
				return err
			}
			report, err := a.engine.RecomputeMonthlyAttendance(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month, YYYY-MM")
	cmd.Flags().StringVarP(&employee, "employee", "e", "", "single employee (default: all active)")
	cmd.MarkFlagRequired("month")
	return cmd
}

func (a *app) recomputeCmd() *cobra.Command {
	var f rangeFlags
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Run daily, weekly and monthly over the range widened to full weeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			p, err := a.engine.Recompute(cmd.Context(), req)
			if p != nil {
				for _, r := range append([]*attendance.BatchReport{p.Daily, p.Weekly}, p.Monthly...) {
					if r == nil {
						continue
					}
					if perr := a.printReport(cmd.OutOrStdout(), r); perr != nil {
						return perr
					}
				}
			}
			if err != nil {
				return err
			}
			if !p.Succeeded() {
				return fmt.Errorf("recompute finished with failures")
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

// =============================================================================
// READ COMMANDS
// =============================================================================

func (a *app) showCmd() *cobra.Command {
	show := &cobra.Command{
		Use:   "show",
		Short: "Print computed records",
	}

	var f rangeFlags
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Print daily records for one employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			records, err := a.engine.DailyRecords(cmd.Context(), req.EmployeeID, req.Range)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			printDailyTable(cmd.OutOrStdout(), records)
			return nil
		},
	}
	f.bind(daily)
	daily.MarkFlagRequired("employee")

	var month, employee string
	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Print the monthly record for one employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := attendance.ParseMonth(month)
			if err != nil {
				return err
			}
			rec, err := a.engine.MonthlyRecord(cmd.Context(), attendance.EmployeeID(employee), m)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			printMonthly(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	monthly.Flags().StringVar(&month, "month", "", "month, YYYY-MM")
	monthly.Flags().StringVarP(&employee, "employee", "e", "", "employee ID")
	monthly.MarkFlagRequired("month")
	monthly.MarkFlagRequired("employee")

	show.AddCommand(daily, monthly)
	return show
}

func (a *app) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent batch runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTEP\tRANGE\tPROCESSED\tFAILED\tWARNINGS\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.RunID, r.Step, runScope(r), len(r.Processed), len(r.Failed), len(r.Warnings),
					r.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs")
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func (a *app) printReport(w io.Writer, r *attendance.BatchReport) error {
	if a.asJSON {
		return writeJSON(w, r)
	}

	status := "ok"
	if !r.Succeeded() {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%-8s %s  %s  processed=%d failed=%d warnings=%d  [%s]\n",
		r.Step, runScope(r), status, len(r.Processed), len(r.Failed), len(r.Warnings), r.RunID)
	for _, f := range r.Failed {
		week := ""
		if f.WeekStart != nil {
			week = " week " + f.WeekStart.String()
		}
		fmt.Fprintf(w, "  failure %s%s: %s: %s\n", f.EmployeeID, week, f.Kind, f.Message)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning %s %s: %s\n", warn.EmployeeID, warn.Date, warn.Kind)
	}
	return nil
}

func runScope(r *attendance.BatchReport) string {
	if r.Month != nil {
		return r.Month.String()
	}
	return r.Range.String()
}

func printDailyTable(w io.Writer, records []attendance.DailyRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tTYPE\tTOTAL\tSCHEDULED\tNON-SCHED\tSTAT OT\tNON-STAT OT\tHOLIDAY\tNIGHT\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Date, r.DayType,
			attendance.Hours(r.TotalWorkingMinutes).StringFixed(2),
			attendance.Hours(r.ScheduledWorkingMinutes).StringFixed(2),
			attendance.Hours(r.NonScheduledWorkingMinutes).StringFixed(2),
			attendance.Hours(r.StatutoryOvertimeMinutes).StringFixed(2),
			attendance.Hours(r.NonStatutoryOvertimeMinutes).StringFixed(2),
			attendance.Hours(r.HolidayWorkingMinutes).StringFixed(2),
			attendance.Hours(r.NighttimeWorkingMinutes).StringFixed(2))
	}
	tw.Flush()
}

func printMonthly(w io.Writer, m *attendance.MonthlyRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Employee\t%s\n", m.EmployeeID)
	fmt.Fprintf(tw, "Month\t%s\n", m.Month)
	row := func(label string, minutes int) {
		fmt.Fprintf(tw, "%s\t%d min\t%s h\n", label, minutes, attendance.Hours(minutes).StringFixed(2))
	}
	row("Total working", m.TotalWorkingMinutes)
	row("Scheduled work", m.ScheduledWorkMinutes)
	row("Scheduled working", m.ScheduledWorkingMinutes)
	row("Non-scheduled working", m.NonScheduledWorkingMinutes)
	row("Statutory overtime", m.StatutoryOvertimeMinutes)
	row("Non-statutory overtime", m.NonStatutoryOvertimeMinutes)
	row("Holiday working", m.HolidayWorkingMinutes)
	row("Night working", m.NighttimeWorkingMinutes)
	row("Break", m.BreakMinutes)
	fmt.Fprintf(tw, "Working days\t%d\n", m.TotalWorkingDays)
	fmt.Fprintf(tw, "Scheduled work days\t%d\n", m.TotalScheduledWorkDays)
	fmt.Fprintf(tw, "Scheduled working days\t%d\n", m.TotalScheduledWorkingDays)
	fmt.Fprintf(tw, "Non-scheduled working days\t%d\n", m.TotalNonScheduledWorkingDays)
	fmt.Fprintf(tw, "Holiday working days\t%d\n", m.HolidayWorkingDays)
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
