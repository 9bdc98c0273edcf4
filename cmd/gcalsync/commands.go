package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ymca/gcalsync/internal/auth"
	calclient "github.com/ymca/gcalsync/internal/calendar"
	"github.com/ymca/gcalsync/internal/schedule"
	"github.com/ymca/gcalsync/internal/scheduler"
	"github.com/ymca/gcalsync/internal/sync"
)

// withApp builds the app for the duration of a command.
func withApp(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, cmd, a)
	}
}

func authorizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Run the interactive OAuth flow and store the token",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			oauthConfig, err := a.oauthConfig()
			if err != nil {
				return err
			}
			return auth.Authorize(ctx, oauthConfig, auth.NewFileTokenStore(a.cfg.TokenPath), cmd.OutOrStdout())
		}),
	}
}

func syncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single synchronization pass for the current window",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			runner, err := a.runner(ctx, true)
			if err != nil {
				return err
			}
			report, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			if report.Aborted {
				return fmt.Errorf("sync pass aborted, the schedule was not advanced")
			}
			return nil
		}),
	}
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run synchronization passes on the configured cron schedule",
		RunE: withApp(opts, func(ctx context.Context, _ *cobra.Command, a *app) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, err := a.runner(ctx, true)
			if err != nil {
				return err
			}

			var schedOpts []scheduler.Option
			if runOnStart {
				schedOpts = append(schedOpts, scheduler.WithRunOnStart())
			}
			s, err := scheduler.New(a.cfg.Cron, nil, func(ctx context.Context) {
				if _, err := runner.Run(ctx); err != nil {
					a.logger.Error("Sync pass failed", "error", err)
				}
			}, a.logger, schedOpts...)
			if err != nil {
				return err
			}
			return s.Run(ctx)
		}),
	}
	cmd.Flags().BoolVar(&runOnStart, "now", false, "Run a pass immediately on start")
	return cmd
}

func dryRunCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Write the events of the current window to an iCalendar file instead of pushing them",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			runner, err := a.runner(ctx, false)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := runner.DryRun(ctx, w)
			if err != nil {
				return err
			}
			a.logger.Info("Dry run finished", "events", n, "output", out)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file (- for stdout)")
	return cmd
}

func cursorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cursor",
		Short: "Show the schedule cursor",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			s, err := a.cursor().Schedule(ctx)
			if err != nil {
				return err
			}
			return printCursor(cmd, s)
		}),
	}
}

func resetCursorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-cursor",
		Short: "Delete the schedule cursor; the next pass starts a new schedule at now",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			if err := a.cursor().Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schedule cursor removed.")
			return nil
		}),
	}
}

func calendarsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the secondary calendars of the account",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			client, _, err := a.google(ctx)
			if err != nil {
				return err
			}
			entries, err := client.ListCalendars(ctx)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", entry.Id, entry.Summary)
			}
			return nil
		}),
	}
}

func clearCalendarCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "clear-calendar",
		Short: "Delete every event of a calendar within the next year",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			client, _, err := a.google(ctx)
			if err != nil {
				return err
			}
			resolver := calclient.NewResolver(client, a.logger, calclient.ResolverOptions{
				Production:       a.cfg.IsProduction,
				TestCalendarName: a.cfg.TestCalendarName,
				TimeZone:         a.cfg.CalendarTimeZone,
			})
			id, ok := resolver.ResolveCalendarID(ctx, name)
			if !ok {
				return fmt.Errorf("calendar %q could not be resolved", name)
			}

			deleted, err := calclient.NewMaintenance(client, a.logger).ClearEvents(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d event(s) from %s.\n", deleted, id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Calendar name (the test calendar outside production)")
	return cmd
}

func clearPrimaryCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-primary",
		Short: "Remove every event of the primary calendar",
		RunE: withApp(opts, func(ctx context.Context, _ *cobra.Command, a *app) error {
			if !yes {
				return fmt.Errorf("refusing to clear the primary calendar without --yes")
			}
			client, _, err := a.google(ctx)
			if err != nil {
				return err
			}
			return calclient.NewMaintenance(client, a.logger).ClearPrimary(ctx)
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the operation")
	return cmd
}

func deleteCalendarsCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-calendars",
		Short: "Delete every secondary calendar of the account",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			if !yes {
				return fmt.Errorf("refusing to delete calendars without --yes")
			}
			client, _, err := a.google(ctx)
			if err != nil {
				return err
			}
			failed, err := calclient.NewMaintenance(client, a.logger).DeleteAllCalendars(ctx)
			if err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("failed to delete %d calendar(s): %v", len(failed), failed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All calendars deleted.")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the operation")
	return cmd
}

func clearCacheCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete every cached class",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			if !yes {
				return fmt.Errorf("refusing to clear the cache without --yes")
			}
			if err := a.repo.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the operation")
	return cmd
}

func printReport(cmd *cobra.Command, report *sync.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s, window %s - %s\n", report.RunID,
		report.Window.Start.Format("2006-01-02 15:04"), report.Window.End.Format("2006-01-02 15:04"))
	for _, op := range report.Ops {
		fmt.Fprintf(w, "  %-6s %d/%d succeeded (%.2f%%) in %s\n",
			op.Op, op.Succeeded, op.Items, op.SuccessRate(), op.Elapsed)
	}
	if report.Advanced {
		fmt.Fprintln(w, "Schedule advanced.")
	}
}

func printCursor(cmd *cobra.Command, s *schedule.Schedule) error {
	out := struct {
		Current int           `json:"current"`
		Steps   int           `json:"steps"`
		Window  schedule.Step `json:"window"`
		First   schedule.Step `json:"first"`
		Last    schedule.Step `json:"last"`
	}{
		Current: s.Current,
		Steps:   len(s.Steps),
		Window:  s.Window(),
		First:   s.Steps[0],
		Last:    s.Steps[len(s.Steps)-1],
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
