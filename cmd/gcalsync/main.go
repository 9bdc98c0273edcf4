package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ymca/gcalsync/internal/config"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	envFile    string
	overrides  config.Overrides
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gcalsync",
		Short: "Push GroupEx class schedules to Google Calendar",
		Long: `gcalsync fetches GroupEx class schedules one time window per run, caches
them locally and pushes inserts, updates and deletes to Google Calendar as
weekly recurring events.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (GCALSYNC_TOKEN_PATH, GOOGLE_CREDENTIALS_PATH,
       GCALSYNC_DATABASE_PATH, GCALSYNC_REDIS_URL, GCALSYNC_PRODUCTION,
       GCALSYNC_CRON, GCALSYNC_LOG_FORMAT)
    3. Config file (--config, JSON or YAML)
    4. Defaults

Outside production (is_production: false) every class is written to the
test calendar instead of the calendar named after its location.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.envFile == "" {
				return nil
			}
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to JSON or YAML config file")
	flags.StringVar(&opts.envFile, "env-file", "", "Load environment variables from a .env file")
	flags.StringVar(&opts.overrides.TokenPath, "token-path", "", "Path of the OAuth token file (overrides config file and GCALSYNC_TOKEN_PATH)")
	flags.StringVar(&opts.overrides.GoogleCredentialsPath, "google-credentials-path", "", "Path to Google OAuth credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH)")
	flags.StringVar(&opts.overrides.DatabasePath, "database", "", "Path of the SQLite cache database (overrides config file and GCALSYNC_DATABASE_PATH)")
	flags.BoolVar(&opts.overrides.Production, "production", false, "Write to the real location calendars instead of the test calendar")
	flags.BoolVarP(&opts.overrides.Debug, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")

	cmd.AddCommand(
		authorizeCmd(opts),
		syncCmd(opts),
		serveCmd(opts),
		dryRunCmd(opts),
		cursorCmd(opts),
		resetCursorCmd(opts),
		calendarsCmd(opts),
		clearCalendarCmd(opts),
		clearPrimaryCmd(opts),
		deleteCalendarsCmd(opts),
		clearCacheCmd(opts),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
