package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	DefaultDatabasePath     = "gcalsync.db"
	DefaultTestCalendarName = "TESTING"
	DefaultCalendarTimeZone = "UTC"
	DefaultSourceTimeZone   = "America/Chicago"
	DefaultScheduleSteps    = 180
	DefaultStepHours        = 12
	DefaultCron             = "*/15 * * * *"
	DefaultGroupExBaseURL   = "https://www.groupexpro.com"
)

// GroupEx holds the schedule feed settings.
type GroupEx struct {
	BaseURL   string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Account   string   `json:"account,omitempty" yaml:"account,omitempty"`
	Locations []string `json:"locations,omitempty" yaml:"locations,omitempty"`
}

// Config holds the configuration for the synchronization job.
type Config struct {
	TokenPath             string `json:"token_path,omitempty" yaml:"token_path,omitempty"`
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty" yaml:"google_credentials_path,omitempty"`
	DatabasePath          string `json:"database_path,omitempty" yaml:"database_path,omitempty"`

	// StateBackend selects where the schedule cursor lives: "sqlite" (the
	// database) or "redis".
	StateBackend string `json:"state_backend,omitempty" yaml:"state_backend,omitempty"`
	RedisURL     string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`

	// Outside production every class goes to the test calendar.
	IsProduction     bool   `json:"is_production,omitempty" yaml:"is_production,omitempty"`
	TestCalendarName string `json:"test_calendar_name,omitempty" yaml:"test_calendar_name,omitempty"`
	CalendarTimeZone string `json:"calendar_time_zone,omitempty" yaml:"calendar_time_zone,omitempty"`
	SourceTimeZone   string `json:"source_time_zone,omitempty" yaml:"source_time_zone,omitempty"`

	ScheduleSteps     int    `json:"schedule_steps,omitempty" yaml:"schedule_steps,omitempty"`
	ScheduleStepHours int    `json:"schedule_step_hours,omitempty" yaml:"schedule_step_hours,omitempty"`
	Cron              string `json:"cron,omitempty" yaml:"cron,omitempty"`

	GroupEx GroupEx `json:"groupex" yaml:"groupex"`

	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	LogFile   string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Debug     bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// StepLength returns the duration of one schedule window.
func (c *Config) StepLength() time.Duration {
	return time.Duration(c.ScheduleStepHours) * time.Hour
}

// SourceLocation returns the GroupEx time zone.
func (c *Config) SourceLocation() (*time.Location, error) {
	return time.LoadLocation(c.SourceTimeZone)
}

// Overrides are the values given on the command line. Zero values are
// ignored.
type Overrides struct {
	TokenPath             string
	GoogleCredentialsPath string
	DatabasePath          string
	Production            bool
	Debug                 bool
}

// LoadConfigFromFile loads configuration from a JSON or YAML file. The
// format is chosen by extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Overrides) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.TokenPath != "" {
		config.TokenPath = flags.TokenPath
	}
	if flags.GoogleCredentialsPath != "" {
		config.GoogleCredentialsPath = flags.GoogleCredentialsPath
	}
	if flags.DatabasePath != "" {
		config.DatabasePath = flags.DatabasePath
	}
	if flags.Production {
		config.IsProduction = true
	}
	if flags.Debug {
		config.Debug = true
	}

	// Step 4: Apply defaults and validate required fields
	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv("GCALSYNC_TOKEN_PATH"); v != "" {
		config.TokenPath = v
	}
	// Credentials path can be overridden by environment variable
	if v := os.Getenv("GOOGLE_CREDENTIALS_PATH"); v != "" {
		config.GoogleCredentialsPath = v
	}
	if v := os.Getenv("GCALSYNC_DATABASE_PATH"); v != "" {
		config.DatabasePath = v
	}
	if v := os.Getenv("GCALSYNC_REDIS_URL"); v != "" {
		config.RedisURL = v
		if config.StateBackend == "" {
			config.StateBackend = BackendRedis
		}
	}
	if v := os.Getenv("GCALSYNC_PRODUCTION"); v != "" {
		production, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid GCALSYNC_PRODUCTION value: %w", err)
		}
		config.IsProduction = production
	}
	if v := os.Getenv("GCALSYNC_CRON"); v != "" {
		config.Cron = v
	}
	if v := os.Getenv("GCALSYNC_LOG_FORMAT"); v != "" {
		config.LogFormat = v
	}
	if v := os.Getenv("GCALSYNC_SCHEDULE_STEPS"); v != "" {
		var err error
		if config.ScheduleSteps, err = parseInt(v); err != nil {
			return fmt.Errorf("invalid GCALSYNC_SCHEDULE_STEPS value: %w", err)
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.DatabasePath == "" {
		config.DatabasePath = DefaultDatabasePath
	}
	if config.StateBackend == "" {
		config.StateBackend = BackendSQLite
	}
	if config.TestCalendarName == "" {
		config.TestCalendarName = DefaultTestCalendarName
	}
	if config.CalendarTimeZone == "" {
		config.CalendarTimeZone = DefaultCalendarTimeZone
	}
	if config.SourceTimeZone == "" {
		config.SourceTimeZone = DefaultSourceTimeZone
	}
	if config.ScheduleSteps == 0 {
		config.ScheduleSteps = DefaultScheduleSteps
	}
	if config.ScheduleStepHours == 0 {
		config.ScheduleStepHours = DefaultStepHours
	}
	if config.Cron == "" {
		config.Cron = DefaultCron
	}
	if config.GroupEx.BaseURL == "" {
		config.GroupEx.BaseURL = DefaultGroupExBaseURL
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

// Validate checks required values and enumerations.
func (c *Config) Validate() error {
	if c.TokenPath == "" {
		return fmt.Errorf("token_path must be provided via --token-path flag, GCALSYNC_TOKEN_PATH environment variable, or config file")
	}
	if c.GoogleCredentialsPath == "" {
		return fmt.Errorf("google_credentials_path must be provided via --google-credentials-path flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
	}

	switch c.StateBackend {
	case BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url must be provided when state_backend is 'redis'")
		}
	default:
		return fmt.Errorf("state_backend must be 'sqlite' or 'redis', got '%s'", c.StateBackend)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be 'text' or 'json', got '%s'", c.LogFormat)
	}
	if c.ScheduleSteps < 1 {
		return fmt.Errorf("schedule_steps must be positive, got %d", c.ScheduleSteps)
	}
	if c.ScheduleStepHours < 1 {
		return fmt.Errorf("schedule_step_hours must be positive, got %d", c.ScheduleStepHours)
	}
	if _, err := time.LoadLocation(c.SourceTimeZone); err != nil {
		return fmt.Errorf("invalid source_time_zone: %w", err)
	}
	if _, err := time.LoadLocation(c.CalendarTimeZone); err != nil {
		return fmt.Errorf("invalid calendar_time_zone: %w", err)
	}
	return nil
}

// parseInt parses a string to an integer.
func parseInt(s string) (int, error) {
	var result int
	_, err := fmt.Sscanf(s, "%d", &result)
	return result, err
}
