package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("GCALSYNC_TOKEN_PATH", "/tmp/token.json")
	t.Setenv("GOOGLE_CREDENTIALS_PATH", "/tmp/credentials.json")

	// Test loading from environment variables (empty flags and no config file)
	config, err := LoadConfig("", Overrides{})
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.TokenPath != "/tmp/token.json" {
		t.Errorf("Expected TokenPath to be '/tmp/token.json', got '%s'", config.TokenPath)
	}
	if config.GoogleCredentialsPath != "/tmp/credentials.json" {
		t.Errorf("Expected GoogleCredentialsPath to be '/tmp/credentials.json', got '%s'", config.GoogleCredentialsPath)
	}

	// Defaults
	if config.StateBackend != BackendSQLite {
		t.Errorf("Expected StateBackend to default to sqlite, got '%s'", config.StateBackend)
	}
	if config.TestCalendarName != "TESTING" {
		t.Errorf("Expected TestCalendarName to be 'TESTING', got '%s'", config.TestCalendarName)
	}
	if config.ScheduleSteps != 180 || config.StepLength().Hours() != 12 {
		t.Errorf("Expected 180 steps of 12h, got %d of %v", config.ScheduleSteps, config.StepLength())
	}
	if config.IsProduction {
		t.Error("Expected IsProduction to default to false")
	}
}

func TestLoadConfig_CommandLineFlags(t *testing.T) {
	// Test that command-line flags override environment variables
	t.Setenv("GCALSYNC_TOKEN_PATH", "/env/token.json")
	t.Setenv("GOOGLE_CREDENTIALS_PATH", "/env/credentials.json")
	t.Setenv("GCALSYNC_PRODUCTION", "false")

	config, err := LoadConfig("", Overrides{
		TokenPath:             "/flag/token.json",
		GoogleCredentialsPath: "/flag/credentials.json",
		DatabasePath:          "/flag/db.sqlite",
		Production:            true,
	})
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.TokenPath != "/flag/token.json" {
		t.Errorf("Expected TokenPath to be '/flag/token.json', got '%s'", config.TokenPath)
	}
	if config.GoogleCredentialsPath != "/flag/credentials.json" {
		t.Errorf("Expected GoogleCredentialsPath to be '/flag/credentials.json', got '%s'", config.GoogleCredentialsPath)
	}
	if config.DatabasePath != "/flag/db.sqlite" {
		t.Errorf("Expected DatabasePath to be '/flag/db.sqlite', got '%s'", config.DatabasePath)
	}
	if !config.IsProduction {
		t.Error("Expected IsProduction to be true")
	}
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
token_path: /file/token.json
google_credentials_path: /file/credentials.json
is_production: true
source_time_zone: America/New_York
cron: "@hourly"
groupex:
  account: "3"
  locations: ["10", "11"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GCALSYNC_CRON", "@every 5m")

	config, err := LoadConfig(path, Overrides{})
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if !config.IsProduction {
		t.Error("Expected IsProduction from file")
	}
	if config.SourceTimeZone != "America/New_York" {
		t.Errorf("Expected SourceTimeZone from file, got '%s'", config.SourceTimeZone)
	}
	if config.Cron != "@every 5m" {
		t.Errorf("Expected env to override cron, got '%s'", config.Cron)
	}
	if len(config.GroupEx.Locations) != 2 || config.GroupEx.Account != "3" {
		t.Errorf("Unexpected groupex settings: %+v", config.GroupEx)
	}
	if config.GroupEx.BaseURL != DefaultGroupExBaseURL {
		t.Errorf("Expected default GroupEx base URL, got '%s'", config.GroupEx.BaseURL)
	}
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"token_path": "/file/token.json", "google_credentials_path": "/file/credentials.json", "state_backend": "redis", "redis_url": "redis://localhost:6379/0"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path, Overrides{})
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}
	if config.StateBackend != BackendRedis {
		t.Errorf("Expected redis backend, got '%s'", config.StateBackend)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing token path", `{"google_credentials_path": "/c.json"}`},
		{"missing credentials", `{"token_path": "/t.json"}`},
		{"unknown backend", `{"token_path": "/t.json", "google_credentials_path": "/c.json", "state_backend": "etcd"}`},
		{"redis without url", `{"token_path": "/t.json", "google_credentials_path": "/c.json", "state_backend": "redis"}`},
		{"bad log format", `{"token_path": "/t.json", "google_credentials_path": "/c.json", "log_format": "xml"}`},
		{"bad time zone", `{"token_path": "/t.json", "google_credentials_path": "/c.json", "source_time_zone": "Mars/Olympus"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path, Overrides{}); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestLoadConfig_InvalidProductionEnv(t *testing.T) {
	t.Setenv("GCALSYNC_TOKEN_PATH", "/tmp/token.json")
	t.Setenv("GOOGLE_CREDENTIALS_PATH", "/tmp/credentials.json")
	t.Setenv("GCALSYNC_PRODUCTION", "maybe")

	if _, err := LoadConfig("", Overrides{}); err == nil {
		t.Error("Expected an error for invalid GCALSYNC_PRODUCTION")
	}
}

func TestLoadGoogleCredentials(t *testing.T) {
	dir := t.TempDir()

	installed := filepath.Join(dir, "installed.json")
	if err := os.WriteFile(installed, []byte(`{"installed": {"client_id": "id-1", "client_secret": "secret-1"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	id, secret, err := LoadGoogleCredentials(installed)
	if err != nil {
		t.Fatalf("LoadGoogleCredentials() returned an error: %v", err)
	}
	if id != "id-1" || secret != "secret-1" {
		t.Errorf("Unexpected credentials %q %q", id, secret)
	}

	web := filepath.Join(dir, "web.json")
	if err := os.WriteFile(web, []byte(`{"web": {"client_id": "id-2", "client_secret": "secret-2"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if id, _, err = LoadGoogleCredentials(web); err != nil || id != "id-2" {
		t.Errorf("Expected web client id, got %q (%v)", id, err)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadGoogleCredentials(empty); err == nil {
		t.Error("Expected an error for credentials without client id")
	}
}
