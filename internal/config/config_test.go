package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.PortalBaseURL != "https://proxse26.univalle.edu.co/asignacion" {
		t.Errorf("Unexpected default portal URL: %s", cfg.PortalBaseURL)
	}
	if cfg.NPrevious != 8 {
		t.Errorf("Expected default N_PREVIOUS 8, got %d", cfg.NPrevious)
	}
	if cfg.SourceColumn != "D" {
		t.Errorf("Expected default source column 'D', got '%s'", cfg.SourceColumn)
	}
	if cfg.ScraperMaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", cfg.ScraperMaxRetries)
	}
	if cfg.CedulaDelay != 2*time.Second {
		t.Errorf("Expected default cedula delay 2s, got %v", cfg.CedulaDelay)
	}
	if cfg.FetchConcurrency != 1 {
		t.Errorf("Expected default fetch concurrency 1, got %d", cfg.FetchConcurrency)
	}
	if cfg.RetryDelayMin != 500*time.Millisecond || cfg.RetryDelayMax != 1*time.Second {
		t.Errorf("Unexpected retry delay bounds: [%v, %v]", cfg.RetryDelayMin, cfg.RetryDelayMax)
	}
	if cfg.SheetMetaTTL != 30*time.Minute {
		t.Errorf("Expected default sheet meta TTL 30m, got %v", cfg.SheetMetaTTL)
	}
	if cfg.HarvestScheduleHour != -1 {
		t.Errorf("Expected scheduled harvest disabled by default, got hour %d", cfg.HarvestScheduleHour)
	}
	if cfg.Mode() != ServerMode {
		t.Errorf("Expected ServerMode, got %v", cfg.Mode())
	}
}

func TestLoadForMode(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		env         map[string]string
		wantErr     bool
		errContains string
	}{
		{
			name: "server mode - valid config",
			mode: ServerMode,
			env:  map[string]string{},
		},
		{
			name:        "harvest mode - missing current period",
			mode:        HarvestMode,
			env:         map[string]string{},
			wantErr:     true,
			errContains: "CURRENT_PERIOD",
		},
		{
			name: "harvest mode - valid period",
			mode: HarvestMode,
			env:  map[string]string{"CURRENT_PERIOD": "2026-1"},
		},
		{
			name:        "harvest mode - malformed period",
			mode:        HarvestMode,
			env:         map[string]string{"CURRENT_PERIOD": "2026/1"},
			wantErr:     true,
			errContains: "CURRENT_PERIOD",
		},
		{
			name:        "invalid fetch concurrency",
			mode:        ServerMode,
			env:         map[string]string{"FETCH_CONCURRENCY": "0"},
			wantErr:     true,
			errContains: "FETCH_CONCURRENCY",
		},
		{
			name:        "retry max below min",
			mode:        ServerMode,
			env:         map[string]string{"RETRY_DELAY_MIN": "2s", "RETRY_DELAY_MAX": "1s"},
			wantErr:     true,
			errContains: "RETRY_DELAY_MAX",
		},
		{
			name:        "archive enabled without credentials",
			mode:        ServerMode,
			env:         map[string]string{"ARCHIVE_ENABLED": "true"},
			wantErr:     true,
			errContains: "ARCHIVE_ACCOUNT_ID",
		},
		{
			name: "archive enabled with credentials",
			mode: ServerMode,
			env: map[string]string{
				"ARCHIVE_ENABLED":           "true",
				"ARCHIVE_ACCOUNT_ID":        "acc",
				"ARCHIVE_ACCESS_KEY_ID":     "key",
				"ARCHIVE_SECRET_ACCESS_KEY": "secret",
				"ARCHIVE_BUCKET":            "bucket",
			},
		},
		{
			name:        "schedule hour out of range",
			mode:        ServerMode,
			env:         map[string]string{"HARVEST_SCHEDULE_HOUR": "24"},
			wantErr:     true,
			errContains: "HARVEST_SCHEDULE_HOUR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATA_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadForMode(tt.mode)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Expected error containing %q, got: %v", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadForMode() failed: %v", err)
			}
			if cfg.Mode() != tt.mode {
				t.Errorf("Expected mode %v, got %v", tt.mode, cfg.Mode())
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORTAL_BASE_URL", "http://localhost:8081/asignacion")
	t.Setenv("N_PREVIOUS", "3")
	t.Setenv("CEDULA_DELAY", "500ms")
	t.Setenv("FETCH_CONCURRENCY", "4")
	t.Setenv("CACHE_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PortalBaseURL != "http://localhost:8081/asignacion" {
		t.Errorf("PORTAL_BASE_URL override not applied: %s", cfg.PortalBaseURL)
	}
	if cfg.NPrevious != 3 {
		t.Errorf("N_PREVIOUS override not applied: %d", cfg.NPrevious)
	}
	if cfg.CedulaDelay != 500*time.Millisecond {
		t.Errorf("CEDULA_DELAY override not applied: %v", cfg.CedulaDelay)
	}
	if cfg.FetchConcurrency != 4 {
		t.Errorf("FETCH_CONCURRENCY override not applied: %d", cfg.FetchConcurrency)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CACHE_TTL override not applied: %v", cfg.CacheTTL)
	}
}

func TestSQLitePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := filepath.Join(dir, "cache.db")
	if got := cfg.SQLitePath(); got != want {
		t.Errorf("SQLitePath() = %s, want %s", got, want)
	}
}

func TestCredentialsJSON(t *testing.T) {
	t.Run("raw JSON", func(t *testing.T) {
		cfg := &Config{GoogleCredentialsJSON: `{"type":"service_account"}`}
		data, err := cfg.CredentialsJSON()
		if err != nil {
			t.Fatalf("CredentialsJSON() failed: %v", err)
		}
		if string(data) != `{"type":"service_account"}` {
			t.Errorf("Unexpected credentials payload: %s", data)
		}
	})

	t.Run("file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sa.json")
		if err := os.WriteFile(path, []byte(`{"type":"service_account","project_id":"x"}`), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg := &Config{GoogleCredentialsJSON: path}
		data, err := cfg.CredentialsJSON()
		if err != nil {
			t.Fatalf("CredentialsJSON() failed: %v", err)
		}
		if !strings.Contains(string(data), "project_id") {
			t.Errorf("Unexpected credentials payload: %s", data)
		}
	})

	t.Run("unset", func(t *testing.T) {
		cfg := &Config{}
		if _, err := cfg.CredentialsJSON(); err == nil {
			t.Error("Expected error for unset credentials")
		}
	})
}
