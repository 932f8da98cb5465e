package config

import (
	"testing"

	"github.com/mzhurova/folderback/pkg/pathcompression"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.MaxBackups != 10 {
		t.Errorf("expected default max backups 10, got %d", cfg.MaxBackups)
	}
	if !cfg.Archive {
		t.Error("expected archiving to be enabled by default")
	}
	if cfg.Compression.Format != pathcompression.Zip {
		t.Errorf("expected default format zip, got %s", cfg.Compression.Format)
	}
	if cfg.Compression.Level != pathcompression.Default {
		t.Errorf("expected default level, got %s", cfg.Compression.Level)
	}
	if cfg.Naming.Infix != "_backup_" {
		t.Errorf("unexpected naming infix: %q", cfg.Naming.Infix)
	}
	if cfg.Naming.TimeFormat != "2006-01-02_15-04-05" {
		t.Errorf("unexpected time format: %q", cfg.Naming.TimeFormat)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.LogFile != "folderback.log" {
		t.Errorf("expected default log file folderback.log, got %q", cfg.LogFile)
	}
	if cfg.DryRun {
		t.Error("expected dry run to be off by default")
	}
}

func TestMergeFlags(t *testing.T) {
	base := NewDefault()

	merged := MergeFlags(base, map[string]any{
		"source":             "/data/photos",
		"destination":        "/mnt/backups",
		"max-backups":        3,
		"no-zip":             true,
		"compression-format": pathcompression.TarZst,
		"compression-level":  pathcompression.Best,
		"log-level":          "debug",
		"log-file":           "run.log",
		"dry-run":            true,
	})

	if merged.Source != "/data/photos" {
		t.Errorf("source not merged: %q", merged.Source)
	}
	if merged.Destination != "/mnt/backups" {
		t.Errorf("destination not merged: %q", merged.Destination)
	}
	if merged.MaxBackups != 3 {
		t.Errorf("max backups not merged: %d", merged.MaxBackups)
	}
	if merged.Archive {
		t.Error("expected -no-zip to disable archiving")
	}
	if merged.Compression.Format != pathcompression.TarZst {
		t.Errorf("format not merged: %s", merged.Compression.Format)
	}
	if merged.Compression.Level != pathcompression.Best {
		t.Errorf("level not merged: %s", merged.Compression.Level)
	}
	if merged.LogLevel != "debug" {
		t.Errorf("log level not merged: %q", merged.LogLevel)
	}
	if merged.LogFile != "run.log" {
		t.Errorf("log file not merged: %q", merged.LogFile)
	}
	if !merged.DryRun {
		t.Error("dry run not merged")
	}

	// The base config must not be mutated.
	if base.Source != "" || base.MaxBackups != 10 || !base.Archive {
		t.Error("MergeFlags mutated the base config")
	}
}

func TestMergeFlagsPartial(t *testing.T) {
	merged := MergeFlags(NewDefault(), map[string]any{
		"source":      "/data",
		"destination": "/backups",
	})

	if merged.MaxBackups != 10 {
		t.Errorf("expected untouched default max backups, got %d", merged.MaxBackups)
	}
	if !merged.Archive {
		t.Error("expected untouched default archive setting")
	}
	if merged.LogLevel != "info" {
		t.Errorf("expected untouched default log level, got %q", merged.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := NewDefault()
	valid.Source = "/data"
	valid.Destination = "/backups"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing source", func(c *Config) { c.Source = "" }, true},
		{"missing destination", func(c *Config) { c.Destination = "" }, true},
		{"negative max backups", func(c *Config) { c.MaxBackups = -1 }, true},
		{"zero max backups", func(c *Config) { c.MaxBackups = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"notice log level", func(c *Config) { c.LogLevel = "notice" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected an error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}
