// Package config defines the effective configuration for a backup run
// and the merge logic that layers explicitly set command-line flags
// over the built-in defaults.
package config

import (
	"fmt"

	"github.com/mzhurova/folderback/pkg/pathcompression"
	"github.com/mzhurova/folderback/pkg/plog"
)

// NamingConfig controls how backup directories and archives are named.
type NamingConfig struct {
	// Infix is placed between the source folder name and the timestamp,
	// e.g. "photos" + "_backup_" + "2026-08-25_14-03-59".
	Infix string
	// TimeFormat is the Go layout for the timestamp portion. Local time,
	// second precision.
	TimeFormat string
}

// CompressionConfig selects the archive format and level.
type CompressionConfig struct {
	Format pathcompression.Format
	Level  pathcompression.Level
}

// Config is the complete configuration for a single run.
type Config struct {
	// Source is the directory to back up.
	Source string
	// Destination is the root directory where backups are stored.
	Destination string
	// MaxBackups is the number of backups to keep per source folder name.
	// Zero deletes everything matching the naming pattern.
	MaxBackups int
	// Archive controls whether the copied tree is compressed into an
	// archive (and the copy removed). Disabled by the -no-zip flag.
	Archive bool

	Compression CompressionConfig
	Naming      NamingConfig

	LogLevel string
	LogFile  string
	DryRun   bool
}

// NewDefault returns the built-in default configuration.
func NewDefault() Config {
	return Config{
		MaxBackups: 10,
		Archive:    true,
		Compression: CompressionConfig{
			Format: pathcompression.Zip,
			Level:  pathcompression.Default,
		},
		Naming: NamingConfig{
			Infix:      "_backup_",
			TimeFormat: "2006-01-02_15-04-05",
		},
		LogLevel: "info",
		LogFile:  "folderback.log",
	}
}

// MergeFlags layers the explicitly set flags over the base configuration.
// Only keys present in setFlags override; everything else keeps its
// default.
func MergeFlags(base Config, setFlags map[string]any) Config {
	merged := base

	if v, ok := setFlags["source"].(string); ok {
		merged.Source = v
	}
	if v, ok := setFlags["destination"].(string); ok {
		merged.Destination = v
	}
	if v, ok := setFlags["max-backups"].(int); ok {
		merged.MaxBackups = v
	}
	if v, ok := setFlags["no-zip"].(bool); ok {
		merged.Archive = !v
	}
	if v, ok := setFlags["compression-format"].(pathcompression.Format); ok {
		merged.Compression.Format = v
	}
	if v, ok := setFlags["compression-level"].(pathcompression.Level); ok {
		merged.Compression.Level = v
	}
	if v, ok := setFlags["log-level"].(string); ok {
		merged.LogLevel = v
	}
	if v, ok := setFlags["log-file"].(string); ok {
		merged.LogFile = v
	}
	if v, ok := setFlags["dry-run"].(bool); ok {
		merged.DryRun = v
	}

	return merged
}

// Validate checks the configuration for values that can never work.
// Path existence is checked later by preflight, not here.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source directory is required")
	}
	if c.Destination == "" {
		return fmt.Errorf("destination directory is required")
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("max-backups must be zero or positive, got %d", c.MaxBackups)
	}
	if _, err := pathcompression.ParseFormat(c.Compression.Format.String()); err != nil {
		return err
	}
	if _, err := pathcompression.ParseLevel(c.Compression.Level.String()); err != nil {
		return err
	}
	if !plog.IsValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %q. Must be 'debug', 'notice', 'info', 'warn', or 'error'", c.LogLevel)
	}
	return nil
}

// LogSummary logs the effective configuration at the start of a run.
func (c *Config) LogSummary() {
	plog.Info("Run configuration",
		"source", c.Source,
		"destination", c.Destination,
		"max_backups", c.MaxBackups,
		"archive", c.Archive,
		"format", c.Compression.Format.String(),
		"level", c.Compression.Level.String(),
		"dry_run", c.DryRun,
	)
}
