package main

import (
	"bytes"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/mzhurova/folderback/pkg/pathcompression"
)

// runTestWithFlags is a helper to safely run tests that use the global flag package.
// It backs up and restores os.Args and resets the flag package for each run.
func runTestWithFlags(t *testing.T, args []string, testFunc func()) {
	t.Helper()

	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	// The first element must be the program name.
	os.Args = append([]string{t.Name()}, args...)

	// Reset the flag package to a clean state; it is global.
	flag.CommandLine = flag.NewFlagSet(t.Name(), flag.ContinueOnError)

	testFunc()
}

func TestParseFlagConfig(t *testing.T) {
	t.Run("No Flags - Returns Empty Map", func(t *testing.T) {
		runTestWithFlags(t, []string{}, func() {
			act, setFlags, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if act != actionRunBackup {
				t.Errorf("expected action to be actionRunBackup, but got %v", act)
			}
			if len(setFlags) != 0 {
				t.Errorf("expected no flags to be set, but got %d", len(setFlags))
			}
		})
	})

	t.Run("Override Source and Destination", func(t *testing.T) {
		args := []string{"-source=/new/src", "-destination=/new/dst"}
		runTestWithFlags(t, args, func() {
			_, setFlags, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if val, ok := setFlags["source"]; !ok {
				t.Error("expected 'source' flag to be in setFlags map")
			} else if val != "/new/src" {
				t.Errorf("expected source to be '/new/src', but got %v", val)
			}
			if val, ok := setFlags["destination"]; !ok {
				t.Error("expected 'destination' flag to be in setFlags map")
			} else if val != "/new/dst" {
				t.Errorf("expected destination to be '/new/dst', but got %v", val)
			}
		})
	})

	t.Run("Version Flag", func(t *testing.T) {
		runTestWithFlags(t, []string{"-version"}, func() {
			act, _, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if act != actionShowVersion {
				t.Errorf("expected actionShowVersion, but got %v", act)
			}
		})
	})

	t.Run("Set Max Backups Flag", func(t *testing.T) {
		runTestWithFlags(t, []string{"-max-backups=3"}, func() {
			_, setFlags, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			val, ok := setFlags["max-backups"]
			if !ok {
				t.Fatal("expected 'max-backups' flag to be in setFlags map")
			}
			if intVal, typeOK := val.(int); !typeOK || intVal != 3 {
				t.Errorf("expected max-backups to be 3, but got %v (type %T)", val, val)
			}
		})
	})

	t.Run("Set No-Zip Flag", func(t *testing.T) {
		runTestWithFlags(t, []string{"-no-zip"}, func() {
			_, setFlags, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			val, ok := setFlags["no-zip"]
			if !ok {
				t.Fatal("expected 'no-zip' flag to be in setFlags map")
			}
			if boolVal, typeOK := val.(bool); !typeOK || !boolVal {
				t.Errorf("expected no-zip to be true, but got %v (type %T)", val, val)
			}
		})
	})

	t.Run("Parse Compression Flags", func(t *testing.T) {
		args := []string{"-compression-format=tar.gz", "-compression-level=best"}
		runTestWithFlags(t, args, func() {
			_, setFlags, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if val, ok := setFlags["compression-format"]; !ok || val.(pathcompression.Format) != pathcompression.TarGz {
				t.Errorf("expected compression-format to be tar.gz, but got %v", val)
			}
			if val, ok := setFlags["compression-level"]; !ok || val.(pathcompression.Level) != pathcompression.Best {
				t.Errorf("expected compression-level to be best, but got %v", val)
			}
		})
	})

	t.Run("Invalid Compression Format Flag", func(t *testing.T) {
		runTestWithFlags(t, []string{"-compression-format=rar"}, func() {
			_, _, err := parseFlagConfig()
			if err == nil {
				t.Fatal("expected an error for an invalid format, but got nil")
			}
		})
	})

	t.Run("Set Log Level Flag", func(t *testing.T) {
		runTestWithFlags(t, []string{"-log-level=debug"}, func() {
			_, setFlags, err := parseFlagConfig()
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if val, ok := setFlags["log-level"]; !ok || val.(string) != "debug" {
				t.Errorf("expected log-level to be 'debug', but got %v", val)
			}
		})
	})
}

func TestPromptForPath(t *testing.T) {
	var out bytes.Buffer

	in := strings.NewReader("  /data/photos  \n")
	path, err := promptForPath(in, &out, "Enter the source directory to back up")
	if err != nil {
		t.Fatalf("promptForPath failed: %v", err)
	}
	if path != "/data/photos" {
		t.Errorf("expected trimmed path '/data/photos', got %q", path)
	}
	if !strings.Contains(out.String(), "Enter the source directory") {
		t.Errorf("expected the prompt label to be printed, got %q", out.String())
	}
}

func TestPromptForPathWithoutTrailingNewline(t *testing.T) {
	path, err := promptForPath(strings.NewReader("/data"), &bytes.Buffer{}, "Enter the destination directory for backups")
	if err != nil {
		t.Fatalf("promptForPath failed: %v", err)
	}
	if path != "/data" {
		t.Errorf("expected '/data', got %q", path)
	}
}

func TestBuildRunConfig(t *testing.T) {
	runConfig, err := buildRunConfig(map[string]any{
		"source":      "/data/photos",
		"destination": "/mnt/backups",
		"max-backups": 5,
		"no-zip":      true,
	})
	if err != nil {
		t.Fatalf("buildRunConfig failed: %v", err)
	}

	if runConfig.Source != "/data/photos" {
		t.Errorf("unexpected source: %q", runConfig.Source)
	}
	if runConfig.Destination != "/mnt/backups" {
		t.Errorf("unexpected destination: %q", runConfig.Destination)
	}
	if runConfig.MaxBackups != 5 {
		t.Errorf("unexpected max backups: %d", runConfig.MaxBackups)
	}
	if runConfig.Archive {
		t.Error("expected archiving to be disabled by -no-zip")
	}
}

func TestBuildRunConfigInvalidLogLevel(t *testing.T) {
	_, err := buildRunConfig(map[string]any{
		"source":      "/data",
		"destination": "/backups",
		"log-level":   "chatty",
	})
	if err == nil {
		t.Fatal("expected a validation error for an unknown log level, got nil")
	}
}
