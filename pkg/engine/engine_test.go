package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/mzhurova/folderback/pkg/config"
)

func newTestConfig(t *testing.T, archive bool) config.Config {
	t.Helper()

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("alpha"), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "sub"), 0755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("beta"), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}

	cfg := config.NewDefault()
	cfg.Source = srcDir
	cfg.Destination = filepath.Join(t.TempDir(), "backups")
	cfg.Archive = archive
	return cfg
}

func TestExecuteBackupArchive(t *testing.T) {
	cfg := newTestConfig(t, true)

	resultPath, err := NewEngine(cfg).ExecuteBackup(context.Background())
	if err != nil {
		t.Fatalf("ExecuteBackup failed: %v", err)
	}

	if !strings.HasSuffix(resultPath, ".zip") {
		t.Fatalf("expected a zip archive, got %s", resultPath)
	}
	if _, err := os.Stat(resultPath); err != nil {
		t.Fatalf("expected archive to exist: %v", err)
	}

	// The uncompressed copy must be gone after a successful archive.
	copyPath := strings.TrimSuffix(resultPath, ".zip")
	if _, err := os.Stat(copyPath); !os.IsNotExist(err) {
		t.Error("expected the uncompressed copy to be removed")
	}

	// The archive name carries the source folder name and the infix.
	folderName := filepath.Base(cfg.Source)
	if !strings.HasPrefix(filepath.Base(resultPath), folderName+"_backup_") {
		t.Errorf("unexpected archive name: %s", filepath.Base(resultPath))
	}

	// Entries are relative to the source root.
	r, err := zip.OpenReader(resultPath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	if !names["a.txt"] || !names["sub/b.txt"] {
		t.Errorf("expected entries relative to the source root, got %v", names)
	}
}

func TestExecuteBackupNoArchive(t *testing.T) {
	cfg := newTestConfig(t, false)

	resultPath, err := NewEngine(cfg).ExecuteBackup(context.Background())
	if err != nil {
		t.Fatalf("ExecuteBackup failed: %v", err)
	}

	info, err := os.Stat(resultPath)
	if err != nil {
		t.Fatalf("expected backup directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected the backup to be a directory")
	}

	got, err := os.ReadFile(filepath.Join(resultPath, "sub", "b.txt"))
	if err != nil {
		t.Fatalf("failed to read copied file: %v", err)
	}
	if string(got) != "beta" {
		t.Errorf("unexpected copied content: %q", got)
	}
}

func TestExecuteBackupRetention(t *testing.T) {
	cfg := newTestConfig(t, true)
	cfg.MaxBackups = 2

	folderName := filepath.Base(cfg.Source)
	if err := os.MkdirAll(cfg.Destination, 0755); err != nil {
		t.Fatalf("failed to create destination: %v", err)
	}

	// Pre-existing backups, all older than the one about to be created.
	old := time.Now().Add(-24 * time.Hour)
	for i, name := range []string{
		folderName + "_backup_2026-01-01_00-00-00.zip",
		folderName + "_backup_2026-01-02_00-00-00.zip",
		folderName + "_backup_2026-01-03_00-00-00.zip",
	} {
		path := filepath.Join(cfg.Destination, name)
		if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
			t.Fatalf("failed to create old backup: %v", err)
		}
		mt := old.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatalf("failed to set mtime: %v", err)
		}
	}

	resultPath, err := NewEngine(cfg).ExecuteBackup(context.Background())
	if err != nil {
		t.Fatalf("ExecuteBackup failed: %v", err)
	}

	entries, err := os.ReadDir(cfg.Destination)
	if err != nil {
		t.Fatalf("failed to read destination: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected 2 backups after retention, got %d: %v", len(entries), names)
	}

	// The newly created backup and the newest pre-existing one survive.
	if _, err := os.Stat(resultPath); err != nil {
		t.Error("expected the new backup to survive retention")
	}
	if _, err := os.Stat(filepath.Join(cfg.Destination, folderName+"_backup_2026-01-03_00-00-00.zip")); err != nil {
		t.Error("expected the newest pre-existing backup to survive retention")
	}
}

func TestExecuteBackupDryRun(t *testing.T) {
	cfg := newTestConfig(t, true)
	cfg.DryRun = true

	if _, err := NewEngine(cfg).ExecuteBackup(context.Background()); err != nil {
		t.Fatalf("dry-run ExecuteBackup failed: %v", err)
	}

	// Not even the destination root may be created.
	if _, err := os.Stat(cfg.Destination); !os.IsNotExist(err) {
		t.Error("expected dry run to write nothing to the destination")
	}
}

func TestExecuteBackupMissingSource(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Source = filepath.Join(t.TempDir(), "missing")
	cfg.Destination = t.TempDir()

	_, err := NewEngine(cfg).ExecuteBackup(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing source, got nil")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("unexpected error message: %v", err)
	}

	var backupErr *BackupError
	if !errors.As(err, &backupErr) || backupErr.Stage != StagePreflight {
		t.Errorf("expected a preflight stage error, got %v", err)
	}
}

func TestExecuteBackupDestinationIsFile(t *testing.T) {
	cfg := newTestConfig(t, false)
	cfg.Destination = filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(cfg.Destination, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocking file: %v", err)
	}

	if _, err := NewEngine(cfg).ExecuteBackup(context.Background()); err == nil {
		t.Fatal("expected an error when the destination is a file, got nil")
	}
}

func TestExecuteBackupCancelledContext(t *testing.T) {
	cfg := newTestConfig(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewEngine(cfg).ExecuteBackup(ctx); err == nil {
		t.Fatal("expected an error from a cancelled context, got nil")
	}
}
