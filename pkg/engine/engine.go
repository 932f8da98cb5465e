// Package engine orchestrates a complete backup run: preflight checks,
// the recursive copy, optional archiving, and retention. The pipeline is
// strictly sequential; each stage finishes before the next starts.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mzhurova/folderback/pkg/config"
	"github.com/mzhurova/folderback/pkg/pathcompression"
	"github.com/mzhurova/folderback/pkg/pathcopy"
	"github.com/mzhurova/folderback/pkg/pathretention"
	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/preflight"
	"github.com/mzhurova/folderback/pkg/util"
)

// Stage identifies the pipeline stage a failure originated from.
type Stage string

const (
	StagePreflight Stage = "preflight"
	StageCopy      Stage = "copy"
)

// BackupError wraps a pipeline failure with the stage it occurred in,
// so callers can report where a run broke without parsing messages.
type BackupError struct {
	Stage Stage
	Err   error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// Engine runs the backup pipeline for one configuration.
type Engine struct {
	cfg config.Config

	// now is the clock used for the backup timestamp.
	now func() time.Time
}

// NewEngine creates a new Engine for the given configuration.
func NewEngine(cfg config.Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// ExecuteBackup runs the full pipeline and returns the path of the
// finished backup (the archive, or the directory copy when archiving is
// disabled or failed).
func (e *Engine) ExecuteBackup(ctx context.Context) (string, error) {
	startTime := e.now()

	absSrcPath, err := filepath.Abs(e.cfg.Source)
	if err != nil {
		return "", fmt.Errorf("cannot resolve source path %s: %w", e.cfg.Source, err)
	}
	absTrgPath, err := filepath.Abs(e.cfg.Destination)
	if err != nil {
		return "", fmt.Errorf("cannot resolve destination path %s: %w", e.cfg.Destination, err)
	}

	if err := e.runPreflight(absSrcPath, absTrgPath); err != nil {
		return "", &BackupError{Stage: StagePreflight, Err: err}
	}

	folderName := filepath.Base(absSrcPath)
	namePrefix := folderName + e.cfg.Naming.Infix
	backupName := namePrefix + startTime.Format(e.cfg.Naming.TimeFormat)
	copyPath := filepath.Join(absTrgPath, backupName)

	plog.Info("Starting backup", "source", absSrcPath, "backup", backupName)

	resultPath, err := e.createBackup(ctx, absSrcPath, copyPath)
	if err != nil {
		return "", err
	}

	// Retention failures must never invalidate the backup that was just
	// written; they are reported and the run still succeeds.
	e.applyRetention(ctx, absTrgPath, namePrefix)

	e.logResult(resultPath, startTime)
	return resultPath, nil
}

// runPreflight validates the source and destination and performs the
// advisory free-space estimate.
func (e *Engine) runPreflight(absSrcPath, absTrgPath string) error {
	if err := preflight.CheckSourceAccessible(absSrcPath); err != nil {
		return err
	}
	if e.cfg.DryRun {
		// The writability probe creates the target directory and a test
		// file; a dry run must not touch the filesystem.
		plog.Notice("[DRY RUN] Skipping target writability probe", "path", absTrgPath)
	} else if err := preflight.CheckTargetWritable(absTrgPath); err != nil {
		return err
	}

	required, free, err := preflight.CheckDiskSpace(absSrcPath, absTrgPath)
	if err != nil {
		// The estimate failed, not the backup. Proceed and let the copy
		// itself surface any real shortage.
		plog.Warn("Could not estimate disk space, proceeding anyway", "reason", err)
		return nil
	}
	if free < required {
		return fmt.Errorf("not enough free space on destination: need %s, have %s",
			util.ByteCountIEC(required), util.ByteCountIEC(free))
	}

	plog.Debug("Disk space check passed",
		"required", util.ByteCountIEC(required),
		"free", util.ByteCountIEC(free),
	)
	return nil
}

// createBackup copies the source tree and, when archiving is enabled,
// compresses the copy and removes it. It returns the path of the final
// artifact.
func (e *Engine) createBackup(ctx context.Context, absSrcPath, copyPath string) (string, error) {
	copyMetrics := pathcopy.NewCopyMetrics()
	copier := pathcopy.NewPathCopier(e.cfg.DryRun, 0, copyMetrics)

	if err := copier.CopyTree(ctx, absSrcPath, copyPath); err != nil {
		return "", &BackupError{Stage: StageCopy, Err: err}
	}
	copyMetrics.LogSummary("Copy finished")

	if !e.cfg.Archive {
		return copyPath, nil
	}

	archivePath := copyPath + e.cfg.Compression.Format.Ext()
	compressionMetrics := pathcompression.NewCompressionMetrics()
	compressor := pathcompression.NewPathCompressor(pathcompression.Plan{
		Format: e.cfg.Compression.Format,
		Level:  e.cfg.Compression.Level,
		DryRun: e.cfg.DryRun,
	}, compressionMetrics)

	if err := compressor.Compress(ctx, copyPath, archivePath); err != nil {
		// The uncompressed copy is a complete, valid backup. Keep it.
		plog.Warn("Archiving failed, keeping the uncompressed copy", "path", copyPath, "reason", err)
		return copyPath, nil
	}
	compressionMetrics.LogSummary("Compression finished")

	if e.cfg.DryRun {
		return archivePath, nil
	}

	if err := os.RemoveAll(copyPath); err != nil {
		plog.Warn("Failed to remove the uncompressed copy after archiving", "path", copyPath, "reason", err)
	}
	return archivePath, nil
}

func (e *Engine) applyRetention(ctx context.Context, absTrgPath, namePrefix string) {
	rm := pathretention.NewPathRetentionManager(pathretention.Plan{
		MaxBackups: e.cfg.MaxBackups,
		DryRun:     e.cfg.DryRun,
	})
	if err := rm.Apply(ctx, absTrgPath, namePrefix); err != nil {
		plog.Warn("Retention pass failed", "reason", err)
	}
}

func (e *Engine) logResult(resultPath string, startTime time.Time) {
	var size int64
	if info, err := os.Stat(resultPath); err == nil {
		if info.IsDir() {
			if s, err := preflight.DirSize(resultPath); err == nil {
				size = s
			}
		} else {
			size = info.Size()
		}
	}

	plog.Info("Backup finished",
		"path", resultPath,
		"size", util.ByteCountIEC(size),
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
}
