// Package pathretention implements the logic for cleaning up outdated
// backups based on a per-source retention count.
//
// Backups are identified purely by their name prefix
// ("{folder}_backup_") and ordered by modification time, newest first.
// Both directory backups and archives of any supported format are
// considered, so switching the archive setting between runs still
// prunes older backups of the other kind.
package pathretention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mzhurova/folderback/pkg/pathcompression"
	"github.com/mzhurova/folderback/pkg/plog"
)

// Plan carries the per-run options for a retention pass.
type Plan struct {
	// MaxBackups is the number of newest backups to keep. Zero deletes
	// every matching backup; negative disables retention entirely.
	MaxBackups int
	DryRun     bool
}

// backupEntry is one retention candidate found in the backup root.
type backupEntry struct {
	name    string
	modTime time.Time
	isDir   bool
}

// PathRetentionManager applies a retention count to a backup directory.
type PathRetentionManager struct {
	plan Plan
}

// NewPathRetentionManager creates a new PathRetentionManager with the given plan.
func NewPathRetentionManager(p Plan) *PathRetentionManager {
	return &PathRetentionManager{plan: p}
}

// Apply scans dirPath for backups whose names start with namePrefix and
// deletes all but the newest MaxBackups of them.
func (rm *PathRetentionManager) Apply(ctx context.Context, dirPath, namePrefix string) error {
	if rm.plan.MaxBackups < 0 {
		plog.Debug("Retention is disabled. Skipping.")
		return nil
	}

	backups, err := rm.fetchSortedBackups(ctx, dirPath, namePrefix)
	if err != nil {
		return err
	}

	if len(backups) <= rm.plan.MaxBackups {
		plog.Debug("No backups need deletion", "existing", len(backups), "max", rm.plan.MaxBackups)
		return nil
	}

	outdated := backups[rm.plan.MaxBackups:]
	plog.Info("Deleting outdated backups", "count", len(outdated), "keeping", rm.plan.MaxBackups)

	var deleted, failed int
	for _, b := range outdated {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pathToDelete := filepath.Join(dirPath, b.name)

		if rm.plan.DryRun {
			plog.Notice("[DRY RUN] DELETE", "path", pathToDelete)
			continue
		}

		plog.Notice("DELETE", "path", pathToDelete)
		if err := os.RemoveAll(pathToDelete); err != nil {
			failed++
			plog.Warn("Failed to delete outdated backup", "path", pathToDelete, "error", err)
			continue
		}
		deleted++
	}

	plog.Info("Retention finished", "deleted", deleted, "failed", failed)
	return nil
}

// fetchSortedBackups scans a directory for entries matching the backup
// naming pattern and returns them sorted from newest to oldest by
// modification time. Entries that cannot be stat'ed are skipped.
func (rm *PathRetentionManager) fetchSortedBackups(ctx context.Context, dirPath, namePrefix string) ([]backupEntry, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			plog.Debug("Backup directory does not exist yet, no retention to apply.", "path", dirPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory %s: %w", dirPath, err)
	}

	var found []backupEntry
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name := entry.Name()
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if !entry.IsDir() {
			if _, ok := pathcompression.ArchiveFormat(name); !ok {
				continue // Some unrelated file that happens to share the prefix.
			}
		}

		info, err := entry.Info()
		if err != nil {
			plog.Warn("Skipping retention candidate; cannot stat", "name", name, "reason", err)
			continue
		}

		found = append(found, backupEntry{
			name:    name,
			modTime: info.ModTime(),
			isDir:   entry.IsDir(),
		})
	}

	// Sort all backups from newest to oldest for consistent processing.
	sort.Slice(found, func(i, j int) bool {
		return found[i].modTime.After(found[j].modTime)
	})
	return found, nil
}
