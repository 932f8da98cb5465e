// Package pathcopy implements a sequential recursive directory copy
// preserving structure, file modes, modification times, and symlinks.
//
// Every file is written to a temporary file in its destination
// directory and renamed into place, so a crash mid-copy never leaves a
// truncated file under a final name. The destination is expected to be
// a fresh, non-existing directory.
package pathcopy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/util"
)

// DefaultBufferSizeKB is the I/O buffer size used when the caller does
// not specify one.
const DefaultBufferSizeKB = 512

// PathCopier copies a directory tree to a new location.
type PathCopier struct {
	dryRun   bool
	ioBuffer []byte
	metrics  Metrics
}

// dirTimes records a created directory whose timestamps must be applied
// after its contents have been written (writing into a directory bumps
// its mtime).
type dirTimes struct {
	absPath string
	modTime time.Time
}

// NewPathCopier creates a new PathCopier.
func NewPathCopier(dryRun bool, bufferSizeKB int, metrics Metrics) *PathCopier {
	if bufferSizeKB <= 0 {
		bufferSizeKB = DefaultBufferSizeKB
	}
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &PathCopier{
		dryRun:   dryRun,
		ioBuffer: make([]byte, bufferSizeKB*1024),
		metrics:  metrics,
	}
}

// CopyTree recursively copies the tree rooted at absSrcPath into
// absTrgPath, which is created and must not already exist.
func (c *PathCopier) CopyTree(ctx context.Context, absSrcPath, absTrgPath string) error {
	if _, err := os.Lstat(absTrgPath); err == nil {
		return fmt.Errorf("destination %s already exists", absTrgPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot stat destination %s: %w", absTrgPath, err)
	}

	var createdDirs []dirTimes

	err := filepath.WalkDir(absSrcPath, func(srcPath string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}

		relPath, err := filepath.Rel(absSrcPath, srcPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", srcPath, err)
		}
		trgPath := filepath.Join(absTrgPath, relPath)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", srcPath, err)
		}

		c.metrics.AddEntriesProcessed(1)

		switch {
		case d.IsDir():
			plog.Notice("MKDIR", "path", util.NormalizePath(relPath))
			if c.dryRun {
				return nil
			}
			// Keep the source permissions but guarantee the backup user can
			// traverse and write into the copy on subsequent runs.
			perm := info.Mode().Perm() | 0700
			if err := os.MkdirAll(trgPath, perm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", trgPath, err)
			}
			createdDirs = append(createdDirs, dirTimes{absPath: trgPath, modTime: info.ModTime()})
			c.metrics.AddDirsCreated(1)
			return nil

		case info.Mode()&os.ModeSymlink != 0:
			plog.Notice("LINK", "path", util.NormalizePath(relPath))
			if c.dryRun {
				return nil
			}
			return c.copySymlink(srcPath, trgPath)

		case info.Mode().IsRegular():
			plog.Notice("COPY", "path", util.NormalizePath(relPath))
			if c.dryRun {
				return nil
			}
			return c.copyFile(srcPath, trgPath, info)

		default:
			// Sockets, devices, fifos: nothing sensible to copy.
			plog.Warn("Skipping special file", "path", util.NormalizePath(relPath), "mode", info.Mode().String())
			return nil
		}
	})
	if err != nil {
		return err
	}

	// Apply directory timestamps deepest-first, after all contents exist.
	for i := len(createdDirs) - 1; i >= 0; i-- {
		dt := createdDirs[i]
		if err := os.Chtimes(dt.absPath, dt.modTime, dt.modTime); err != nil {
			plog.Warn("Failed to set directory timestamps", "path", dt.absPath, "error", err)
		}
	}

	return nil
}

func (c *PathCopier) copySymlink(srcPath, trgPath string) error {
	linkTarget, err := os.Readlink(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", srcPath, err)
	}
	if err := os.Symlink(linkTarget, trgPath); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", trgPath, err)
	}
	c.metrics.AddSymlinksCopied(1)
	return nil
}

// copyFile handles the low-level details of copying a single file.
// It ensures atomicity by writing to a temporary file first and then renaming it.
func (c *PathCopier) copyFile(srcPath, trgPath string, srcInfo os.FileInfo) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcPath, err)
	}
	defer in.Close()

	trgDir := filepath.Dir(trgPath)

	// 1. Create a temporary file in the destination directory.
	out, err := os.CreateTemp(trgDir, "folderback-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", trgDir, err)
	}

	tempPath := out.Name()
	// Defer the removal of the temp file. If the rename succeeds, tempPath
	// will be set to "", making this a no-op.
	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	// 2. Copy content
	n, err := io.CopyBuffer(out, in, c.ioBuffer)
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to copy content from %s to %s: %w", srcPath, tempPath, err)
	}

	// 3. Copy file permissions
	if err := out.Chmod(srcInfo.Mode()); err != nil {
		out.Close()
		return fmt.Errorf("failed to set permissions on temporary file %s: %w", tempPath, err)
	}

	// 4. Close the file.
	// This flushes data to disk. It MUST be done before Chtimes,
	// because closing/flushing might update the modification time.
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", tempPath, err)
	}

	// 5. Copy file timestamps
	if err := os.Chtimes(tempPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", tempPath, err)
	}

	// 6. Atomically move the temporary file to the final destination.
	if err := os.Rename(tempPath, trgPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", tempPath, err)
	}

	// 7. Clear tempPath to prevent the deferred os.Remove from running.
	tempPath = ""

	c.metrics.AddFilesCopied(1)
	c.metrics.AddBytesCopied(n)
	return nil
}
