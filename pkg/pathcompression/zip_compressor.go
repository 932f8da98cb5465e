package pathcompression

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/util"
)

type zipCompressor struct {
	level   Level
	metrics Metrics

	ioBuffer []byte

	src string
	zw  *zip.Writer
}

func newZipCompressor(level Level, ioBufferSize int, metrics Metrics) *zipCompressor {
	return &zipCompressor{
		level:    level,
		metrics:  metrics,
		ioBuffer: make([]byte, ioBufferSize),
	}
}

// flateLevel maps the compression Level to a flate level.
func flateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Better:
		return 6 // Good balance
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func (c *zipCompressor) Compress(ctx context.Context, absSourcePath, absArchiveFilePath string) (retErr error) {
	c.src = absSourcePath

	// 1. Create Temp File
	// We create it in the same directory as the target to ensure atomic rename.
	trgF, err := os.CreateTemp(filepath.Dir(absArchiveFilePath), "folderback-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempTrgPath := trgF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			trgF.Close()
			os.Remove(tempTrgPath)
		}
	}()

	// 2. Write Archive Content
	if err := c.writeZip(ctx, trgF); err != nil {
		return err
	}

	// 3. Close explicitly to flush to disk before rename
	if err := trgF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Atomic Rename
	if err := os.Rename(tempTrgPath, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}

func (c *zipCompressor) writeZip(ctx context.Context, trgF *os.File) (retErr error) {
	mw := &compressMetricWriter{w: trgF, metrics: c.metrics}
	bufWriter := bufio.NewWriterSize(mw, len(c.ioBuffer))

	c.zw = zip.NewWriter(bufWriter)

	// Use klauspost's flate at the configured level instead of the
	// writer's built-in default.
	lvl := flateLevel(c.level)
	c.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, lvl)
	})

	// Robust cleanup
	defer func() {
		if err := c.zw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	return filepath.WalkDir(c.src, func(absSrcPath string, d os.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absSrcPath, err)
		}

		relPathKey, err := filepath.Rel(c.src, absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absSrcPath, err)
		}
		relPathKey = util.NormalizePath(relPathKey)

		plog.Notice("ADD", "source", c.src, "file", relPathKey)
		c.metrics.AddEntriesProcessed(1)

		if info.Mode()&os.ModeSymlink != 0 {
			return c.writeSymlink(absSrcPath, relPathKey, info)
		}
		return c.writeFile(absSrcPath, relPathKey, info)
	})
}

// Internal helpers
func (c *zipCompressor) writeSymlink(absSrcPath, relPathKey string, info os.FileInfo) error {
	linkTarget, err := os.Readlink(absSrcPath)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", absSrcPath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey
	header.Method = zip.Store // Symlinks are stored, not compressed!

	w, err := c.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(linkTarget)); err != nil {
		return err
	}
	c.metrics.AddBytesRead(int64(len(linkTarget)))
	return nil
}

func (c *zipCompressor) writeFile(absSrcPath, relPathKey string, info os.FileInfo) error {
	// Security: TOCTOU check
	fileToZip, err := secureFileOpen(absSrcPath, info)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
	}
	defer fileToZip.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey
	header.Method = zip.Deflate

	w, err := c.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", relPathKey, err)
	}

	n, err := io.CopyBuffer(w, fileToZip, c.ioBuffer)
	c.metrics.AddBytesRead(n)
	return err
}
