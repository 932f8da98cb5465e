package pathcompression

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/util"
)

type tarCompressor struct {
	format  Format
	level   Level
	metrics Metrics

	ioBuffer []byte

	src string
	tw  *tar.Writer
}

func newTarCompressor(format Format, level Level, ioBufferSize int, metrics Metrics) *tarCompressor {
	return &tarCompressor{
		format:   format,
		level:    level,
		metrics:  metrics,
		ioBuffer: make([]byte, ioBufferSize),
	}
}

func (c *tarCompressor) Compress(ctx context.Context, absSourcePath, absArchiveFilePath string) (retErr error) {
	c.src = absSourcePath

	// 1. Create Temp File
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
	if err := c.writeTar(ctx, trgF); err != nil {
		return err
	}

	// 3. Close explicitly
	if err := trgF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Atomic Rename
	if err := os.Rename(tempTrgPath, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}

// newCompressedWriter builds the compression layer between the tar
// writer and the output file, depending on the configured format.
func (c *tarCompressor) newCompressedWriter(out io.Writer) (io.WriteCloser, error) {
	if c.format == TarZst {
		var encoderLevel zstd.EncoderLevel
		switch c.level {
		case Fastest:
			encoderLevel = zstd.SpeedFastest
		case Better:
			encoderLevel = zstd.SpeedBetterCompression
		case Best:
			encoderLevel = zstd.SpeedBestCompression
		default:
			encoderLevel = zstd.SpeedDefault
		}

		zstdWriter, err := zstd.NewWriter(out, zstd.WithEncoderLevel(encoderLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zstdWriter, nil
	}

	var lvl int
	switch c.level {
	case Fastest:
		lvl = pgzip.BestSpeed
	case Better:
		lvl = 6 // Good balance
	case Best:
		lvl = pgzip.BestCompression
	default:
		lvl = pgzip.DefaultCompression
	}
	pgzipWriter, err := pgzip.NewWriterLevel(out, lvl)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return pgzipWriter, nil
}

func (c *tarCompressor) writeTar(ctx context.Context, trgF *os.File) (retErr error) {
	mw := &compressMetricWriter{w: trgF, metrics: c.metrics}
	bufWriter := bufio.NewWriterSize(mw, len(c.ioBuffer))

	compressedWriter, err := c.newCompressedWriter(bufWriter)
	if err != nil {
		return err
	}

	c.tw = tar.NewWriter(compressedWriter)

	// Robust cleanup
	defer func() {
		if err := c.tw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
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
func (c *tarCompressor) writeSymlink(absSrcPath, relPathKey string, info os.FileInfo) error {
	linkTarget, err := os.Readlink(absSrcPath)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", absSrcPath, err)
	}

	header, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey

	c.metrics.AddBytesRead(int64(len(linkTarget)))
	return c.tw.WriteHeader(header)
}

func (c *tarCompressor) writeFile(absSrcPath, relPathKey string, info os.FileInfo) error {
	// Security: TOCTOU check
	fileToTar, err := secureFileOpen(absSrcPath, info)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
	}
	defer fileToTar.Close()

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey

	if err := c.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", relPathKey, err)
	}

	n, err := io.CopyBuffer(c.tw, fileToTar, c.ioBuffer)
	c.metrics.AddBytesRead(n)
	return err
}
