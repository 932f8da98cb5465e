// Package pathcompression implements the logic for compressing a backup
// directory into an archive file (zip, tar.gz, tar.zst) to save space
// and consolidate files.
//
// Archives are always written to a temporary file next to the final
// target and renamed into place on success, so an interrupted run never
// leaves a half-written archive under the final name.
package pathcompression

import (
	"context"
	"fmt"

	"github.com/mzhurova/folderback/pkg/plog"
)

// DefaultBufferSizeKB is the I/O buffer size used when the caller does
// not specify one.
const DefaultBufferSizeKB = 512

// Plan carries the per-run options for a compression pass.
type Plan struct {
	Format Format
	Level  Level
	DryRun bool
	// BufferSizeKB sizes the read/write buffers. Zero means DefaultBufferSizeKB.
	BufferSizeKB int
}

// PathCompressor compresses a directory tree into a single archive.
type PathCompressor struct {
	plan    Plan
	metrics Metrics
}

// NewPathCompressor creates a new PathCompressor for the given plan.
func NewPathCompressor(p Plan, metrics Metrics) *PathCompressor {
	if p.BufferSizeKB <= 0 {
		p.BufferSizeKB = DefaultBufferSizeKB
	}
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &PathCompressor{plan: p, metrics: metrics}
}

// Compress walks absSourcePath and writes every file into the archive at
// absArchiveFilePath, with entry names relative to the source root.
func (c *PathCompressor) Compress(ctx context.Context, absSourcePath, absArchiveFilePath string) error {
	plog.Notice("COMPRESS", "source", absSourcePath, "archive", absArchiveFilePath)

	if c.plan.DryRun {
		plog.Notice("[DRY RUN] COMPRESS", "source", absSourcePath, "archive", absArchiveFilePath)
		return nil
	}

	bufferSize := c.plan.BufferSizeKB * 1024

	var cmp compressor
	switch c.plan.Format {
	case Zip:
		cmp = newZipCompressor(c.plan.Level, bufferSize, c.metrics)
	case TarGz, TarZst:
		cmp = newTarCompressor(c.plan.Format, c.plan.Level, bufferSize, c.metrics)
	default:
		return fmt.Errorf("unsupported compression format: %s", c.plan.Format)
	}

	if err := cmp.Compress(ctx, absSourcePath, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to compress %s: %w", absSourcePath, err)
	}
	return nil
}
