package pathcopy

import (
	"time"

	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/util"
)

// Metrics defines the interface for collecting and reporting copy statistics.
type Metrics interface {
	AddEntriesProcessed(n int64)
	AddFilesCopied(n int64)
	AddDirsCreated(n int64)
	AddSymlinksCopied(n int64)
	AddBytesCopied(n int64)
	LogSummary(msg string)
}

// CopyMetrics holds the counters for tracking the copy operation.
// It is the concrete implementation of the Metrics interface.
type CopyMetrics struct {
	EntriesProcessed int64
	FilesCopied      int64
	DirsCreated      int64
	SymlinksCopied   int64
	BytesCopied      int64

	startTime time.Time
}

// NewCopyMetrics creates a metrics collector with its clock started.
func NewCopyMetrics() *CopyMetrics {
	return &CopyMetrics{startTime: time.Now()}
}

func (m *CopyMetrics) AddEntriesProcessed(n int64) { m.EntriesProcessed += n }
func (m *CopyMetrics) AddFilesCopied(n int64)      { m.FilesCopied += n }
func (m *CopyMetrics) AddDirsCreated(n int64)      { m.DirsCreated += n }
func (m *CopyMetrics) AddSymlinksCopied(n int64)   { m.SymlinksCopied += n }
func (m *CopyMetrics) AddBytesCopied(n int64)      { m.BytesCopied += n }

// LogSummary prints a summary of the copy operation with a custom message.
func (m *CopyMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	plog.Info(msg,
		"entries_processed", m.EntriesProcessed,
		"files_copied", m.FilesCopied,
		"dirs_created", m.DirsCreated,
		"symlinks_copied", m.SymlinksCopied,
		"bytes_copied", util.ByteCountIEC(m.BytesCopied),
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEntriesProcessed(n int64) {}
func (m *NoopMetrics) AddFilesCopied(n int64)      {}
func (m *NoopMetrics) AddDirsCreated(n int64)      {}
func (m *NoopMetrics) AddSymlinksCopied(n int64)   {}
func (m *NoopMetrics) AddBytesCopied(n int64)      {}
func (m *NoopMetrics) LogSummary(msg string)       {}

// Statically assert that our types implement the interface.
var _ Metrics = (*CopyMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
