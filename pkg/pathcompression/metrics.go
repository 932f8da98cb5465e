package pathcompression

import (
	"time"

	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/util"
)

// Metrics defines the interface for collecting and reporting compression statistics.
type Metrics interface {
	AddEntriesProcessed(n int64)
	AddBytesRead(n int64)
	AddBytesWritten(n int64)
	LogSummary(msg string)
}

// CompressionMetrics holds the counters for tracking the compression operation.
// It is the concrete implementation of the Metrics interface.
type CompressionMetrics struct {
	EntriesProcessed int64
	BytesRead        int64
	BytesWritten     int64

	startTime time.Time
}

// NewCompressionMetrics creates a metrics collector with its clock started.
func NewCompressionMetrics() *CompressionMetrics {
	return &CompressionMetrics{startTime: time.Now()}
}

func (m *CompressionMetrics) AddEntriesProcessed(n int64) { m.EntriesProcessed += n }
func (m *CompressionMetrics) AddBytesRead(n int64)        { m.BytesRead += n }
func (m *CompressionMetrics) AddBytesWritten(n int64)     { m.BytesWritten += n }

// LogSummary prints a summary of the compression operation with a custom message.
func (m *CompressionMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	plog.Info(msg,
		"entries_processed", m.EntriesProcessed,
		"bytes_read", util.ByteCountIEC(m.BytesRead),
		"bytes_written", util.ByteCountIEC(m.BytesWritten),
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEntriesProcessed(n int64) {}
func (m *NoopMetrics) AddBytesRead(n int64)        {}
func (m *NoopMetrics) AddBytesWritten(n int64)     {}
func (m *NoopMetrics) LogSummary(msg string)       {}

// Statically assert that our types implement the interface.
var _ Metrics = (*CompressionMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
