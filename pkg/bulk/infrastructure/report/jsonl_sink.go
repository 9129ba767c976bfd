// Package report persists operation reports as line-delimited JSON. One
// report per line keeps the file appendable across runs and trivially
// parseable by log tooling.
package report

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "report"

// JSONLSink writes one JSON document per report, newline-terminated.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
	// closer is set when the sink owns the underlying file.
	closer io.Closer
}

// NewJSONLSink creates a sink writing to the given writer. The caller keeps
// ownership of the writer.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// NewFileJSONLSink opens (or creates) the configured report file in append
// mode.
func NewFileJSONLSink(cfg *config.Config) (*JSONLSink, error) {
	path := cfg.Bulkhead.Report.Path
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, exception.New(moduleName, exception.ClassInternal,
			"failed to open report file "+path, err)
	}
	logger.Infof("JSONLSink: appending reports to %s.", path)
	return &JSONLSink{w: f, closer: f}, nil
}

// Write serializes the report and appends it as one line.
func (s *JSONLSink) Write(ctx context.Context, report *model.OperationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return exception.New(moduleName, exception.ClassInternal, "failed to serialize report", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return exception.New(moduleName, exception.ClassInternal, "failed to write report", err)
	}
	return nil
}

// Close releases the underlying file when the sink owns one.
func (s *JSONLSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

var _ port.ReportSink = (*JSONLSink)(nil)
