package report

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
)

// Module is an Fx module that provides the file-backed JSONL report sink and
// closes it on application shutdown.
var Module = fx.Options(
	fx.Provide(NewFileJSONLSink),
	fx.Provide(func(s *JSONLSink) port.ReportSink { return s }),
	fx.Invoke(func(lc fx.Lifecycle, sink *JSONLSink) {
		lc.Append(fx.StopHook(sink.Close))
	}),
)
