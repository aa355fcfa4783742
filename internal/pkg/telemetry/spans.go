package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer name and span names used for instrumentation.
const (
	TracerName = "github.com/sijey-CJAA/ByaHero-Prototype-V3"

	SpanResolve        = "geofence.resolve"
	SpanReload         = "geofence.reload"
	SpanReportLocation = "fleet.report_location"
	SpanUpdateStatus   = "fleet.update_status"
	SpanSetSeats       = "fleet.set_seats"
	SpanClearLocation  = "fleet.clear_location"
	SpanIngestReport   = "ingest.report"
)

// Tracer returns the package-wide tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
