package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/iliyamo/visitor-slot-booking/internal/service")

// endSpan records err (if any) and ends the span.  Validation failures are
// client errors and do not mark the span as failed.
func endSpan(span trace.Span, err error) {
	if err != nil && !IsValidation(err) && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
