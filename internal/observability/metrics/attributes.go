package metrics

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/autogenlabs-dev/tokengate/internal/observability/tracing"
)

// FilterAttributes drops attributes with sensitive keys before they
// reach any metrics backend.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	return tracing.SafeAttributes(attrs...)
}
