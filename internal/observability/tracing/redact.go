package tracing

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Credentials move through this service as headers and payload fields;
// none of them may reach a span.
var redactedKeys = []string{
	"api_key",
	"authorization",
	"bearer",
	"credential",
	"password",
	"secret",
	"token",
}

// SafeAttributes drops any attribute whose key looks credential-bearing.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if redacted(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its type so upstream response bodies
// never leak through span events.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%T", err)
}

func redacted(key string) bool {
	key = strings.ToLower(key)
	for _, needle := range redactedKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
