package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// postJSON performs one upstream POST and returns the status and raw
// body. Transport-level failures (timeouts included) come back as an
// error with a zero status.
func postJSON(ctx context.Context, client *http.Client, url, apiKeyHeader, apiKey string, extraHeaders map[string]string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, apiKey)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// classifyStatus maps a vendor HTTP status to a failure kind.
// Vendor-side throttling counts as transient: a fallback vendor has
// its own rate budget.
func classifyStatus(vendor string, status int, body []byte) error {
	kind := KindRejected
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = KindTransient
	}
	return newError(vendor, kind, status, fmt.Errorf("upstream returned %d: %s", status, truncate(body, 256)))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
