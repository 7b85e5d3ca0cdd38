// Package adapters holds the data sources polled by the collector. Each one
// turns a remote API or database into a model.Snapshot.
package adapters

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/speedwagon-io/homechecks/internal/model"
)

// maxBodySize caps API responses read into memory.
const maxBodySize = 8 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// decodeBody checks the status code and decodes a JSON body keeping numbers
// as json.Number.
func decodeBody(resp *http.Response, v any) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// attrString renders a scalar JSON or SQL value as a tag value.
func attrString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case []byte:
		return strings.TrimSpace(string(v)), true
	case json.Number:
		return v.String(), true
	case int64:
		return fmt.Sprint(v), true
	case float64:
		return fmt.Sprint(v), true
	case bool:
		return fmt.Sprint(v), true
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	}
	return "", false
}

// stateValue maps a decoded value onto the closed value union. Booleans,
// objects, arrays and nulls are unsupported.
func stateValue(raw any) model.Value {
	if t, ok := raw.(time.Time); ok {
		return model.Numeric(float64(t.Unix()))
	}
	return model.ValueOf(raw)
}
