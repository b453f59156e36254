// internal/clients/dispatch/dispatcher.go
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"promptflow/internal/common/httpx"
)

// DeliveryError carries a non-success response from the destination.
type DeliveryError struct {
	StatusCode int
	Status     string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("destination returned %s", e.Status)
}

// Dispatcher delivers generated content to a destination URL with a single
// JSON POST. No retries.
type Dispatcher struct {
	client *httpx.Client
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{client: httpx.NewClient(timeout)}
}

// Dispatch POSTs the envelope and returns the destination's JSON response
// body as-is. The destination is assumed to answer JSON; anything else
// surfaces as a decode error.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, envelope interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dispatch response: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("destination returned non-JSON body")
	}
	return json.RawMessage(raw), nil
}
