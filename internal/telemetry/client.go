// Package telemetry reports trade lifecycle events to the external tracking
// sink and guarantees at-most-once delivery per deal despite duplicate
// notifications from the execution engine. Delivery is best-effort: a failed
// POST is logged and dropped, never retried, and never touches trading state.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/denisbrodbeck/machineid"
	"golang.org/x/time/rate"
)

// Event is the tracking sink's wire format.
type Event struct {
	EAID      string  `json:"eaId"`
	EventType string  `json:"eventType"` // "OPEN" or "CLOSE"
	Side      string  `json:"side"`      // "BUY" or "SELL"
	Volume    float64 `json:"volume"`
	Price     float64 `json:"price"`
	Profit    float64 `json:"profit"`
	Currency  string  `json:"currency"`
}

// Sink delivers one event. Implemented by Client; faked in tests.
type Sink interface {
	Post(ctx context.Context, ev Event) error
}

// Client posts events to the tracking endpoint over HTTP.
type Client struct {
	url     string
	apiKey  string
	origin  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client with a bounded request timeout. The origin header
// identifies the reporting host across restarts.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	origin, err := machineid.ProtectedID("decision-core")
	if err != nil {
		// Host id is advisory; the sink keys on eaId.
		origin = "unknown"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:     url,
		apiKey:  apiKey,
		origin:  origin,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Post implements Sink. Non-2xx responses are an error so the dedup layer
// keeps its last-sent marker unchanged.
func (c *Client) Post(ctx context.Context, ev Event) error {
	if !c.limiter.Allow() {
		return fmt.Errorf("telemetry rate limit exceeded, dropping %s for %s", ev.EventType, ev.EAID)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal telemetry event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telemetry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Origin-Id", c.origin)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post telemetry event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry sink returned %d", resp.StatusCode)
	}
	return nil
}

// LogDrop records a failed delivery; callers continue unaffected.
func LogDrop(eaID string, err error) {
	log.Printf("telemetry dropped for %s: %v", eaID, err)
}
