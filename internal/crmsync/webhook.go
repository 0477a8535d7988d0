package crmsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("crm webhook url is not configured")

// Receipt is what the CRM acknowledged.
type Receipt struct {
	CRMLeadID string
}

// Deliverer performs exactly one delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, payload Payload) (Receipt, error)
}

// DeliveryError is returned for non-2xx responses.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("crm responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("crm responded with status %d: %s", e.StatusCode, e.Body)
}

const maxResponseBody = 64 << 10

// WebhookClient posts payloads as JSON to a CRM API or relay webhook.
type WebhookClient struct {
	url    string
	apiKey string
	client *http.Client
}

func NewWebhookClient(url, apiKey string, timeout time.Duration) *WebhookClient {
	return &WebhookClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *WebhookClient) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	if c.url == "" {
		return Receipt{}, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("posting to crm: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Receipt{}, fmt.Errorf("reading crm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, &DeliveryError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), 200),
		}
	}

	return Receipt{CRMLeadID: parseLeadID(raw)}, nil
}

// parseLeadID accepts {"id": ...} or {"lead_id": ...} with string or
// numeric values. Anything else, including a non-JSON body, yields "".
func parseLeadID(raw []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, key := range []string{"id", "lead_id"} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
