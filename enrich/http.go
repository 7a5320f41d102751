package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"rcfeed/models"
)

const maxResponseSize = 1 << 20

// HTTPClient enriches messages through a lookup service. It posts the
// serialized message and the wanted properties, and expects a JSON object of
// property values in return.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

type fetchRequest struct {
	Message    *models.Document `json:"message"`
	Properties []string         `json:"properties"`
}

// NewHTTPClient creates a client for endpoint. A zero timeout leaves the
// deadline to the caller's context.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, msg *models.Message, properties []string) error {
	body, err := json.Marshal(fetchRequest{Message: msg.Serialize(), Properties: properties})
	if err != nil {
		return &FetchError{Code: ErrFetchFailed, Message: "failed to encode request", Details: map[string]any{"cause": err.Error()}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &FetchError{Code: ErrFetchFailed, Message: "failed to build request", Details: map[string]any{"cause": err.Error()}}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return &FetchError{Code: ErrFetchTimeout, Message: "client timed out", Details: map[string]any{"cause": err.Error()}}
		}
		return &FetchError{Code: ErrFetchFailed, Message: "request failed", Details: map[string]any{"cause": err.Error()}}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &FetchError{Code: ErrFetchNotFound, Message: "lookup target not found", Details: map[string]any{"status": resp.StatusCode}}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &FetchError{Code: ErrFetchHTTP, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode), Details: map[string]any{"status": resp.StatusCode}}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &FetchError{Code: ErrFetchFailed, Message: "failed to read response", Details: map[string]any{"cause": err.Error()}}
	}

	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return &FetchError{Code: ErrFetchDecode, Message: "invalid response body", Details: map[string]any{"cause": err.Error()}}
	}

	for _, name := range properties {
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := msg.Set(name, v); err != nil {
			return &FetchError{Code: ErrFetchDecode, Message: "response sets a reserved field", Details: map[string]any{"field": name}}
		}
	}
	return nil
}

func isTimeout(err error) bool {
	te, ok := err.(interface{ Timeout() bool })
	return ok && te.Timeout()
}
