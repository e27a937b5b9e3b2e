package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxResponseBytes = 4 << 20

// HTTPError is returned by Fetch for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// NewHTTPClient returns a client whose timeout matches a capability's budget.
func NewHTTPClient(timeoutSeconds int) *http.Client {
	timeout := DefaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Fetch performs a GET against base+path with query and headers and returns the body.
func Fetch(ctx context.Context, client *http.Client, base string, path string, query url.Values, headers map[string]string) ([]byte, error) {
	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return send(ctx, client, http.MethodGet, endpoint, nil, headers)
}

// PostJSON marshals payload, POSTs it to base+path and returns the response body.
func PostJSON(ctx context.Context, client *http.Client, base string, path string, payload any, headers map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	merged := map[string]string{"Content-Type": "application/json"}
	for key, value := range headers {
		merged[key] = value
	}

	return send(ctx, client, http.MethodPost, base+path, bytes.NewReader(encoded), merged)
}

func send(ctx context.Context, client *http.Client, method string, endpoint string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: payload}
	}

	return payload, nil
}
