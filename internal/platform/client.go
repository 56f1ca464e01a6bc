// Package platform is a typed HTTP client for the managed backend that
// owns authentication, the records table, and the realtime change feed.
// The relay never reimplements any of it; everything goes through this
// client's REST surface.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Client talks to the platform's REST APIs.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a platform client. serviceKey may be empty for
// clients that only act on behalf of an authenticated user.
func NewClient(baseURL, anonKey, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a decoded platform error response.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Msg        string `json:"msg"`
	ErrorText  string `json:"error"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Msg
	}
	if msg == "" {
		msg = e.ErrorText
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("platform: %s (status %d)", msg, e.StatusCode)
}

// ProtocolError reports a response that did not carry the declared JSON
// contract. The raw body and status are kept for diagnostics; nothing is
// partially parsed.
type ProtocolError struct {
	StatusCode  int
	ContentType string
	Body        string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("platform: expected JSON but got %q (status %d)", e.ContentType, e.StatusCode)
}

func isJSONContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// do performs a request and decodes the response into out, failing closed:
// a non-JSON content type is a ProtocolError regardless of status, and a
// non-2xx status decodes into APIError.
func (c *Client) do(ctx context.Context, method, path, bearer string, body any, extraHeaders map[string]string, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if !isJSONContentType(ct) {
		return &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			return &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}
	return nil
}
