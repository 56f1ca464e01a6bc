// Package classifier is the client for the external image classification
// service. Classification is best-effort: its result only pre-fills the
// category suggestion, and any failure leaves the user free to pick a
// category manually.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Prediction is the classifier's verdict for one image.
type Prediction struct {
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
}

// ProtocolError reports a response whose declared content type was not
// JSON. The raw body and status are kept for diagnostics; the body is
// never partially parsed.
type ProtocolError struct {
	StatusCode  int
	ContentType string
	Body        string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("classifier: expected JSON but got %q (status %d)", e.ContentType, e.StatusCode)
}

// HTTPError reports a non-2xx JSON response from the classifier.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("classifier: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the prediction endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Classify sends the image as a single multipart "file" field to
// POST /predict and returns the predicted label with its confidence.
func (c *Client) Classify(ctx context.Context, filename string, image io.Reader) (Prediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Prediction{}, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return Prediction{}, fmt.Errorf("read image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Prediction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, fmt.Errorf("read response: %w", err)
	}

	// Inspect the declared content type before touching the body. A
	// proxy error page must surface as a protocol failure, not as a
	// half-parsed prediction.
	ct := resp.Header.Get("Content-Type")
	if !isJSON(ct) {
		return Prediction{}, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Prediction{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return Prediction{}, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}
	return prediction, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
