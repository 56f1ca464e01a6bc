package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/civitas-labs/issue-relay/internal/report"
)

// TokenSource supplies the bearer credential for a submission. The real
// implementation reads the scoped credential store; tests supply a stub.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

var (
	// ErrNotSignedIn means the credential store had no token.
	ErrNotSignedIn = errors.New("user not logged in")

	// ErrSubmissionInFlight means Submit was called while a previous
	// submission was still being processed. The second call is a no-op;
	// no duplicate request is issued.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
)

// RelayError is a decoded error envelope from the relay.
type RelayError struct {
	StatusCode int
	Message    string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay: %s (status %d)", e.Message, e.StatusCode)
}

// ProtocolError reports a relay response that was not the declared JSON
// contract.
type ProtocolError struct {
	StatusCode  int
	ContentType string
	Body        string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("relay: expected JSON but got %q (status %d)", e.ContentType, e.StatusCode)
}

// Submitter performs exactly one network call per accepted draft, with
// no retry. Concurrent submissions are refused client-side.
type Submitter struct {
	relayURL   string
	tokens     TokenSource
	httpClient *http.Client
	inFlight   atomic.Bool
}

func NewSubmitter(relayURL string, tokens TokenSource) *Submitter {
	return &Submitter{
		relayURL:   strings.TrimRight(relayURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Submit validates the draft, assembles the multipart payload, and posts
// it to the relay. On success it returns the persisted record.
func (s *Submitter) Submit(ctx context.Context, draft Draft) (*report.Record, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	category, err := ValidateDraft(draft)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNotSignedIn
	}

	body, contentType, err := assemble(draft, category)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL+"/api/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// assemble builds the multipart body: image, optional audio, optional
// text, canonical category, coordinates, optional address.
func assemble(draft Draft, category report.Category) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := appendFile(writer, "image", draft.ImagePath); err != nil {
		return nil, "", err
	}
	if draft.AudioPath != "" {
		if err := appendFile(writer, "audio", draft.AudioPath); err != nil {
			return nil, "", err
		}
	}
	if text := strings.TrimSpace(draft.Text); text != "" {
		if err := writer.WriteField("text", text); err != nil {
			return nil, "", err
		}
	}
	if err := writer.WriteField("category", string(category)); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("latitude", strconv.FormatFloat(draft.Location.Latitude, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("longitude", strconv.FormatFloat(draft.Location.Longitude, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if draft.Location.Address != "" {
		if err := writer.WriteField("address", draft.Location.Address); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

func appendFile(writer *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// decodeResponse decodes the relay's success or error envelope, failing
// closed on anything that is not declared JSON.
func decodeResponse(resp *http.Response) (*report.Record, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if !isJSON(ct) {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
		}
		message := envelope.Message
		if message == "" {
			message = envelope.Error
		}
		if message == "" {
			message = "Upload failed"
		}
		return nil, &RelayError{StatusCode: resp.StatusCode, Message: message}
	}

	var success struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Record  *report.Record `json:"record"`
	}
	if err := json.Unmarshal(raw, &success); err != nil || success.Record == nil {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}
	return success.Record, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
