package submit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/civitas-labs/issue-relay/internal/report"
)

// FetchIssues retrieves the caller's records from the relay, newest
// first. Used by the history feed for its initial load and for gap
// recovery after a subscription drop.
func (s *Submitter) FetchIssues(ctx context.Context) ([]report.Record, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNotSignedIn
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.relayURL+"/api/messages", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
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
		return nil, &RelayError{StatusCode: resp.StatusCode, Message: message}
	}

	var success struct {
		Status string          `json:"status"`
		Data   []report.Record `json:"data"`
	}
	if err := json.Unmarshal(raw, &success); err != nil {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Body: string(raw)}
	}
	return success.Data, nil
}
