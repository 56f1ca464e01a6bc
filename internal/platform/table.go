package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/civitas-labs/issue-relay/internal/report"
)

// MessagesTable is the records table the relay writes to. The relay is
// the only writer from this system's perspective.
const MessagesTable = "messages"

// InsertRecord inserts one row and returns the representation the
// platform persisted.
func (c *Client) InsertRecord(ctx context.Context, row report.InsertRow) (*report.Record, error) {
	headers := map[string]string{"Prefer": "return=representation"}

	var out []report.Record
	err := c.do(ctx, http.MethodPost, "/rest/v1/"+MessagesTable, c.serviceKey, []report.InsertRow{row}, headers, &out)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("platform: insert returned %d rows, expected 1", len(out))
	}
	return &out[0], nil
}

// SelectRecords returns all records owned by userID, newest first.
func (c *Client) SelectRecords(ctx context.Context, userID string) ([]report.Record, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("user_id", "eq."+userID)
	query.Set("order", "created_at.desc")

	var out []report.Record
	path := "/rest/v1/" + MessagesTable + "?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, c.serviceKey, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SelectObjectURLs returns the image and audio URLs referenced by any row,
// for the orphan-object sweep.
func (c *Client) SelectObjectURLs(ctx context.Context) (map[string]struct{}, error) {
	var rows []struct {
		ImageURL string  `json:"image_url"`
		AudioURL *string `json:"audio_url"`
	}

	path := "/rest/v1/" + MessagesTable + "?select=image_url,audio_url"
	if err := c.do(ctx, http.MethodGet, path, c.serviceKey, nil, nil, &rows); err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{}, len(rows)*2)
	for _, row := range rows {
		referenced[row.ImageURL] = struct{}{}
		if row.AudioURL != nil {
			referenced[*row.AudioURL] = struct{}{}
		}
	}
	return referenced, nil
}
