// Package docsync appends dated entries to the top of a Google Doc.
package docsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized means the stored token was rejected and needs refreshing.
var ErrUnauthorized = errors.New("document token rejected")

// Client is a thin HTTP client for the Docs batchUpdate endpoint.
type Client struct {
	baseURL    string
	dateLayout string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL (e.g. https://docs.googleapis.com).
// Entries are headed with the date in dateLayout.
func NewClient(baseURL, dateLayout string, timeout time.Duration) *Client {
	if dateLayout == "" {
		dateLayout = "Jan 2, 2006"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dateLayout: dateLayout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type location struct {
	Index int `json:"index"`
}

type insertText struct {
	Location location `json:"location"`
	Text     string   `json:"text"`
}

type request struct {
	InsertText *insertText `json:"insertText,omitempty"`
}

type batchUpdate struct {
	Requests []request `json:"requests"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Entry renders the text inserted for one accomplishment.
func (c *Client) Entry(text string, at time.Time) string {
	return fmt.Sprintf("%s\n%s\n\n", at.Format(c.dateLayout), strings.TrimSpace(text))
}

// AppendEntry inserts a dated entry at the start of the document body.
func (c *Client) AppendEntry(ctx context.Context, token, docID, text string, at time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(docID) == "" {
		return errors.New("document id required")
	}
	body := batchUpdate{Requests: []request{{
		InsertText: &insertText{Location: location{Index: 1}, Text: c.Entry(text, at)},
	}}}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	path := "/v1/documents/" + url.PathEscape(docID) + ":batchUpdate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w (%d)", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("docs API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status %d on POST %s: %s", resp.StatusCode, path, strings.TrimSpace(string(respBody)))
	}
	return nil
}
