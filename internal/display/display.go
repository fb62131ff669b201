// Package display pushes the text under discussion to the study backend so
// the streaming side knows what the participant is looking at.
package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Pusher registers the displayed text and returns the text the backend
// accepted.
type Pusher interface {
	Push(ctx context.Context, text, userID string) (string, error)
}

type Client struct {
	baseURL string
	client  *http.Client
}

var _ Pusher = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

type pushResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Push posts to /api/display-text. A non-2xx reply becomes an error carrying
// the backend's detail message when it sent one.
func (c *Client) Push(ctx context.Context, text, userID string) (string, error) {
	payload, err := json.Marshal(pushRequest{Text: text, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/display-text", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Detail != "" {
			return "", fmt.Errorf("display text rejected (status %d): %s", resp.StatusCode, e.Detail)
		}
		return "", fmt.Errorf("display text rejected (status %d)", resp.StatusCode)
	}

	var result pushResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if result.Text == "" {
		return text, nil
	}
	return result.Text, nil
}
