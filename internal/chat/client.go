package chat

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

// Reply is the chat endpoint's answer.
type Reply struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Error is returned when the endpoint answers with success=false.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat: %d %s", e.Status, e.Message)
}

type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient builds a client for the chat endpoint under baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		URL:        strings.TrimRight(baseURL, "/") + "/api/chat",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Send(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending chat message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		if resp.StatusCode >= 400 {
			return "", &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if !reply.Success {
		msg := reply.Error
		if msg == "" {
			msg = "chat request failed"
		}
		return "", &Error{Status: resp.StatusCode, Message: msg}
	}
	return reply.Message, nil
}
