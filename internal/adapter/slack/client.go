// Package slack talks to the Slack Web API: thread replies for answers,
// Block Kit approval requests, and parsing of inbound events and button
// interactions.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/answerdesk/internal/resilience"
)

// DefaultAPIURL is the Slack Web API base.
const DefaultAPIURL = "https://slack.com/api"

// Client is a minimal Slack Web API client.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a client. An empty apiURL selects DefaultAPIURL.
func NewClient(apiURL, botToken string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) { c.breaker = b }

// Configured reports whether a bot token is set.
func (c *Client) Configured() bool { return c != nil && c.token != "" }

// Message is a chat.postMessage request.
type Message struct {
	Channel  string  `json:"channel,omitempty"`
	Text     string  `json:"text"`
	ThreadTS string  `json:"thread_ts,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
}

// Block is a Block Kit layout block.
type Block struct {
	Type     string    `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	BlockID  string    `json:"block_id,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Element is a Block Kit interactive element or context item.
type Element struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Value    string `json:"value,omitempty"`
	Style    string `json:"style,omitempty"`
}

// PostMessage posts msg and returns the message timestamp.
func (c *Client) PostMessage(ctx context.Context, msg *Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("slack marshal: %w", err)
	}

	var ts string
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat.postMessage", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("slack request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req) //nolint:gosec // API URL from trusted config
		if err != nil {
			return fmt.Errorf("slack send: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode >= 400 {
			return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(data))
		}

		var out struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
			TS    string `json:"ts"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("slack decode: %w", err)
		}
		if !out.OK {
			return fmt.Errorf("slack chat.postMessage: %s", out.Error)
		}
		ts = out.TS
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.ExecuteContext(ctx, call)
	} else {
		err = call(ctx)
	}
	return ts, err
}

// PostWebhook posts msg to an incoming webhook URL.
func (c *Client) PostWebhook(ctx context.Context, webhookURL string, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack webhook %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// ErrBadOriginRef is returned for origin refs not of the form "<channel>/<ts>".
var ErrBadOriginRef = errors.New("slack: origin ref must be <channel>/<thread_ts>")

// SplitOriginRef splits "C0123/1700000000.000100" into channel and thread ts.
func SplitOriginRef(ref string) (channel, threadTS string, err error) {
	channel, threadTS, ok := strings.Cut(ref, "/")
	if !ok || channel == "" || threadTS == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadOriginRef, ref)
	}
	return channel, threadTS, nil
}

// OriginRef builds the origin ref for a message in a channel.
func OriginRef(channel, ts string) string { return channel + "/" + ts }
