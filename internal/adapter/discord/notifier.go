// Package discord implements a notifier.Notifier for Discord webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/answerdesk/internal/port/notifier"
)

const providerName = "discord"

// maxDescription is Discord's embed description limit.
const maxDescription = 4096

// Notifier sends notifications to Discord via incoming webhooks. A target
// address is either a webhook URL or the name of a configured webhook.
type Notifier struct {
	webhooks   map[string]string
	httpClient *http.Client
}

// NewNotifier creates a Discord notifier with named webhook URLs.
func NewNotifier(webhooks map[string]string) *Notifier {
	return &Notifier{
		webhooks:   webhooks,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		return NewNotifier(config), nil
	})
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: true}
}

// discordWebhook is the Discord webhook payload with embeds.
type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) resolve(address string) string {
	if strings.HasPrefix(address, "https://") || strings.HasPrefix(address, "http://") {
		return address
	}
	return n.webhooks[address]
}

func (n *Notifier) Send(ctx context.Context, note notifier.Notification) error {
	url := n.resolve(note.Target.Address)
	if url == "" {
		return notifier.ErrNotConfigured
	}

	desc := note.Text
	if len(desc) > maxDescription {
		desc = desc[:maxDescription-3] + "..."
	}
	embed := discordEmbed{
		Title:       note.Title(),
		Description: desc,
		Color:       kindColor(note.Kind),
		Fields: []discordField{
			{Name: "Question", Value: note.Question},
			{Name: "Origin", Value: fmt.Sprintf("%s %s", note.Context.Source, note.Context.OriginRef), Inline: true},
			{Name: "Asked by", Value: note.Context.RequesterID, Inline: true},
		},
		Footer: &discordFooter{Text: "answer " + note.AnswerID},
	}

	body, err := json.Marshal(discordWebhook{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Discord returns 204 on success
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discord API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func kindColor(k notifier.Kind) int {
	if k == notifier.KindApprovalRequest {
		return 0xF39C12 // orange
	}
	return 0x3498DB // blue
}
