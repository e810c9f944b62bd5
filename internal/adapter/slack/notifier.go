package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/answerdesk/internal/port/notifier"
)

const providerName = "slack"

// Action ids on approval buttons. The button value carries the answer id.
const (
	ActionApprove = "answerdesk_approve"
	ActionReject  = "answerdesk_reject"
)

// Notifier sends notifications to Slack. Target addresses are channels
// ("#maintainers", "C0123") posted to with the bot token, or incoming
// webhook URLs.
type Notifier struct {
	client *Client
}

// NewNotifier creates a Slack notifier.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{
		RichFormatting: true,
		Interactive:    n.client.Configured(),
	}
}

func (n *Notifier) Send(ctx context.Context, note notifier.Notification) error {
	msg := buildMessage(&note)

	addr := note.Target.Address
	if strings.HasPrefix(addr, "https://") {
		return n.client.PostWebhook(ctx, addr, msg)
	}
	if !n.client.Configured() {
		return notifier.ErrNotConfigured
	}
	msg.Channel = addr
	_, err := n.client.PostMessage(ctx, msg)
	return err
}

func buildMessage(note *notifier.Notification) *Message {
	ctxLine := fmt.Sprintf("%s `%s` asked by @%s | answer `%s`",
		note.Context.Source, note.Context.OriginRef, note.Context.RequesterID, note.AnswerID)

	msg := &Message{
		Text: note.Title() + ": " + note.Question,
		Blocks: []Block{
			{Type: "header", Text: &Text{Type: "plain_text", Text: note.Title()}},
			{Type: "section", Text: &Text{Type: "mrkdwn", Text: "*Question*\n>" + quote(note.Question)}},
			{Type: "section", Text: &Text{Type: "mrkdwn", Text: "*Answer*\n" + note.Text}},
			{Type: "context", Elements: []Element{{Type: "mrkdwn", Text: &Text{Type: "mrkdwn", Text: ctxLine}}}},
		},
	}

	if note.Kind == notifier.KindApprovalRequest {
		msg.Blocks = append(msg.Blocks, Block{
			Type:    "actions",
			BlockID: "approval_" + note.AnswerID,
			Elements: []Element{
				{
					Type:     "button",
					Text:     &Text{Type: "plain_text", Text: "Approve"},
					Style:    "primary",
					ActionID: ActionApprove,
					Value:    note.AnswerID,
				},
				{
					Type:     "button",
					Text:     &Text{Type: "plain_text", Text: "Reject"},
					Style:    "danger",
					ActionID: ActionReject,
					Value:    note.AnswerID,
				},
			},
		})
	}
	return msg
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\n", "\n>")
}
