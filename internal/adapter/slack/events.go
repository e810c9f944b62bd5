package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// ErrIgnored is returned for well-formed payloads that carry nothing to act on.
var ErrIgnored = errors.New("slack: event ignored")

// Envelope is the outer Events API body.
type Envelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

type appMention struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Text     string `json:"text"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	BotID    string `json:"bot_id"`
}

// Question is an inbound question extracted from an app mention.
type Question struct {
	Text    string
	Context answer.RequestContext
}

var mentionRE = regexp.MustCompile(`<@[A-Z0-9]+>`)

// ParseEnvelope decodes an Events API body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("slack: decode event: %w", err)
	}
	return env, nil
}

// QuestionFromEvent extracts the question of an app_mention event. Replies
// go to the mention's thread, or start one on the mention itself.
func QuestionFromEvent(env *Envelope) (Question, error) {
	if env.Type != "event_callback" {
		return Question{}, ErrIgnored
	}
	var ev appMention
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		return Question{}, fmt.Errorf("slack: decode app_mention: %w", err)
	}
	if ev.Type != "app_mention" || ev.BotID != "" {
		return Question{}, ErrIgnored
	}
	text := strings.TrimSpace(mentionRE.ReplaceAllString(ev.Text, ""))
	if text == "" || ev.Channel == "" || ev.TS == "" {
		return Question{}, ErrIgnored
	}
	thread := ev.ThreadTS
	if thread == "" {
		thread = ev.TS
	}
	return Question{
		Text: text,
		Context: answer.RequestContext{
			Source:      answer.SourceSlack,
			OriginRef:   OriginRef(ev.Channel, thread),
			RequesterID: ev.User,
		},
	}, nil
}

type interaction struct {
	Type string `json:"type"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// DecisionFromInteraction converts an approval button click, delivered as the
// form-encoded "payload" field, into a decision event.
func DecisionFromInteraction(form url.Values) (approval.DecisionEvent, error) {
	raw := form.Get("payload")
	if raw == "" {
		return approval.DecisionEvent{}, errors.New("slack: missing interaction payload")
	}
	var in interaction
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return approval.DecisionEvent{}, fmt.Errorf("slack: decode interaction: %w", err)
	}
	if in.Type != "block_actions" {
		return approval.DecisionEvent{}, ErrIgnored
	}

	decidedBy := in.User.Username
	if decidedBy == "" {
		decidedBy = in.User.ID
	}
	for _, a := range in.Actions {
		var d approval.Decision
		switch a.ActionID {
		case ActionApprove:
			d = approval.DecisionApprove
		case ActionReject:
			d = approval.DecisionReject
		default:
			continue
		}
		return approval.DecisionEvent{AnswerID: a.Value, Decision: d, DecidedBy: "slack:" + decidedBy}, nil
	}
	return approval.DecisionEvent{}, ErrIgnored
}
