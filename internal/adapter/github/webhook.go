package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
)

// ErrIgnored is returned for events that carry no question to answer.
var ErrIgnored = errors.New("github: event ignored")

// Question is an inbound question extracted from an issue event.
type Question struct {
	Text    string
	Context answer.RequestContext
}

type issuePayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number      int             `json:"number"`
		Title       string          `json:"title"`
		Body        string          `json:"body"`
		PullRequest json.RawMessage `json:"pull_request"`
	} `json:"issue"`
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"sender"`
}

// ParseWebhook turns an "issues" (opened) or "issue_comment" (created) event
// into a question. Events from bots, other actions and pull request comments
// return ErrIgnored.
func ParseWebhook(eventType string, body []byte) (Question, error) {
	if eventType != "issues" && eventType != "issue_comment" {
		return Question{}, ErrIgnored
	}
	var raw issuePayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return Question{}, fmt.Errorf("parse github %s webhook: %w", eventType, err)
	}
	if raw.Sender.Type == "Bot" || strings.HasSuffix(raw.Sender.Login, "[bot]") {
		return Question{}, ErrIgnored
	}

	var text string
	switch eventType {
	case "issues":
		if raw.Action != "opened" {
			return Question{}, ErrIgnored
		}
		text = strings.TrimSpace(raw.Issue.Title + "\n" + raw.Issue.Body)
	case "issue_comment":
		if raw.Action != "created" || len(raw.Issue.PullRequest) > 0 {
			return Question{}, ErrIgnored
		}
		text = strings.TrimSpace(raw.Comment.Body)
	}
	if text == "" || raw.Repository.FullName == "" || raw.Issue.Number <= 0 {
		return Question{}, ErrIgnored
	}

	return Question{
		Text: text,
		Context: answer.RequestContext{
			Source:      answer.SourceGitHub,
			OriginRef:   fmt.Sprintf("%s#%d", raw.Repository.FullName, raw.Issue.Number),
			RequesterID: raw.Sender.Login,
		},
	}, nil
}
