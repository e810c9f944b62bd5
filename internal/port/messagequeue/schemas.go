package messagequeue

import "time"

// QuestionAnsweredPayload is the schema for questions.answered messages.
type QuestionAnsweredPayload struct {
	AnswerID    string  `json:"answer_id"`
	EntryID     string  `json:"entry_id"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	OriginRef   string  `json:"origin_ref"`
	RequesterID string  `json:"requester_id"`
}

// AnswerPublishedPayload is the schema for answers.published messages.
type AnswerPublishedPayload struct {
	AnswerID  string    `json:"answer_id"`
	Source    string    `json:"source"`
	OriginRef string    `json:"origin_ref"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// AnswerNotifiedPayload is the schema for answers.notified messages.
type AnswerNotifiedPayload struct {
	AnswerID string   `json:"answer_id"`
	Targets  []string `json:"targets"`
	Failed   []string `json:"failed,omitempty"`
}

// ApprovalRequestedPayload is the schema for approvals.requested messages.
type ApprovalRequestedPayload struct {
	AnswerID string   `json:"answer_id"`
	EntryID  string   `json:"entry_id"`
	Text     string   `json:"text"`
	Targets  []string `json:"targets"`
}

// ApprovalResolvedPayload is the schema for approvals.resolved messages.
type ApprovalResolvedPayload struct {
	AnswerID  string    `json:"answer_id"`
	State     string    `json:"state"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// ApprovalDecisionPayload is the schema for approvals.decision messages.
type ApprovalDecisionPayload struct {
	AnswerID   string `json:"answer_id"`
	Decision   string `json:"decision"`
	DecidedBy  string `json:"decided_by"`
	EditedText string `json:"edited_text,omitempty"`
}
