package http

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Strob0t/answerdesk/internal/adapter/email"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/domain/workflow"
	"github.com/Strob0t/answerdesk/internal/port/knowledge"
	"github.com/Strob0t/answerdesk/internal/service"
)

// HealthCheck probes one dependency for GET /health.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// Handlers holds the service dependencies of the HTTP handlers.
type Handlers struct {
	Answers    *service.AnswerService
	Approvals  *service.ApprovalService
	Knowledge  knowledge.Source
	EmailLinks *email.LinkSigner // nil disables the e-mail decision endpoint
	Checks     []HealthCheck
	Background *Runner
}

type askRequest struct {
	Question string                `json:"question"`
	Context  answer.RequestContext `json:"context"`
}

type askResponse struct {
	*service.AskResult
	Error string `json:"error,omitempty"`
}

// AskQuestion handles POST /api/v1/questions.
func (h *Handlers) AskQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[askRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Question, "question") {
		return
	}
	if req.Context.Source == "" {
		req.Context.Source = answer.SourceAPI
	}

	res, err := h.Answers.Ask(r.Context(), req.Question, req.Context)
	switch {
	case res == nil && err == nil:
		w.WriteHeader(http.StatusNoContent)
	case res == nil:
		writeDomainError(w, err, "entry not found")
	case err != nil && res.Outcome.Kind == workflow.OutcomePublishFailed:
		// Nothing went out; the body carries the answer id for republish.
		writeJSON(w, statusFor(err), askResponse{AskResult: res, Error: err.Error()})
	case err != nil:
		// The answer exists; only some deliveries failed.
		writeJSON(w, http.StatusOK, askResponse{AskResult: res, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, askResponse{AskResult: res})
	}
}

// MatchQuestion handles POST /api/v1/questions/match, a dry run that only
// scores the question.
func (h *Handlers) MatchQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[askRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Question, "question") {
		return
	}
	res, err := h.Answers.Match(r.Context(), req.Question)
	if err != nil {
		writeDomainError(w, err, "knowledge base unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListKnowledge handles GET /api/v1/knowledge.
func (h *Handlers) ListKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Knowledge.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err, "knowledge base unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListApprovals handles GET /api/v1/approvals. An optional ?state= filters
// by record state.
func (h *Handlers) ListApprovals(w http.ResponseWriter, r *http.Request) {
	state := approval.State(r.URL.Query().Get("state"))
	var list []service.TrackedAnswer
	switch state {
	case "":
		list = h.Approvals.List()
	case approval.StatePending:
		list = h.Approvals.ListPending()
	case approval.StateApproved, approval.StateRejected, approval.StateEdited:
		for _, ta := range h.Approvals.List() {
			if ta.Record.State == state {
				list = append(list, ta)
			}
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid state: "+string(state))
		return
	}
	if list == nil {
		list = []service.TrackedAnswer{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetApproval handles GET /api/v1/approvals/{id}.
func (h *Handlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	ta, err := h.Approvals.Get(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "approval not found")
		return
	}
	writeJSON(w, http.StatusOK, ta)
}

type decisionRequest struct {
	Decision   approval.Decision `json:"decision"`
	DecidedBy  string            `json:"decided_by"`
	EditedText string            `json:"edited_text,omitempty"`
}

type decisionResponse struct {
	Record approval.Record `json:"record"`
	Error  string          `json:"error,omitempty"`
}

// DecideApproval handles POST /api/v1/approvals/{id}/decision.
func (h *Handlers) DecideApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decisionRequest](w, r)
	if !ok {
		return
	}
	h.resolve(w, r, approval.DecisionEvent{
		AnswerID:   urlParam(r, "id"),
		Decision:   req.Decision,
		DecidedBy:  req.DecidedBy,
		EditedText: req.EditedText,
	})
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request, ev approval.DecisionEvent) {
	rec, err := h.Approvals.Resolve(r.Context(), ev)
	if err != nil && rec.AnswerID == "" {
		writeDomainError(w, err, "approval not found")
		return
	}
	resp := decisionResponse{Record: rec}
	if err != nil {
		// The decision stands; archiving or publishing failed.
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

var emailConfirmPage = template.Must(template.New("confirm").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Confirm decision</title></head>
<body>
<p>{{.Verb}} answer {{.AnswerID}} as {{.By}}?</p>
<blockquote>{{.Text}}</blockquote>
<form method="post" action="{{.Action}}">
<input type="hidden" name="decision" value="{{.Decision}}">
<input type="hidden" name="by" value="{{.By}}">
<input type="hidden" name="sig" value="{{.Sig}}">
<button type="submit">{{.Verb}}</button>
</form>
</body></html>
`))

type emailConfirmData struct {
	AnswerID string
	Text     string
	Decision approval.Decision
	Verb     string
	By       string
	Sig      string
	Action   string
}

// emailLink extracts and verifies the signed decision carried by an e-mail
// link, from the query string or a posted form.
func (h *Handlers) emailLink(w http.ResponseWriter, r *http.Request) (id string, d approval.Decision, by, sig string, ok bool) {
	if h.EmailLinks == nil {
		writeError(w, http.StatusNotFound, "e-mail approvals are not enabled")
		return "", "", "", "", false
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return "", "", "", "", false
	}
	id = urlParam(r, "id")
	d = approval.Decision(r.Form.Get("decision"))
	by = r.Form.Get("by")
	sig = r.Form.Get("sig")
	if d == approval.DecisionEdit || !h.EmailLinks.Verify(id, d, by, sig) {
		writeError(w, http.StatusForbidden, "invalid approval link")
		return "", "", "", "", false
	}
	return id, d, by, sig, true
}

// EmailDecisionPage handles GET /api/v1/approvals/{id}/email-decision, the
// target of the signed links in approval e-mails. It only renders a
// confirmation form; mail scanners that prefetch links change nothing.
func (h *Handlers) EmailDecisionPage(w http.ResponseWriter, r *http.Request) {
	id, d, by, sig, ok := h.emailLink(w, r)
	if !ok {
		return
	}
	ta, err := h.Approvals.Get(id)
	if err != nil {
		writeText(w, statusFor(err), "Answer %s is not awaiting a decision.\n", id)
		return
	}
	if ta.Record.State != approval.StatePending {
		writeText(w, http.StatusConflict, "Answer %s was already decided.\n", id)
		return
	}

	verb := "Approve"
	if d == approval.DecisionReject {
		verb = "Reject"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := emailConfirmPage.Execute(w, emailConfirmData{
		AnswerID: id,
		Text:     ta.Answer.Text,
		Decision: d,
		Verb:     verb,
		By:       by,
		Sig:      sig,
		Action:   r.URL.Path,
	}); err != nil {
		slog.Error("render e-mail confirmation", "answer_id", id, "error", err)
	}
}

// EmailDecision handles POST /api/v1/approvals/{id}/email-decision, submitted
// from the confirmation page.
func (h *Handlers) EmailDecision(w http.ResponseWriter, r *http.Request) {
	id, d, by, _, ok := h.emailLink(w, r)
	if !ok {
		return
	}

	rec, err := h.Approvals.Resolve(r.Context(), approval.DecisionEvent{AnswerID: id, Decision: d, DecidedBy: by})
	if err != nil && rec.AnswerID == "" {
		status := statusFor(err)
		if status == http.StatusConflict {
			writeText(w, status, "Answer %s was already decided.\n", id)
			return
		}
		writeText(w, status, "Could not record the decision for answer %s.\n", id)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Answer %s is now %s.\n", id, rec.State)
	if err != nil {
		_, _ = fmt.Fprintln(w, "Publishing failed and can be retried from the dashboard.")
	}
}

// Republish handles POST /api/v1/approvals/{id}/republish.
func (h *Handlers) Republish(w http.ResponseWriter, r *http.Request) {
	if err := h.Approvals.Republish(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "approval not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAudit handles GET /api/v1/approvals/{id}/audit.
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Approvals.Audit(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "audit not found")
		return
	}
	if entries == nil {
		entries = []approval.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.Checks))}
	status := http.StatusOK
	for _, c := range h.Checks {
		if err := c.Check(r.Context()); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, resp)
}

// askInBackground answers q after the webhook has been acknowledged.
func (h *Handlers) askInBackground(ctx context.Context, q string, rc answer.RequestContext) {
	h.Background.Go(ctx, "ask "+string(rc.Source), func(ctx context.Context) error {
		res, err := h.Answers.Ask(ctx, q, rc)
		if err != nil && res != nil {
			return fmt.Errorf("answer %s: %w", res.Answer.ID, err)
		}
		return err
	})
}
