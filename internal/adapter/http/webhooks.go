package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Strob0t/answerdesk/internal/adapter/github"
	"github.com/Strob0t/answerdesk/internal/adapter/slack"
)

// GitHubWebhook handles POST /webhooks/github. The signature has already
// been verified; questions are answered after the delivery is acknowledged.
func (h *Handlers) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get("X-GitHub-Event")
	if event == "ping" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	q, err := github.ParseWebhook(event, body)
	if errors.Is(err, github.ErrIgnored) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.InfoContext(r.Context(), "github question received",
		"event", event,
		"origin_ref", q.Context.OriginRef,
		"delivery", r.Header.Get("X-GitHub-Delivery"),
	)
	h.askInBackground(r.Context(), q.Text, q.Context)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SlackEvents handles POST /webhooks/slack/events (Events API).
func (h *Handlers) SlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	env, err := slack.ParseEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if env.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	}

	q, err := slack.QuestionFromEvent(&env)
	if errors.Is(err, slack.ErrIgnored) {
		// Slack retries anything but 2xx.
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.Header.Get("X-Slack-Retry-Num") != "" {
		slog.InfoContext(r.Context(), "slack retry skipped", "origin_ref", q.Context.OriginRef)
		w.WriteHeader(http.StatusOK)
		return
	}
	h.askInBackground(r.Context(), q.Text, q.Context)
	w.WriteHeader(http.StatusOK)
}

// SlackInteractions handles POST /webhooks/slack/interactions, the
// Approve / Reject buttons of approval requests.
func (h *Handlers) SlackInteractions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	ev, err := slack.DecisionFromInteraction(r.PostForm)
	if errors.Is(err, slack.ErrIgnored) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Background.Go(r.Context(), "slack decision", func(ctx context.Context) error {
		_, err := h.Approvals.Resolve(ctx, ev)
		return err
	})
	w.WriteHeader(http.StatusOK)
}
