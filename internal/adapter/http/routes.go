package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/answerdesk/internal/middleware"
	"github.com/Strob0t/answerdesk/internal/port/cache"
)

// RouteOptions configures the verification and replay protection of the
// mounted routes.
type RouteOptions struct {
	GitHubSecret       string
	SlackSigningSecret string
	SlackTolerance     time.Duration
	IdempotencyStore   cache.Cache // nil disables Idempotency-Key handling
	IdempotencyTTL     time.Duration
}

// MountRoutes registers all API and webhook routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/health", h.Health)

	// Webhooks carry their own signature verification.
	r.Route("/webhooks", func(r chi.Router) {
		r.With(middleware.WebhookHMAC(opts.GitHubSecret, "X-Hub-Signature-256")).
			Post("/github", h.GitHubWebhook)

		tolerance := opts.SlackTolerance
		if tolerance <= 0 {
			tolerance = 5 * time.Minute
		}
		r.Route("/slack", func(r chi.Router) {
			r.Use(middleware.SlackSignature(opts.SlackSigningSecret, tolerance))
			r.Post("/events", h.SlackEvents)
			r.Post("/interactions", h.SlackInteractions)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"service": "answerdesk", "api": "v1"})
		})

		r.Group(func(r chi.Router) {
			if opts.IdempotencyStore != nil {
				r.Use(middleware.Idempotency(opts.IdempotencyStore, opts.IdempotencyTTL))
			}
			r.Post("/questions", h.AskQuestion)
			r.Post("/approvals/{id}/decision", h.DecideApproval)
			r.Post("/approvals/{id}/republish", h.Republish)
		})
		r.Post("/questions/match", h.MatchQuestion)

		r.Get("/knowledge", h.ListKnowledge)

		r.Get("/approvals", h.ListApprovals)
		r.Get("/approvals/{id}", h.GetApproval)
		r.Get("/approvals/{id}/audit", h.GetAudit)
		r.Get("/approvals/{id}/email-decision", h.EmailDecisionPage)
		r.Post("/approvals/{id}/email-decision", h.EmailDecision)
	})
}
