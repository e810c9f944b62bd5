package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxWebhookBody = 5 << 20 // 5 MB

// WebhookHMAC returns middleware that validates HMAC-SHA256 webhook
// signatures in header ("X-Hub-Signature-256" for GitHub). The body is
// restored for the next handler.
func WebhookHMAC(secret, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"webhook secret not configured"}`, http.StatusServiceUnavailable)
				return
			}

			sig := r.Header.Get(header)
			if sig == "" {
				http.Error(w, "missing webhook signature", http.StatusUnauthorized)
				return
			}

			body, ok := readBody(w, r)
			if !ok {
				return
			}

			if !verifyHMAC(body, strings.TrimPrefix(sig, "sha256="), secret) {
				http.Error(w, "invalid webhook signature", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SlackSignature returns middleware that validates Slack request signing
// (v0 scheme). Requests whose timestamp is further than tolerance from now
// are refused to prevent replays.
func SlackSignature(signingSecret string, tolerance time.Duration) func(http.Handler) http.Handler {
	return slackSignature(signingSecret, tolerance, time.Now)
}

func slackSignature(signingSecret string, tolerance time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if signingSecret == "" {
				http.Error(w, `{"error":"slack signing secret not configured"}`, http.StatusServiceUnavailable)
				return
			}

			ts := r.Header.Get("X-Slack-Request-Timestamp")
			sig := r.Header.Get("X-Slack-Signature")
			if ts == "" || sig == "" {
				http.Error(w, "missing slack signature", http.StatusUnauthorized)
				return
			}
			sec, err := strconv.ParseInt(ts, 10, 64)
			if err != nil || math.Abs(now().Sub(time.Unix(sec, 0)).Seconds()) > tolerance.Seconds() {
				http.Error(w, "stale slack request", http.StatusForbidden)
				return
			}

			body, ok := readBody(w, r)
			if !ok {
				return
			}

			base := append([]byte("v0:"+ts+":"), body...)
			if !verifyHMAC(base, strings.TrimPrefix(sig, "v0="), signingSecret) {
				http.Error(w, "invalid slack signature", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, true
}

// verifyHMAC checks a hex HMAC-SHA256 of payload.
func verifyHMAC(payload []byte, hexSig, secret string) bool {
	sigBytes, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(sigBytes, mac.Sum(nil))
}
