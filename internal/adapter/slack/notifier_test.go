package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/port/notifier"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

// Compile-time interface checks.
var (
	_ notifier.Notifier   = (*Notifier)(nil)
	_ publisher.Publisher = (*Publisher)(nil)
)

func testNotification(kind notifier.Kind, addr string) notifier.Notification {
	return notifier.Notification{
		Kind:     kind,
		Target:   notifier.Target{Provider: "slack", Address: addr},
		AnswerID: "ans-1",
		Question: "how do I set up my env?",
		Text:     "Hi @octocat! Run make bootstrap.",
		Context:  answer.RequestContext{Source: answer.SourceGitHub, OriginRef: "acme/widgets#7", RequesterID: "octocat"},
	}
}

// apiServer fakes chat.postMessage and captures the last message.
func apiServer(t *testing.T, got *Message) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("missing bot token")
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1700000000.000200"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotifierName(t *testing.T) {
	n := NewNotifier(NewClient("", ""))
	if n.Name() != "slack" {
		t.Fatalf("expected 'slack', got %q", n.Name())
	}
	if n.Capabilities().Interactive {
		t.Fatal("expected non-interactive without a bot token")
	}
}

func TestSendNotConfigured(t *testing.T) {
	n := NewNotifier(NewClient("", ""))
	err := n.Send(context.Background(), testNotification(notifier.KindNotification, "#maintainers"))
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendApprovalRequestHasButtons(t *testing.T) {
	var got Message
	srv := apiServer(t, &got)

	n := NewNotifier(NewClient(srv.URL, "xoxb-test"))
	if err := n.Send(context.Background(), testNotification(notifier.KindApprovalRequest, "#maintainers")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Channel != "#maintainers" {
		t.Errorf("channel = %q", got.Channel)
	}
	last := got.Blocks[len(got.Blocks)-1]
	if last.Type != "actions" || len(last.Elements) != 2 {
		t.Fatalf("expected actions block with two buttons, got %+v", last)
	}
	if last.Elements[0].ActionID != ActionApprove || last.Elements[0].Value != "ans-1" {
		t.Errorf("unexpected approve button %+v", last.Elements[0])
	}
}

func TestSendNotificationHasNoButtons(t *testing.T) {
	var got Message
	srv := apiServer(t, &got)

	n := NewNotifier(NewClient(srv.URL, "xoxb-test"))
	if err := n.Send(context.Background(), testNotification(notifier.KindNotification, "C0123")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range got.Blocks {
		if b.Type == "actions" {
			t.Fatal("notify-only message must not carry buttons")
		}
	}
}

func TestSendWebhookAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	// httptest URLs are http://, so go through the webhook path explicitly.
	c := NewClient("", "")
	if err := c.PostWebhook(context.Background(), srv.URL, &Message{Text: "x"}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestChatPostMessageNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "xoxb-test").PostMessage(context.Background(), &Message{Channel: "C1", Text: "x"})
	if err == nil {
		t.Fatal("expected error when ok=false")
	}
}

func TestPublisherRepliesInThread(t *testing.T) {
	var got Message
	srv := apiServer(t, &got)

	p := NewPublisher(NewClient(srv.URL, "xoxb-test"))
	err := p.Publish(context.Background(), publisher.Publication{
		AnswerID: "ans-1",
		Text:     "Run make bootstrap.",
		Context:  answer.RequestContext{Source: answer.SourceSlack, OriginRef: "C0123/1700000000.000100", RequesterID: "U1"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.Channel != "C0123" || got.ThreadTS != "1700000000.000100" {
		t.Errorf("unexpected target %q/%q", got.Channel, got.ThreadTS)
	}
}

func TestPublisherBadOriginRef(t *testing.T) {
	p := NewPublisher(NewClient("", "xoxb-test"))
	err := p.Publish(context.Background(), publisher.Publication{
		Context: answer.RequestContext{Source: answer.SourceSlack, OriginRef: "no-thread"},
	})
	if !errors.Is(err, ErrBadOriginRef) {
		t.Fatalf("expected ErrBadOriginRef, got %v", err)
	}
}
