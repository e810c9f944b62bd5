package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	admcp "github.com/Strob0t/answerdesk/internal/adapter/mcp"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/domain/match"
	kbport "github.com/Strob0t/answerdesk/internal/port/knowledge"
	"github.com/Strob0t/answerdesk/internal/service"
)

// --- Mocks ---

type mockAsker struct {
	result *service.AskResult
	err    error
	gotRC  answer.RequestContext
}

func (m *mockAsker) Ask(_ context.Context, _ string, rc answer.RequestContext) (*service.AskResult, error) {
	m.gotRC = rc
	return m.result, m.err
}

func (m *mockAsker) Match(_ context.Context, _ string) (match.Result, error) {
	return match.Result{Matched: true, EntryID: "setup", Confidence: 0.9}, nil
}

type mockDesk struct {
	pending []service.TrackedAnswer
	got     approval.DecisionEvent
	err     error
}

func (m *mockDesk) ListPending() []service.TrackedAnswer { return m.pending }

func (m *mockDesk) Resolve(_ context.Context, ev approval.DecisionEvent) (approval.Record, error) {
	m.got = ev
	if m.err != nil {
		return approval.Record{}, m.err
	}
	return approval.Record{AnswerID: ev.AnswerID, State: approval.StateApproved, DecidedBy: ev.DecidedBy}, nil
}

func callTool(t *testing.T, s *admcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	text, ok := r.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

// --- Tests ---

func TestToolRegistration(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, admcp.ServerDeps{})

	tools := s.MCPServer().ListTools()
	want := []string{"ask_question", "match_question", "list_pending_approvals", "resolve_approval"}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for _, name := range want {
		if _, ok := tools[name]; !ok {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleAskQuestion(t *testing.T) {
	asker := &mockAsker{result: &service.AskResult{
		Answer: answer.Payload{ID: "a1", Text: "Run make dev."},
		Match:  match.Result{Matched: true, EntryID: "setup", Confidence: 1},
	}}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test"}, admcp.ServerDeps{Answers: asker})

	result := callTool(t, s, "ask_question", map[string]any{"question": "How do I set up?"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	var got service.AskResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got.Answer.ID != "a1" {
		t.Errorf("answer id = %q", got.Answer.ID)
	}
	if asker.gotRC.Source != answer.SourceAPI || asker.gotRC.RequesterID != "mcp" {
		t.Errorf("request context = %+v", asker.gotRC)
	}
}

func TestHandleAskQuestionNoMatch(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test"}, admcp.ServerDeps{Answers: &mockAsker{}})

	result := callTool(t, s, "ask_question", map[string]any{"question": "unrelated"})
	if result.IsError {
		t.Fatal("no match is not an error")
	}
}

func TestHandleAskQuestionMissingArg(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test"}, admcp.ServerDeps{Answers: &mockAsker{}})

	if result := callTool(t, s, "ask_question", nil); !result.IsError {
		t.Fatal("expected error result for missing question")
	}
}

func TestHandleResolveApproval(t *testing.T) {
	desk := &mockDesk{}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test"}, admcp.ServerDeps{Approvals: desk})

	result := callTool(t, s, "resolve_approval", map[string]any{
		"answer_id": "a1", "decision": "approve", "decided_by": "maint",
	})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	if desk.got.AnswerID != "a1" || desk.got.Decision != approval.DecisionApprove || desk.got.DecidedBy != "maint" {
		t.Errorf("decision event = %+v", desk.got)
	}

	desk.err = approval.ErrAlreadyResolved
	if result := callTool(t, s, "resolve_approval", map[string]any{
		"answer_id": "a1", "decision": "reject", "decided_by": "maint",
	}); !result.IsError {
		t.Fatal("expected error result for resolved approval")
	}
}

func TestHandleListPending(t *testing.T) {
	desk := &mockDesk{pending: []service.TrackedAnswer{
		{Record: approval.NewRecord("a1"), Answer: answer.Payload{ID: "a1"}},
	}}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test"}, admcp.ServerDeps{Approvals: desk})

	var got []service.TrackedAnswer
	if err := json.Unmarshal([]byte(resultText(t, callTool(t, s, "list_pending_approvals", nil))), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Record.State != approval.StatePending {
		t.Errorf("pending = %+v", got)
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test"}, admcp.ServerDeps{})

	for _, name := range []string{"ask_question", "match_question", "list_pending_approvals", "resolve_approval"} {
		if result := callTool(t, s, name, map[string]any{"question": "q"}); !result.IsError {
			t.Errorf("%s: expected error result when deps are nil", name)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := admcp.AuthMiddleware("secret", next)

	tests := []struct {
		name, header string
		want         int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusForbidden},
		{"bearer", "Bearer secret", http.StatusOK},
		{"bare key", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if admcp.AuthMiddleware("", next) == nil {
		t.Fatal("disabled auth must pass through")
	}
}

func TestHandlerRequiresAPIKey(t *testing.T) {
	kb := kbport.Static{{ID: "setup", QuestionText: "q", AnswerText: "a"}}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", APIKey: "k"}, admcp.ServerDeps{Knowledge: kb})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
