package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.askQuestionTool(),
		s.matchQuestionTool(),
		s.listPendingApprovalsTool(),
		s.resolveApprovalTool(),
	)
}

func (s *Server) askQuestionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("ask_question",
		mcplib.WithDescription("Answer a question from the FAQ knowledge base and run the configured workflow"),
		mcplib.WithString("question",
			mcplib.Required(),
			mcplib.Description("The question to answer"),
		),
		mcplib.WithString("requester_id",
			mcplib.Description("Who is asking; defaults to \"mcp\""),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAskQuestion}
}

func (s *Server) matchQuestionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("match_question",
		mcplib.WithDescription("Score a question against the knowledge base without answering it"),
		mcplib.WithString("question",
			mcplib.Required(),
			mcplib.Description("The question to score"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleMatchQuestion}
}

func (s *Server) listPendingApprovalsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_pending_approvals",
		mcplib.WithDescription("List generated answers awaiting a maintainer decision, oldest first"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListPending}
}

func (s *Server) resolveApprovalTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("resolve_approval",
		mcplib.WithDescription("Approve, reject or edit a pending answer"),
		mcplib.WithString("answer_id",
			mcplib.Required(),
			mcplib.Description("The pending answer ID"),
		),
		mcplib.WithString("decision",
			mcplib.Required(),
			mcplib.Enum(string(approval.DecisionApprove), string(approval.DecisionReject), string(approval.DecisionEdit)),
		),
		mcplib.WithString("decided_by",
			mcplib.Required(),
			mcplib.Description("The maintainer making the decision"),
		),
		mcplib.WithString("edited_text",
			mcplib.Description("Replacement answer text; required for edit"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleResolveApproval}
}

func (s *Server) handleAskQuestion(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Answers == nil {
		return mcplib.NewToolResultError("answer service not configured"), nil
	}
	args := req.GetArguments()
	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return mcplib.NewToolResultError("question is required"), nil
	}
	requester, _ := args["requester_id"].(string)
	if requester == "" {
		requester = "mcp"
	}

	res, err := s.deps.Answers.Ask(ctx, question, answer.RequestContext{
		Source:      answer.SourceAPI,
		OriginRef:   "mcp",
		RequesterID: requester,
	})
	if res == nil && err == nil {
		return mcplib.NewToolResultText("No knowledge base entry matches this question."), nil
	}
	if res == nil {
		return mcplib.NewToolResultErrorFromErr("failed to answer question", err), nil
	}
	if err != nil {
		// Answer generated; part of the workflow failed.
		return toolResultJSON(map[string]any{"result": res, "error": err.Error()})
	}
	return toolResultJSON(res)
}

func (s *Server) handleMatchQuestion(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Answers == nil {
		return mcplib.NewToolResultError("answer service not configured"), nil
	}
	question, _ := req.GetArguments()["question"].(string)
	if strings.TrimSpace(question) == "" {
		return mcplib.NewToolResultError("question is required"), nil
	}
	res, err := s.deps.Answers.Match(ctx, question)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to match question", err), nil
	}
	return toolResultJSON(res)
}

func (s *Server) handleListPending(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Approvals == nil {
		return mcplib.NewToolResultError("approval service not configured"), nil
	}
	return toolResultJSON(s.deps.Approvals.ListPending())
}

func (s *Server) handleResolveApproval(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Approvals == nil {
		return mcplib.NewToolResultError("approval service not configured"), nil
	}
	args := req.GetArguments()
	ev := approval.DecisionEvent{}
	ev.AnswerID, _ = args["answer_id"].(string)
	decision, _ := args["decision"].(string)
	ev.Decision = approval.Decision(decision)
	ev.DecidedBy, _ = args["decided_by"].(string)
	ev.EditedText, _ = args["edited_text"].(string)

	rec, err := s.deps.Approvals.Resolve(ctx, ev)
	if err != nil && rec.AnswerID == "" {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to resolve %s", ev.AnswerID), err,
		), nil
	}
	if err != nil {
		return toolResultJSON(map[string]any{"record": rec, "error": err.Error()})
	}
	return toolResultJSON(rec)
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
