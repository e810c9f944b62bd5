package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	knowledgeURI = "answerdesk://knowledge"
	pendingURI   = "answerdesk://approvals/pending"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			knowledgeURI,
			"Knowledge Base",
			mcplib.WithResourceDescription("Current snapshot of FAQ entries"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleKnowledgeResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			pendingURI,
			"Pending Approvals",
			mcplib.WithResourceDescription("Generated answers awaiting a maintainer decision"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePendingResource,
	)
}

func (s *Server) handleKnowledgeResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Knowledge == nil {
		return jsonContents(req.Params.URI, `{"error":"knowledge base not configured"}`), nil
	}
	entries, err := s.deps.Knowledge.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, string(data)), nil
}

func (s *Server) handlePendingResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Approvals == nil {
		return jsonContents(req.Params.URI, `{"error":"approval service not configured"}`), nil
	}
	data, err := json.Marshal(s.deps.Approvals.ListPending())
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, string(data)), nil
}

func jsonContents(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}
