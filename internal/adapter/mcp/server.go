// Package mcp exposes the answer desk to AI agents over the Model Context
// Protocol: asking questions, reviewing pending approvals and reading the
// knowledge base.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/domain/match"
	"github.com/Strob0t/answerdesk/internal/port/knowledge"
	"github.com/Strob0t/answerdesk/internal/service"
)

// Asker answers and scores questions.
type Asker interface {
	Ask(ctx context.Context, question string, rc answer.RequestContext) (*service.AskResult, error)
	Match(ctx context.Context, question string) (match.Result, error)
}

// ApprovalDesk lists and resolves pending answers.
type ApprovalDesk interface {
	ListPending() []service.TrackedAnswer
	Resolve(ctx context.Context, ev approval.DecisionEvent) (approval.Record, error)
}

// ServerConfig holds the MCP server identity and credentials.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string // empty disables authentication
}

// ServerDeps are the services behind the tools. Nil dependencies make the
// corresponding tools report an error.
type ServerDeps struct {
	Answers   Asker
	Approvals ApprovalDesk
	Knowledge knowledge.Source
}

// Server wraps an mcp-go server with the answer desk tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates a Server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport guarded by API key auth,
// ready to be mounted on the main router.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}
