package litellm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Strob0t/answerdesk/internal/port/generator"
)

const systemPrompt = `You answer questions from a project's community using the project's curated FAQ.
Rewrite the draft answer so it addresses the asker's exact question.
Keep every command, path and link from the curated answer unchanged.
Do not add facts that are not in the curated answer. Keep the greeting.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generator implements generator.Generator via /chat/completions.
type Generator struct {
	client    *Client
	model     string
	maxTokens int
}

// NewGenerator creates a Generator for model.
func NewGenerator(client *Client, model string, maxTokens int) *Generator {
	return &Generator{client: client, model: model, maxTokens: maxTokens}
}

// Generate implements generator.Generator.
func (g *Generator) Generate(ctx context.Context, req generator.Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(&req)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	data, err := g.client.doRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func userPrompt(req *generator.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question from @%s (%s):\n%s\n\n", req.Context.RequesterID, req.Context.Source, req.Question)
	fmt.Fprintf(&b, "Curated FAQ entry %q:\nQ: %s\nA: %s\n\n", req.Entry.ID, req.Entry.QuestionText, req.Entry.AnswerText)
	fmt.Fprintf(&b, "Draft answer:\n%s", req.Draft)
	return b.String()
}
