// Package github posts answers as issue comments and parses issue webhooks
// into questions.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/answerdesk/internal/resilience"
)

// DefaultAPIURL is the public GitHub REST API.
const DefaultAPIURL = "https://api.github.com"

// Client is a minimal GitHub REST client.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a client. An empty apiURL selects DefaultAPIURL.
func NewClient(apiURL, token string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) { c.breaker = b }

// IssueRef addresses one issue or pull request.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParseIssueRef parses "owner/repo#42".
func ParseIssueRef(ref string) (IssueRef, error) {
	repo, num, ok := strings.Cut(ref, "#")
	owner, name, ok2 := strings.Cut(repo, "/")
	n, err := strconv.Atoi(num)
	if !ok || !ok2 || owner == "" || name == "" || strings.Contains(name, "/") || err != nil || n <= 0 {
		return IssueRef{}, fmt.Errorf("invalid issue ref %q: expected owner/repo#number", ref)
	}
	return IssueRef{Owner: owner, Repo: name, Number: n}, nil
}

// CreateComment posts body on the issue and returns the comment id.
func (c *Client) CreateComment(ctx context.Context, ref IssueRef, body string) (int64, error) {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return 0, fmt.Errorf("github marshal: %w", err)
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", ref.Owner, ref.Repo, ref.Number)

	var id int64
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("github request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req) //nolint:gosec // API URL from trusted config
		if err != nil {
			return fmt.Errorf("github send: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("github API %d: %s", resp.StatusCode, string(data))
		}
		var out struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("github decode: %w", err)
		}
		id = out.ID
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.ExecuteContext(ctx, call)
	} else {
		err = call(ctx)
	}
	return id, err
}
