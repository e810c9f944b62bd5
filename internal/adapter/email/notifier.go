// Package email provides an SMTP notifier. Approval requests carry signed
// approve and reject links back to the HTTP API.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/port/notifier"
)

const providerName = "email"

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier sends email notifications via SMTP.
type Notifier struct {
	cfg       SMTPConfig
	publicURL string
	links     *LinkSigner
	send      sendFunc
}

// NewNotifier creates an email notifier. publicURL and links may be empty;
// approval mails then carry no decision links.
func NewNotifier(cfg SMTPConfig, publicURL string, links *LinkSigner) *Notifier {
	return &Notifier{
		cfg:       cfg,
		publicURL: strings.TrimRight(publicURL, "/"),
		links:     links,
		send:      smtp.SendMail,
	}
}

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		port := 587
		if p := config["port"]; p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("email: invalid port %q: %w", p, err)
			}
			port = n
		}
		var links *LinkSigner
		if s := config["link_secret"]; s != "" {
			links = NewLinkSigner(s)
		}
		return NewNotifier(SMTPConfig{
			Host:     config["host"],
			Port:     port,
			From:     config["from"],
			Password: config["password"],
		}, config["public_url"], links), nil
	})
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{
		RichFormatting: true,
		Interactive:    n.links != nil && n.publicURL != "",
	}
}

var body = template.Must(template.New("mail").Parse(`<h2>{{.Title}}</h2>
<p><strong>Question</strong> from {{.RequesterID}} ({{.Source}} {{.OriginRef}}):</p>
<blockquote>{{.Question}}</blockquote>
<p><strong>Answer</strong></p>
<pre style="white-space:pre-wrap">{{.Text}}</pre>
{{if .ApproveURL}}<p>
  <a href="{{.ApproveURL}}" style="background:green;color:white;padding:8px 16px;text-decoration:none;border-radius:4px;">Approve</a>
  &nbsp;
  <a href="{{.RejectURL}}" style="background:red;color:white;padding:8px 16px;text-decoration:none;border-radius:4px;">Reject</a>
</p>{{end}}
<p style="color:#888">answer {{.AnswerID}}</p>
`))

type mailData struct {
	Title, Question, Text, AnswerID string
	RequesterID, Source, OriginRef  string
	ApproveURL, RejectURL           template.URL
}

// Send delivers note to the address in its target.
func (n *Notifier) Send(ctx context.Context, note notifier.Notification) error {
	if n.cfg.Host == "" || n.cfg.From == "" {
		return notifier.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	to := note.Target.Address

	data := mailData{
		Title:       note.Title(),
		Question:    note.Question,
		Text:        note.Text,
		AnswerID:    note.AnswerID,
		RequesterID: note.Context.RequesterID,
		Source:      string(note.Context.Source),
		OriginRef:   note.Context.OriginRef,
	}
	if note.Kind == notifier.KindApprovalRequest && n.links != nil && n.publicURL != "" {
		data.ApproveURL = template.URL(n.links.URL(n.publicURL, note.AnswerID, approval.DecisionApprove, to)) //nolint:gosec // built from signed, escaped parts
		data.RejectURL = template.URL(n.links.URL(n.publicURL, note.AnswerID, approval.DecisionReject, to))   //nolint:gosec // built from signed, escaped parts
	}

	var html bytes.Buffer
	if err := body.Execute(&html, data); err != nil {
		return fmt.Errorf("email template: %w", err)
	}

	subject := fmt.Sprintf("[answerdesk] %s: %s", note.Title(), oneLine(note.Question, 80))
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, to, subject, html.String())

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		return s[:limit-3] + "..."
	}
	return s
}
