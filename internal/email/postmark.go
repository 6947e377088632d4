package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/999joaquin/CoreTrack/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Postmark client. baseURL is the public address of the
// app and prefixes every link placed in an email.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c != nil && c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendVerification emails the link that confirms an address.
func (c *Client) SendVerification(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/api/auth/verify?token=%s", c.baseURL, token)
	return c.sendLink(ctx, toEmail, "Confirm your CoreTrack email", "confirm your email address", link, "24 hours", "verify")
}

// SendPasswordReset emails a one-hour recovery link.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", c.baseURL, token)
	return c.sendLink(ctx, toEmail, "Reset your CoreTrack password", "choose a new password", link, "1 hour", "recovery")
}

// SendInvite emails an invitation to join with the given role.
func (c *Client) SendInvite(ctx context.Context, toEmail, token, inviter, role string) error {
	if inviter == "" {
		inviter = "A teammate"
	}
	subject := fmt.Sprintf("%s invited you to CoreTrack", inviter)
	link := fmt.Sprintf("%s/accept-invite?token=%s", c.baseURL, token)
	action := fmt.Sprintf("join as %s", role)
	return c.sendLink(ctx, toEmail, subject, action, link, "7 days", "invite")
}

func (c *Client) sendLink(ctx context.Context, toEmail, subject, action, link, expiry, tag string) error {
	text := fmt.Sprintf("Click the link below to %s:\n\n%s\n\nThis link expires in %s.", action, link, expiry)
	body := fmt.Sprintf(
		`<p>Click the link below to %s:</p><p><a href="%s">%s</a></p><p>This link expires in %s.</p>`,
		html.EscapeString(action), html.EscapeString(link), html.EscapeString(action), expiry,
	)
	return c.send(ctx, postmarkEmail{To: toEmail, Subject: subject, TextBody: text, HtmlBody: body, Tag: tag})
}

// SendNotification mirrors an inbox notification to email.
func (c *Client) SendNotification(ctx context.Context, toEmail string, n model.Notification) error {
	text := n.Message
	body := "<p>" + html.EscapeString(n.Message) + "</p>"
	if n.ActionURL != nil && *n.ActionURL != "" {
		label := "Open CoreTrack"
		if n.ActionText != nil && *n.ActionText != "" {
			label = *n.ActionText
		}
		link := c.absolute(*n.ActionURL)
		text += fmt.Sprintf("\n\n%s: %s", label, link)
		body += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, html.EscapeString(link), html.EscapeString(label))
	}
	return c.send(ctx, postmarkEmail{
		To:       toEmail,
		Subject:  n.Title,
		TextBody: text,
		HtmlBody: body,
		Tag:      "notification-" + n.Category,
	})
}

// SendDigest emails a summary of unread notifications.
func (c *Client) SendDigest(ctx context.Context, toEmail, frequency string, items []model.Notification) error {
	if len(items) == 0 {
		return nil
	}
	period := "week"
	if frequency == "daily" {
		period = "day"
	}
	subject := fmt.Sprintf("Your CoreTrack %s digest: %d unread", frequency, len(items))

	var text, body strings.Builder
	fmt.Fprintf(&text, "Here is what happened this %s:\n\n", period)
	fmt.Fprintf(&body, "<p>Here is what happened this %s:</p><ul>", period)
	for _, n := range items {
		fmt.Fprintf(&text, "- %s: %s\n", n.Title, n.Message)
		fmt.Fprintf(&body, "<li><strong>%s</strong>: %s</li>", html.EscapeString(n.Title), html.EscapeString(n.Message))
	}
	link := c.absolute("/notifications")
	fmt.Fprintf(&text, "\nSee all notifications: %s", link)
	fmt.Fprintf(&body, `</ul><p><a href="%s">See all notifications</a></p>`, html.EscapeString(link))

	return c.send(ctx, postmarkEmail{
		To:       toEmail,
		Subject:  subject,
		TextBody: text.String(),
		HtmlBody: body.String(),
		Tag:      "digest",
	})
}

func (c *Client) absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) send(ctx context.Context, msg postmarkEmail) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	msg.From = c.fromEmail

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
