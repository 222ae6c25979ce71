// Package mattermost posts on-call alerts to Mattermost incoming webhooks.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bissquit/incident-portal/internal/notifications"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "Incident Portal"
	maxErrorBody    = 512
)

// Config holds Mattermost sender configuration.
// The webhook URL is the notification target, so there is no Enabled flag.
type Config struct {
	Username string
	IconURL  string
	Timeout  time.Duration
}

// Sender implements notifications.Sender via Incoming Webhooks.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Mattermost sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelTypeMattermost
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// Send posts the notification to the webhook URL in notification.To.
// A non-empty subject becomes a markdown heading.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL := notification.To
	if webhookURL == "" {
		return &PermanentError{Message: "webhook URL is empty"}
	}

	text := notification.Body
	if notification.Subject != "" {
		text = fmt.Sprintf("### %s\n\n%s", notification.Subject, notification.Body)
	}

	body, err := json.Marshal(webhookPayload{
		Text:     text,
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RetryableError{Message: fmt.Sprintf("post to %s failed", webhookHost(webhookURL))}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, webhookURL)
}

func (s *Sender) handleResponse(resp *http.Response, webhookURL string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := string(bytes.TrimSpace(body))

	switch {
	case resp.StatusCode == http.StatusOK:
		slog.Debug("mattermost alert posted", "webhook_host", webhookHost(webhookURL))
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:       resp.StatusCode,
			Message:    "rate limited",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &PermanentError{Code: resp.StatusCode, Message: "invalid or expired webhook"}

	case resp.StatusCode == http.StatusNotFound:
		return &PermanentError{Code: resp.StatusCode, Message: "webhook not found"}

	case resp.StatusCode >= 500:
		return &RetryableError{Code: resp.StatusCode, Message: "server error: " + detail}

	default:
		return &PermanentError{Code: resp.StatusCode, Message: "rejected: " + detail}
	}
}

// webhookHost returns only the host of a webhook URL; the path holds the secret hook id.
func webhookHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid-url"
	}
	return u.Host
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }

// RetryAfterDuration returns the delay from a Retry-After header, or zero.
func (e *RetryableError) RetryAfterDuration() time.Duration { return e.RetryAfter }
