// Package telegram provides notification sending via the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/incident-portal/internal/notifications"
	"golang.org/x/time/rate"
)

const (
	defaultAPIURL     = "https://api.telegram.org/bot%s/sendMessage"
	defaultTimeout    = 10 * time.Second
	defaultRateLimit  = 1.0 // messages per second; Telegram allows ~1/s per chat
	defaultRetryAfter = time.Second
)

// Config holds telegram sender configuration.
type Config struct {
	Enabled   bool
	BotToken  string
	RateLimit float64
	Timeout   time.Duration
}

// Sender implements telegram notification sender.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// NewSender creates a new telegram sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required when enabled")
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("telegram sender configured",
		"enabled", config.Enabled,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		apiURL:     defaultAPIURL,
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelTypeTelegram
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send sends a message to the chat in notification.To. The body is sent as HTML.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("telegram sender disabled, skipping", "to", notification.To)
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                notification.To,
		Text:                  notification.Body,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf(s.apiURL, s.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// the URL embeds the bot token; never surface it
		var urlErr interface{ Unwrap() error }
		if errors.As(err, &urlErr) {
			err = urlErr.Unwrap()
		}
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		if resp.StatusCode >= 500 {
			return &RetryableError{Code: resp.StatusCode, Message: "invalid response body"}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	return s.handleResponse(resp.StatusCode, tgResp, notification.To)
}

func (s *Sender) handleResponse(status int, resp telegramResponse, chatID string) error {
	if status == http.StatusOK && resp.OK {
		slog.Debug("telegram message sent", "chat_id", chatID)
		return nil
	}

	code := resp.ErrorCode
	if code == 0 {
		code = status
	}

	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: resp.Description}

	case code == http.StatusUnauthorized:
		return &PermanentError{Code: code, Message: "invalid bot token"}

	case code == http.StatusBadRequest, code == http.StatusForbidden, code == http.StatusNotFound:
		return &PermanentError{Code: code, Message: resp.Description}

	case code >= 500:
		return &RetryableError{Code: code, Message: resp.Description}

	default:
		return &PermanentError{Code: code, Message: resp.Description}
	}
}

// RateLimitError is returned when Telegram asks the client to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable returns true: the request can be repeated after RetryAfter.
func (e *RateLimitError) IsRetryable() bool { return true }

// RetryAfterDuration returns the delay requested by Telegram.
func (e *RateLimitError) RetryAfterDuration() time.Duration { return e.RetryAfter }

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("telegram error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }

// IsRetryable reports whether err is a temporary telegram error.
func IsRetryable(err error) bool {
	return notifications.IsRetryable(err)
}

// GetRetryAfter returns the delay requested by a rate limit error, or zero.
func GetRetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
