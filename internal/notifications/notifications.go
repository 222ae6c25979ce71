// Package notifications delivers on-call alerts to chat channels.
package notifications

import (
	"context"
	"errors"
	"time"
)

// ChannelType identifies a delivery channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeMattermost ChannelType = "mattermost"
	ChannelTypeTelegram   ChannelType = "telegram"
)

// Notification is a rendered message addressed to one channel target.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() ChannelType
	Send(ctx context.Context, notification Notification) error
}

// Target is a configured destination: a webhook URL for Mattermost, a chat id for Telegram.
type Target struct {
	Channel ChannelType
	To      string
}

// Alert describes a reported incident the on-call team must look at.
type Alert struct {
	ReportID        string
	Title           string
	Description     string
	Severity        string
	Brand           string
	Market          string
	AffectedSystems []string
	CustomerImpact  string
	Reporter        string
	Urgent          bool
	ReportedAt      time.Time
}

// retryable is implemented by sender errors that classify themselves.
type retryable interface {
	IsRetryable() bool
}

// retryAfter is implemented by sender errors that carry a server-requested delay.
type retryAfter interface {
	RetryAfterDuration() time.Duration
}

// IsRetryable reports whether err, or an error it wraps, is temporary.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
