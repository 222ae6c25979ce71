package identity

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
	"github.com/bissquit/incident-portal/internal/upstream"
)

// LinkSender delivers a login link to a stakeholder.
type LinkSender interface {
	SendLink(ctx context.Context, email, link string) error
}

// LogLinkSender writes login links to the log instead of sending e-mail.
type LogLinkSender struct{}

// SendLink logs the redacted address; the link itself only at debug level.
func (LogLinkSender) SendLink(ctx context.Context, email, link string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("login link issued", "email", ctxlog.RedactEmail(email))
	logger.Debug("login link", "email", ctxlog.RedactEmail(email), "link", link)
	return nil
}

// MagicLinkRequester asks the incident-management backend to e-mail a login link.
type MagicLinkRequester interface {
	RequestMagicLink(ctx context.Context, email string) (*upstream.MagicLinkResponse, error)
}

// UpstreamLinkSender delegates delivery to the backend, which mails a link
// signed with the same shared secret.
type UpstreamLinkSender struct {
	client MagicLinkRequester
}

// NewUpstreamLinkSender creates a sender backed by the upstream client.
func NewUpstreamLinkSender(client MagicLinkRequester) *UpstreamLinkSender {
	return &UpstreamLinkSender{client: client}
}

// SendLink forwards the request; the locally built link is not sent.
func (s *UpstreamLinkSender) SendLink(ctx context.Context, email, _ string) error {
	resp, err := s.client.RequestMagicLink(ctx, email)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("backend refused login link: %s", resp.Message)
	}
	return nil
}
