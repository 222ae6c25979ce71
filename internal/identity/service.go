// Package identity implements the magic-link login and the access scope of each request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
)

// ErrLinkDelivery is returned when the login link could not be handed off.
var ErrLinkDelivery = errors.New("login link delivery failed")

// Config configures login links and sessions.
type Config struct {
	LinkTTL    time.Duration
	SessionTTL time.Duration
	PortalURL  string
	ExposeLink bool
}

// Service issues login links and portal sessions.
type Service struct {
	tokens   *TokenIssuer
	resolver *ScopeResolver
	sender   LinkSender
	cfg      Config
}

// NewService creates a new identity service.
func NewService(tokens *TokenIssuer, resolver *ScopeResolver, sender LinkSender, cfg Config) *Service {
	return &Service{
		tokens:   tokens,
		resolver: resolver,
		sender:   sender,
		cfg:      cfg,
	}
}

// LinkResult describes a sent login link.
type LinkResult struct {
	Message string
	Link    string // set only when links are exposed
}

// RequestLink signs a login link for email and hands it to the link sender.
func (s *Service) RequestLink(ctx context.Context, email string) (*LinkResult, error) {
	email = normalizeEmail(email)
	scope := s.resolver.Resolve(email)

	token, _, err := s.tokens.Issue(email, PurposeMagicLink, scope, s.cfg.LinkTTL)
	if err != nil {
		return nil, err
	}
	link := s.loginURL(token)

	if err := s.sender.SendLink(ctx, email, link); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkDelivery, err)
	}

	result := &LinkResult{
		Message: fmt.Sprintf("We've sent a secure login link to %s. The link expires in %s.",
			email, humanDuration(s.cfg.LinkTTL)),
	}
	if s.cfg.ExposeLink {
		result.Link = link
	}
	return result, nil
}

// Session is an authenticated portal session.
type Session struct {
	Token     string             `json:"token"`
	Email     string             `json:"email"`
	Scope     domain.AccessScope `json:"scope"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// Verify exchanges a login-link token for a portal session token.
// The scope is resolved again so that access changes apply at login.
func (s *Service) Verify(ctx context.Context, linkToken string) (*Session, error) {
	claims, err := s.tokens.Parse(linkToken, PurposeMagicLink)
	if err != nil {
		return nil, err
	}

	scope := s.resolver.Resolve(claims.Email)
	token, expires, err := s.tokens.Issue(claims.Email, PurposePortal, scope, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("portal session started",
		"email", ctxlog.RedactEmail(claims.Email),
		"brands", len(scope.Brands),
	)

	return &Session{Token: token, Email: claims.Email, Scope: scope, ExpiresAt: expires}, nil
}

// Authenticate validates a portal bearer token and returns its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Parse(token, PurposePortal)
}

// DefaultScope returns the scope of anonymous visitors.
func (s *Service) DefaultScope() domain.AccessScope {
	return s.resolver.Default()
}

func (s *Service) loginURL(token string) string {
	return strings.TrimRight(s.cfg.PortalURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
