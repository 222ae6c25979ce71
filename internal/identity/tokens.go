package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// Purpose separates one-time login links from portal session tokens.
type Purpose string

// Token purposes.
const (
	PurposeMagicLink Purpose = "magic_link"
	PurposePortal    Purpose = "portal"
)

const tokenIssuer = "incident-portal"

// Claims are the JWT claims of both link and portal tokens.
type Claims struct {
	Email   string   `json:"email"`
	Purpose Purpose  `json:"purpose"`
	Brands  []string `json:"brands"`
	Markets []string `json:"markets"`
	jwt.RegisteredClaims
}

// Scope returns the access scope carried by the token.
func (c *Claims) Scope() domain.AccessScope {
	return domain.AccessScope{Brands: c.Brands, Markets: c.Markets}
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for email with the given purpose, scope and lifetime.
func (i *TokenIssuer) Issue(email string, purpose Purpose, scope domain.AccessScope, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(ttl)

	claims := &Claims{
		Email:   email,
		Purpose: purpose,
		Brands:  scope.Brands,
		Markets: scope.Markets,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies the token signature and lifetime and checks its purpose.
func (i *TokenIssuer) Parse(raw string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	if claims.Email == "" || len(claims.Brands) == 0 {
		return nil, fmt.Errorf("%w: missing email or scope", ErrInvalidToken)
	}
	return claims, nil
}
