// Package auth turns a bearer token into a verified caller identity.
//
// AUTHENTICATION FLOW:
//  1. The identity provider issues an HS256-signed JWT to the member
//  2. The client sends it as "Authorization: Bearer <jwt>"
//  3. RequireAuth validates it and stores the Identity in the request context
//  4. Handlers read the caller with IdentityFromContext / ViewerFromContext
//
// CLAIMS:
//
//	{"preferred_username": "alice", "groups": ["member", "eboard"], "iss": "...", "exp": ...}
//
// A caller is an admin when "groups" contains the configured admin group.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is a verified caller.
type Identity struct {
	Username string
	Groups   []string
	Admin    bool
}

// TokenService validates (and, for tooling and tests, issues) identity tokens.
type TokenService struct {
	secret     []byte
	issuer     string
	adminGroup string
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production.
func NewTokenService(secret, issuer, adminGroup string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, adminGroup: adminGroup}, nil
}

type claims struct {
	PreferredUsername string   `json:"preferred_username"`
	Groups            []string `json:"groups"`
	jwt.RegisteredClaims
}

// Generate signs a token for username valid for ttl.
func (s *TokenService) Generate(username string, groups []string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		PreferredUsername: username,
		Groups:            groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the identity it carries.
//
// Checked: HS256 signature (other algorithms, including "none", are
// rejected), expiry present and in the future, issuer match, non-empty
// preferred_username.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.New("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}
	if c.PreferredUsername == "" {
		return Identity{}, errors.New("auth: token has no preferred_username")
	}

	return Identity{
		Username: c.PreferredUsername,
		Groups:   c.Groups,
		Admin:    s.adminGroup != "" && slices.Contains(c.Groups, s.adminGroup),
	}, nil
}
