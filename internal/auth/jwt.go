// Package auth provides session tokens, password hashing and the bearer-token
// middleware for the prompt API.
//
// SESSION FLOW OVERVIEW:
//  1. Client calls POST /login with HTTP Basic credentials
//  2. Server checks the bcrypt hash and issues a signed JWT (24h lifetime)
//  3. Client sends "Authorization: Bearer <jwt>" on every protected call
//  4. Middleware verifies the token, loads the user, checks the blacklist
//  5. POST /logout puts the token's jti on the blacklist
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"userID","jti":"...","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// WHY A jti?
// A JWT is valid until it expires; the signature alone cannot be "taken back".
// Each token gets a unique id (jti) so logout can blacklist exactly that token.
// Other sessions of the same user carry other jtis and keep working.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"github.com/sakif/promptcraft/internal/apperror"
)

const (
	issuer = "promptcraft"

	// DefaultTokenTTL is the lifetime of a session token.
	DefaultTokenTTL = 24 * time.Hour
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// A zero ttl means DefaultTokenTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Claims is what a verified token says about its holder.
type Claims struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// Issue creates and signs a new session token for userID.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Good for single-server deployments
func (s *TokenService) Issue(userID string) (string, error) {
	return s.IssueWithTTL(userID, s.ttl)
}

// IssueWithTTL creates a token with a custom lifetime.
// Used in tests to mint already-expired tokens.
func (s *TokenService) IssueWithTTL(userID string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        xid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Parse verifies a token's signature, issuer and expiry.
//
// Errors are apperror authentication kinds:
//   - ErrTokenMissing  → empty string
//   - ErrTokenExpired  → valid signature, exp in the past
//   - ErrTokenInvalid  → anything else (bad signature, garbage, no sub, no jti)
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. jwt.WithValidMethods prevents this.
func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, apperror.Unauthorized(apperror.ErrTokenMissing, "authentication token is missing")
	}

	c, err := s.parse(tokenStr,
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.Unauthorized(apperror.ErrTokenExpired, "token has expired")
		}
		return nil, apperror.Unauthorized(apperror.ErrTokenInvalid, "token is invalid")
	}

	if c.Subject == "" || c.ID == "" {
		return nil, apperror.Unauthorized(apperror.ErrTokenInvalid, "token is invalid")
	}

	return toClaims(c), nil
}

// ParseIgnoringExpiry verifies only the signature. Logout uses it so that an
// expired token can still be blacklisted.
//
// Errors: ErrTokenMissing (empty), ErrMalformedToken (cannot be decoded or
// verified), ErrMissingIdentifier (no jti).
func (s *TokenService) ParseIgnoringExpiry(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, apperror.Unauthorized(apperror.ErrTokenMissing, "authentication token is missing")
	}

	// WithoutClaimsValidation skips exp/iat/nbf/iss; the signature is still checked.
	c, err := s.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, apperror.Unauthorized(apperror.ErrMalformedToken, "token could not be decoded")
	}

	if c.ID == "" {
		return nil, apperror.Unauthorized(apperror.ErrMissingIdentifier, "token has no identifier")
	}

	return toClaims(c), nil
}

func (s *TokenService) parse(tokenStr string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))

	c := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return c, nil
}

func toClaims(c *jwt.RegisteredClaims) *Claims {
	out := &Claims{UserID: c.Subject, JTI: c.ID}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
