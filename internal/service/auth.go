// AuthService is the session/token manager. It sits between the HTTP
// handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)          ↘ TokenBlacklist (DB)
//
// KEY RESPONSIBILITIES:
//   - Register users and check passwords against their bcrypt hashes
//   - Issue session tokens and revoke them at logout
//   - Resolve a bearer token to the acting user on every request

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - blacklist  repository.TokenBlacklist  → revoked token ids
//   - tokens     *auth.TokenService         → issue/verify JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	blacklist repository.TokenBlacklist
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// compile-time check that AuthService can back the bearer middleware
var _ auth.IdentityResolver = (*AuthService)(nil)

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	blacklist repository.TokenBlacklist,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		blacklist: blacklist,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Gender   string
}

// Register creates a new account.
// A taken username or email returns apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if username == "" {
		return nil, apperror.MissingField("username")
	}
	if email == "" {
		return nil, apperror.MissingField("email")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "invalid email format")
	}
	if in.Password == "" {
		return nil, apperror.MissingField("password")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Gender:       strings.TrimSpace(in.Gender),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: registering %s: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks the credentials and issues a session token.
//
// An unknown username and a wrong password produce the same error, so the
// response does not reveal which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized(apperror.ErrInvalidCredentials, "invalid username or password")

	if username == "" || password == "" {
		return nil, invalid
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, apperror.ErrInvalidCredentials) {
			s.logger.Info("login failed", slog.String("username", username))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", username, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// Revoke blacklists the token's jti. The signature must verify but the token
// may already be expired. Revoking twice is not an error.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseIgnoringExpiry(token)
	if err != nil {
		return err
	}

	if err := s.blacklist.RevokeToken(ctx, claims.JTI); err != nil {
		return fmt.Errorf("service/auth: revoking token: %w", err)
	}

	s.logger.Info("token revoked",
		slog.String("userID", claims.UserID),
		slog.String("jti", claims.JTI),
	)
	return nil
}

// Resolve turns a bearer token into the acting user.
//
// CHECK ORDER:
//  1. signature, issuer and expiry (no storage access for garbage tokens)
//  2. the user still exists
//  3. the jti is not on the blacklist
//
// Every failure is an apperror authentication kind; storage failures are
// returned wrapped so the middleware can answer 500 instead of 401.
func (s *AuthService) Resolve(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.ErrTokenInvalid, "token is invalid")
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", claims.UserID, err)
	}

	revoked, err := s.blacklist.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking blacklist: %w", err)
	}
	if revoked {
		return nil, apperror.Unauthorized(apperror.ErrTokenRevoked, "token has been revoked")
	}

	return user, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.MissingField("id")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
