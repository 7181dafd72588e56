package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/service"
)

// AuthHandler exposes account and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account
//   - HandleLogin    → check credentials, issue a bearer token
//   - HandleLogout   → revoke the presented token
//   - HandleMe       → return the authenticated user's profile
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /register
// REQUEST BODY: {"username": "...", "email": "...", "password": "...", "gender": "..."}
// RESPONSE: 201 with the user (never the password hash)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Gender:   req.Gender,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin checks credentials and returns {"token": ..., "user": ...}.
//
// HTTP: POST /login
//
// CREDENTIALS:
// HTTP Basic auth is read first. Clients that cannot send Basic auth may
// post {"username": "...", "password": "..."} instead.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		var req loginRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
		}
		username, password = req.Username, req.Password
	}

	result, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleLogout revokes the bearer token so it can never be used again.
//
// HTTP: POST /logout
//
// This route is NOT behind RequireAuth: an expired token can still be
// revoked, as long as its signature verifies.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context(), auth.BearerToken(r)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /me
// Auth: Required (RequireAuth middleware puts the user in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route.
		auth.WriteUnauthorized(w, nil)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
