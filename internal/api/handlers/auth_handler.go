package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/spacemate-auth/internal/api/response"
	"github.com/isdelr/spacemate-auth/internal/auth"
	"github.com/isdelr/spacemate-auth/internal/models"
	"github.com/isdelr/spacemate-auth/internal/services"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// AuthHandler handles HTTP requests for registration, login and sessions.
type AuthHandler struct {
	service services.AuthServiceProvider
	now     func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.AuthServiceProvider) *AuthHandler {
	return &AuthHandler{service: service, now: time.Now}
}

// AuthData is the payload of register and login responses.
type AuthData struct {
	User   models.UserView `json:"user"`
	Tokens auth.TokenPair  `json:"tokens"`
}

// TokensData is the payload of a refresh response.
type TokensData struct {
	Tokens auth.TokenPair `json:"tokens"`
}

// UserData is the payload of a profile response.
type UserData struct {
	User models.UserView `json:"user"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := payload.Validate(h.now()); err != nil {
		writeValidationError(w, r, err)
		return
	}

	fields, err := payload.NewUser()
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Validation failed", "dateOfBirth: "+err.Error())
		return
	}

	result, err := h.service.Register(r.Context(), fields)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateCredential) {
			log.Warn().Str("email", models.NormalizeEmail(payload.Email)).Msg("Registration rejected: email already registered")
		}
		writeServiceError(w, r, err, "Failed to register user")
		return
	}

	response.Success(w, http.StatusCreated, "User registered successfully", AuthData{
		User:   result.User.View(),
		Tokens: result.Tokens,
	})
}

// Login handles user authentication and token issuance.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := payload.Validate(); err != nil {
		writeValidationError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeServiceError(w, r, err, "Failed to log in user")
		return
	}

	response.Success(w, http.StatusOK, "Login successful", AuthData{
		User:   result.User.View(),
		Tokens: result.Tokens,
	})
}

// Refresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := decodeJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokens, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err, "Failed to refresh tokens")
		return
	}

	response.Success(w, http.StatusOK, "Tokens refreshed successfully", TokensData{Tokens: tokens})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	response.Success(w, http.StatusOK, "Profile retrieved successfully", UserData{User: id.User.View()})
}

// Logout acknowledges a logout. Tokens are not revoked; the client discards them.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	log.Info().Str("user_id", id.UserID()).Str("request_id", middleware.GetReqID(r.Context())).Msg("User logged out")
	response.Success(w, http.StatusOK, "Logout successful", map[string]string{
		"message": "Please remove tokens from client storage",
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	msgs, ok := fieldErrors(err)
	if !ok {
		writeServiceError(w, r, err, "Failed to validate request")
		return
	}
	response.Error(w, http.StatusBadRequest, "Validation failed", msgs...)
}
