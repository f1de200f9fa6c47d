package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/spacemate-auth/internal/api/response"
	"github.com/isdelr/spacemate-auth/internal/models"
	"github.com/rs/zerolog/log"
)

// Gate rejection reasons. They are logged and mapped to client messages,
// but every rejection is a 401.
const (
	ReasonMissingHeader = "missing_header"
	ReasonBadFormat     = "bad_format"
	ReasonUserMissing   = "user_missing"
)

// AccessVerifier verifies access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*Claims, error)
}

// UserLookup loads the user a token refers to.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Identity is the authenticated caller. Only Gate creates one.
type Identity struct {
	User   models.User
	Claims Claims
}

// UserID returns the authenticated user's id.
func (i Identity) UserID() string { return i.User.ID }

// IdentityHandler is an HTTP handler that requires an authenticated caller.
type IdentityHandler func(w http.ResponseWriter, r *http.Request, id Identity)

// AuthError describes why the gate rejected a request.
type AuthError struct {
	Reason  string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// Gate authenticates requests carrying an "Authorization: Bearer <token>" header.
type Gate struct {
	tokens AccessVerifier
	users  UserLookup
}

// NewGate creates a new Gate.
func NewGate(tokens AccessVerifier, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate runs the gate over r. It returns an *AuthError for every
// rejection and a plain error when the user store fails.
func (g *Gate) Authenticate(r *http.Request) (Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Identity{}, &AuthError{Reason: ReasonMissingHeader, Message: "Authorization header missing"}
	}

	tokenStr, ok := bearerToken(authHeader)
	if !ok {
		return Identity{}, &AuthError{Reason: ReasonBadFormat, Message: "Invalid authorization header format. Use: Bearer <token>"}
	}

	claims, err := g.tokens.VerifyAccess(tokenStr)
	if err != nil {
		msg := "Invalid access token"
		if errors.Is(err, ErrExpired) {
			msg = "Access token has expired"
		}
		return Identity{}, &AuthError{Reason: Reason(err), Message: msg, Err: err}
	}

	user, err := g.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return Identity{}, &AuthError{Reason: ReasonUserMissing, Message: "User no longer exists", Err: err}
		}
		return Identity{}, err
	}

	return Identity{User: *user, Claims: *claims}, nil
}

// Protect wraps next so it only runs for authenticated requests.
func (g *Gate) Protect(next IdentityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		id, err := g.Authenticate(r)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				log.Warn().Err(authErr.Err).Str("reason", authErr.Reason).Str("path", r.URL.Path).
					Str("request_id", requestID).Msg("Authentication failed")
				response.Error(w, http.StatusUnauthorized, authErr.Message)
				return
			}
			log.Error().Err(err).Str("request_id", requestID).Msg("Failed to load user for token")
			response.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		log.Debug().Str("user_id", id.UserID()).Str("request_id", requestID).Msg("Authenticated user")
		next(w, r, id)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
