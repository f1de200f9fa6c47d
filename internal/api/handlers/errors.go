package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/spacemate-auth/internal/api/response"
	"github.com/isdelr/spacemate-auth/internal/models"
	"github.com/isdelr/spacemate-auth/internal/services"
	"github.com/rs/zerolog/log"
)

const internalErrorMessage = "Internal server error"

// writeServiceError translates a domain error into the response envelope.
// Anything it does not recognise is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, models.ErrDuplicateCredential):
		response.Error(w, http.StatusConflict, "User already exists with this email")
	case errors.Is(err, models.ErrInvalidUser):
		response.Error(w, http.StatusBadRequest, "Validation failed", invalidUserDetail(err))
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrRefreshTokenRequired):
		response.Error(w, http.StatusBadRequest, "Refresh token required")
	case errors.Is(err, services.ErrInvalidRefreshToken):
		response.Error(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, models.ErrUserNotFound):
		response.Error(w, http.StatusUnauthorized, "User no longer exists")
	default:
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(action)
		response.Error(w, http.StatusInternalServerError, internalErrorMessage)
	}
}

// invalidUserDetail strips the sentinel prefix off a store validation error.
func invalidUserDetail(err error) string {
	msg := err.Error()
	if detail, found := strings.CutPrefix(msg, models.ErrInvalidUser.Error()+": "); found {
		return detail
	}
	return msg
}
