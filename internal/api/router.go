package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/spacemate-auth/internal/api/handlers"
	"github.com/isdelr/spacemate-auth/internal/api/response"
	"github.com/isdelr/spacemate-auth/internal/auth"
	"github.com/isdelr/spacemate-auth/internal/services"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	APIPrefix   string
	Environment string
	Version     string
	Auth        services.AuthServiceProvider
	Users       services.UserServiceProvider
	Gate        *auth.Gate
	// Probes is optional.
	Probes handlers.ProbeSource
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Recoverer)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Auth)
	healthHandler := handlers.NewHealthHandler(deps.Users, deps.Probes, deps.Environment, deps.Version)

	prefix := strings.TrimRight(deps.APIPrefix, "/")
	routes := availableRoutes(prefix)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.ErrorWithData(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path),
			map[string][]string{"availableRoutes": routes})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
	})

	r.Get("/health", healthHandler.Check)

	mount := func(r chi.Router) {
		if prefix != "" {
			r.Get("/health", healthHandler.Check)
		}

		// Public routes
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.Refresh)

		// Protected routes
		r.Get("/profile", deps.Gate.Protect(authHandler.Profile))
		r.Post("/logout", deps.Gate.Protect(authHandler.Logout))
	}
	if prefix == "" {
		r.Group(mount)
	} else {
		r.Route(prefix, mount)
	}

	return r
}

// Recoverer turns a handler panic into a logged 500 envelope.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from handler panic")
				response.Error(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func availableRoutes(prefix string) []string {
	return []string{
		"GET /health",
		"POST " + prefix + "/register",
		"POST " + prefix + "/login",
		"GET " + prefix + "/profile",
		"POST " + prefix + "/refresh-token",
		"POST " + prefix + "/logout",
	}
}
