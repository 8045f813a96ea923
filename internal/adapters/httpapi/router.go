package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesrides/rides-api/internal/app/auth"
	"github.com/wesrides/rides-api/internal/app/interests"
	"github.com/wesrides/rides-api/internal/app/rides"
	"github.com/wesrides/rides-api/internal/app/users"
	"github.com/wesrides/rides-api/internal/platform/auth/token"
)

// Server is the HTTP adapter. It decodes requests, delegates to the
// application services, and encodes responses.
type Server struct {
	Auth      *auth.Service
	Users     *users.Service
	Rides     *rides.Service
	Interests *interests.Service
}

func NewServer(authSvc *auth.Service, usersSvc *users.Service, ridesSvc *rides.Service, interestsSvc *interests.Service) *Server {
	return &Server{
		Auth:      authSvc,
		Users:     usersSvc,
		Rides:     ridesSvc,
		Interests: interestsSvc,
	}
}

// RouterConfig carries the cross-cutting pieces the router wires in front of
// the handlers.
type RouterConfig struct {
	Tokens            *token.Issuer
	Logger            *slog.Logger
	AuthRatePerMinute int
	AuthRateBurst     int
}

func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(NewObservabilityMiddleware(cfg.Logger))

	// Unauthenticated infra endpoints.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Login and registration are rate limited per client IP.
	r.Group(func(r chi.Router) {
		r.Use(NewRateLimitMiddleware(cfg.AuthRatePerMinute, cfg.AuthRateBurst))
		r.Post("/authentication/register", s.handleRegister)
		r.Post("/authentication/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(NewAuthMiddleware(cfg.Tokens))

		r.Get("/user", s.handleGetMyProfile)
		r.Put("/user", s.handleUpdateMyProfile)
		r.Put("/user/password-update", s.handleChangePassword)

		r.Route("/rides", func(r chi.Router) {
			r.Get("/", s.handleListOpenRides)
			r.Post("/", s.handleCreateRide)
			r.Get("/user", s.handleListMyRides)
			r.Get("/{rideID}", s.handleGetRide)
			r.Put("/{rideID}", s.handleUpdateRide)
			r.Delete("/{rideID}", s.handleDeleteRide)
		})

		r.Route("/ride-interests", func(r chi.Router) {
			r.Get("/", s.handleListInterests)
			r.Post("/", s.handleCreateInterest)
			r.Get("/{interestID}", s.handleGetInterest)
			r.Put("/{interestID}", s.handleDecideInterest)
			r.Delete("/{interestID}", s.handleDeleteInterest)
		})
	})

	return r
}
