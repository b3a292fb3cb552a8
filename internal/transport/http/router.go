package http

import (
	"context"
	"net/http"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/config"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/transport/http/handler"
	appmiddleware "github.com/Modett/modett-ecommerce-platform-sub000/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// lifetime of the per-IP limiter sweeper.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Auth)

	// 5 requests/second, burst of 10, on public endpoints that take credentials or secrets.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.Auth)
	verifyH := handler.NewVerificationHandler(deps.Verification, deps.Auth)

	r.Get("/health", healthH.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/guest", authH.Guest)
			r.Post("/auth/google", authH.Google)
			r.Post("/verification/email/verify", verifyH.VerifyEmail)
			r.Post("/password-reset/request", verifyH.RequestReset)
			r.Post("/password-reset/check", verifyH.CheckReset)
			r.Post("/password-reset/complete", verifyH.CompleteReset)
		})
		r.Post("/auth/refresh", authH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/auth/me", authH.Me)
			r.Post("/auth/logout", authH.Logout)
			r.Post("/auth/change-password", authH.ChangePassword)
			r.Post("/verification/email/send", verifyH.SendEmail)
			r.Post("/verification/phone/send", verifyH.SendPhone)
			r.With(sensitiveRL.Limit).Post("/verification/phone/verify", verifyH.VerifyPhone)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Put("/users/{id}/status", authH.SetStatus)
			})
		})
	})

	return r
}
