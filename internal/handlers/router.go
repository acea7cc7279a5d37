package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appMiddleware "github.com/quickapply/backend/internal/middleware"
)

// Router bundles what NewRouter mounts.
type Router struct {
	Auth           *AuthHandler
	Profile        *ProfileHandler
	Apply          *ApplyHandler
	Status         *StatusHandler
	Verifier       appMiddleware.Verifier
	Revocations    appMiddleware.RevocationChecker
	AllowedOrigins []string
}

// DefaultOrigins are allowed in addition to the configured ones: the LinkedIn pages the
// extension runs on and any local dev server.
var DefaultOrigins = []string{
	"https://www.linkedin.com",
	"https://linkedin.com",
	"http://localhost:*",
	"https://localhost:*",
}

func NewRouter(rt Router) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   append(append([]string{}, rt.AllowedOrigins...), DefaultOrigins...),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", rt.Status.Health)
	r.Get("/oauth/callback", rt.Auth.OAuthCallback)

	requireAuth := appMiddleware.JWTAuth(rt.Verifier, rt.Revocations)
	optionalAuth := appMiddleware.OptionalJWTAuth(rt.Verifier, rt.Revocations)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", rt.Status.Status)
		r.Get("/auth/google", rt.Auth.GoogleLogin)
		r.With(optionalAuth).Post("/profile/save", rt.Profile.SaveProfile)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", rt.Auth.Me)
			r.Post("/auth/logout", rt.Auth.Logout)

			r.Put("/profile/update", rt.Profile.UpdateProfile)
			r.Get("/profile/get", rt.Profile.GetProfile)

			r.Route("/apply", func(r chi.Router) {
				r.Post("/", rt.Apply.Apply)
				r.Post("/draft", rt.Apply.Draft)
				r.Post("/send", rt.Apply.Send)
				r.Post("/rewrite", rt.Apply.Rewrite)
			})
		})
	})

	return r
}
