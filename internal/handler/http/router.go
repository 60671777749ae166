package http

import (
	"net/http"
	"net/netip"

	"shortlinks/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// RouterOptions holds the optional pieces of the HTTP surface
type RouterOptions struct {
	Logger     *logger.Logger
	Limiter    RateLimiter  // nil disables rate limiting
	Metrics    http.Handler // served at /metrics when set
	CORSOrigin string
	StaticDir  string
	// TrustedProxies may set the client address through forwarding headers
	TrustedProxies []netip.Prefix
	// Wrap is applied outermost, e.g. the Sentry handler
	Wrap func(http.Handler) http.Handler
}

// NewRouter wires every route to its handler
func NewRouter(h *Handler, auth *Authenticator, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(opts.Logger))
	if len(opts.TrustedProxies) > 0 {
		r.Use(TrustedProxyMiddleware(opts.TrustedProxies))
	}
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(opts.Logger))
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware(opts.CORSOrigin))

	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	if opts.StaticDir != "" && mountStatic(r, opts.StaticDir) {
		opts.Logger.Info("Serving web UI", "dir", opts.StaticDir)
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(RateLimitMiddleware(opts.Limiter, opts.Logger))
		}

		r.Route("/api/links", func(r chi.Router) {
			// Public routes come before the parameterized ones
			r.Get("/public", h.ListPublicLinks)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)

				r.Get("/", h.ListLinks)
				r.Post("/", h.CreateLink)
				r.Get("/{id}", h.GetLink)
				r.Put("/{id}", h.UpdateLink)
				r.Delete("/{id}", h.DeleteLink)
				r.Get("/{id}/analytics", h.GetAnalytics)
			})
		})

		r.Get("/{code}", h.Redirect)
	})

	if opts.Wrap != nil {
		return opts.Wrap(r)
	}
	return r
}
