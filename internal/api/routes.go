package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"marketplace/internal/auth"
	"marketplace/internal/catalog"
)

// WriterRoles may create and delete listings.
var WriterRoles = []string{"seller", catalog.RoleAdmin}

type routeConfig struct {
	otelService string
	validator   auth.TokenValidator
	rateLimiter mux.MiddlewareFunc
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeConfig)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(c *routeConfig) { c.otelService = serviceName }
}

// WithAuthenticator resolves bearer tokens into principals. Without it every
// caller is anonymous and write endpoints answer 401.
func WithAuthenticator(v auth.TokenValidator) RouteOption {
	return func(c *routeConfig) { c.validator = v }
}

// WithRateLimiter mounts rate limiting on everything under /api/v1,
// including requests that end in 404 or 405. Health checks are not rate
// limited.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(c *routeConfig) { c.rateLimiter = middleware }
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, opts ...RouteOption) *mux.Router {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	router := mux.NewRouter()

	// Outermost first: recovery sees panics from everything below it.
	chain := []mux.MiddlewareFunc{recoveryMiddleware, requestIDMiddleware, loggingMiddleware}
	if cfg.otelService != "" {
		chain = append(chain, otelmux.Middleware(cfg.otelService,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/api/v1/health"
			}),
		))
	}
	// Identity must be known before the rate limiter picks a tier.
	if cfg.validator != nil {
		chain = append(chain, auth.OptionalAuth(cfg.validator))
	}
	router.Use(chain...)

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	apiChain := chain
	if cfg.rateLimiter != nil {
		api.Use(cfg.rateLimiter)
		apiChain = append(append([]mux.MiddlewareFunc(nil), chain...), cfg.rateLimiter)
	}

	api.HandleFunc("/listings", handlers.ListListings).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", handlers.GetListing).Methods(http.MethodGet)
	api.HandleFunc("/search", handlers.SearchListings).Methods(http.MethodGet)

	writeAPI := api.NewRoute().Subrouter()
	writeAPI.Use(auth.RequireRole(WriterRoles...))
	writeAPI.HandleFunc("/listings", handlers.CreateListing).Methods(http.MethodPost)
	writeAPI.HandleFunc("/listings/{id}", handlers.DeleteListing).Methods(http.MethodDelete)

	// mux skips router middleware for these handlers, so they carry their
	// own chain. Unmatched /api/v1 requests count against the caller's quota.
	router.MethodNotAllowedHandler = wrap(http.HandlerFunc(methodNotAllowedHandler), chain)
	router.NotFoundHandler = wrap(http.HandlerFunc(notFoundHandler), chain)
	api.MethodNotAllowedHandler = wrap(http.HandlerFunc(methodNotAllowedHandler), apiChain)
	api.NotFoundHandler = wrap(http.HandlerFunc(notFoundHandler), apiChain)

	return router
}

// wrap applies chain to h, first element outermost.
func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i].Middleware(h)
	}
	return h
}
