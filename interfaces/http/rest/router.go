// Package rest exposes the detection service over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"coredetect/application/commands/bus"
	querybus "coredetect/application/queries/bus"
	"coredetect/interfaces/http/rest/handlers"
	"coredetect/interfaces/http/rest/middleware"
	pkgerrors "coredetect/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds the optional parts of the router
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MetricsHandler http.Handler
	HTTPMetrics    middleware.HTTPMetrics
	Readiness      map[string]ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus    *bus.CommandBus
	queryBus      *querybus.QueryBus
	authenticator *middleware.Authenticator
	errors        *pkgerrors.ErrorHandler
	config        RouterConfig
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	authenticator *middleware.Authenticator,
	errHandler *pkgerrors.ErrorHandler,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:    commandBus,
		queryBus:      queryBus,
		authenticator: authenticator,
		errors:        errHandler,
		config:        config,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.config.HTTPMetrics != nil {
		router.Use(middleware.Metrics(rt.config.HTTPMetrics))
	}
	if len(rt.config.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.config.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", rt.config.MetricsHandler)
	}

	detections := handlers.NewDetectionHandler(rt.commandBus, rt.errors, rt.logger)
	users := handlers.NewUserHandler(rt.queryBus, rt.errors, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authenticator.Middleware)
		if rt.config.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.config.RequestTimeout))
		}

		r.With(middleware.RequireRole(rt.errors, "analyst", "admin")).Post("/detections", detections.CreateDetection)
		r.Get("/detections/{runID}", users.GetRun)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", users.GetUser)
			r.Get("/ranking", users.GetRanking)
			r.Get("/clusters", users.GetClusters)
			r.With(middleware.RequireRole(rt.errors, "analyst", "admin")).Post("/tweets/download", detections.DownloadTweets)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck runs every registered dependency check
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	for name, check := range rt.config.Readiness {
		if err := check(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			rt.errors.HandleStatus(w, req, http.StatusServiceUnavailable, name+" is not ready")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
