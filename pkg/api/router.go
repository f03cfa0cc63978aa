package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/api/auth"
	"github.com/marmos91/stager/pkg/api/handlers"
	apimw "github.com/marmos91/stager/pkg/api/middleware"
	"github.com/marmos91/stager/pkg/stager/backend"
)

// Dependencies are the collaborators the router serves.
type Dependencies struct {
	// Coordinator backs every /api/v1 route. Required.
	Coordinator handlers.Coordinator

	// Backends reports storage element health. May be nil.
	Backends *backend.Registry

	// Agents reports agent cycles. May be nil.
	Agents handlers.AgentStats

	// JWT enables bearer authentication when non-nil.
	JWT *auth.JWTService
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health, /health/ready, /health/backends - unauthenticated probes
//   - /api/v1/tasks, /api/v1/replicas, /api/v1/stage-requests, /api/v1/pins
//
// With JWT configured, reads need the reader role, lifecycle updates the
// operator role and task removal the admin role.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Coordinator, deps.Backends)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/backends", healthHandler.Backends)
	})

	taskHandler := handlers.NewTaskHandler(deps.Coordinator)
	replicaHandler := handlers.NewReplicaHandler(deps.Coordinator)
	stageHandler := handlers.NewStageHandler(deps.Coordinator, deps.Agents)

	require := func(role auth.Role) func(http.Handler) http.Handler {
		if deps.JWT == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return apimw.RequireRole(role)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.JWT != nil {
			r.Use(apimw.JWTAuth(deps.JWT))
		}

		r.Group(func(r chi.Router) {
			r.Use(require(auth.RoleReader))
			r.Get("/tasks", taskHandler.List)
			r.Get("/tasks/by-status/{status}", taskHandler.ByStatus)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Get("/tasks/{id}/summary", taskHandler.Summary)
			r.Get("/tasks/{id}/status", taskHandler.Status)
			r.Get("/replicas", replicaHandler.List)
			r.Get("/replicas/waiting", replicaHandler.Waiting)
			r.Get("/stage-requests", stageHandler.List)
			r.Get("/pins", stageHandler.Pins)
			r.Get("/agents", stageHandler.Agents)
		})

		r.Group(func(r chi.Router) {
			r.Use(require(auth.RoleOperator))
			r.Post("/tasks", taskHandler.Submit)
			r.Post("/tasks/done", taskHandler.Done)
			r.Post("/replicas/resolved", replicaHandler.Resolved)
			r.Post("/replicas/failed", replicaHandler.Failed)
			r.Post("/stage-requests", stageHandler.Submit)
			r.Post("/stage-requests/complete", stageHandler.Complete)
		})

		r.Group(func(r chi.Router) {
			r.Use(require(auth.RoleAdmin))
			r.Delete("/tasks/{id}", taskHandler.Remove)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// clientIP returns the client address of r without its port. RealIP may
// already have replaced RemoteAddr with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestLogger logs requests with the internal logger and attaches a log
// context carrying the client address.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ip := clientIP(r)

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyClientIP, ip,
		)

		ctx := logger.WithContext(r.Context(), logger.NewLogContext(ip))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyClientIP, ip,
			logger.DurationAttr(time.Since(start)),
		)
	})
}
