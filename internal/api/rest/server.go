// Package rest provides the catalog REST API server
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/biblioteca/catalog-api/internal/api/rest/middleware"
	"github.com/biblioteca/catalog-api/internal/audit"
	"github.com/biblioteca/catalog-api/internal/auth"
	"github.com/biblioteca/catalog-api/internal/catalog"
	"github.com/biblioteca/catalog-api/internal/logging"
	"github.com/biblioteca/catalog-api/internal/metrics"
)

// Authorities accepted by catalog routes
var (
	readAuthorities = []string{
		auth.RoleLeitura.Authority(),
		auth.RoleEscrita.Authority(),
		auth.RoleAdmin.Authority(),
	}
	writeAuthorities = []string{
		auth.RoleEscrita.Authority(),
		auth.RoleAdmin.Authority(),
	}
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config configures the REST API server
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// CORSOrigins lists allowed origins; empty disables CORS, "*" allows any
	CORSOrigins []string
	// Proxies decides whose forwarding headers identify the client
	Proxies middleware.TrustedProxies
	Version string
}

// DefaultConfig returns default REST server configuration
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		Version:      "1.0.0",
	}
}

// Services are the collaborators the server routes to
type Services struct {
	Auth          *auth.Service
	Catalog       *catalog.Service
	Authenticator *auth.Authenticator
	// RateLimit guards /api/v1/auth/ when set
	RateLimit *middleware.RateLimitMiddleware
	Audit     *audit.Logger
	Metrics   metrics.Metrics
	// DB is pinged by /health when set
	DB Pinger
}

// Server is the REST API server
type Server struct {
	svc        Services
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	logger     *zap.Logger
	config     Config
	startTime  time.Time
}

// New creates a new REST API server
func New(cfg Config, svc Services, logger *zap.Logger) (*Server, error) {
	if svc.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if svc.Catalog == nil {
		return nil, fmt.Errorf("catalog service is required")
	}
	if svc.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if svc.Metrics == nil {
		svc.Metrics = metrics.NewNoOpMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		svc:       svc,
		router:    mux.NewRouter(),
		logger:    logger,
		config:    cfg,
		startTime: time.Now(),
	}

	s.registerRoutes()

	// CORS wraps the router so preflights reach it without a matching route
	s.handler = s.router
	if len(cfg.CORSOrigins) > 0 {
		s.handler = s.corsMiddleware(s.router)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// registerRoutes registers all REST API routes
func (s *Server) registerRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	s.router.NotFoundHandler = s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, MsgNotFound)
	}))
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, MsgMethodNotAllow)
	})

	s.router.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)
	s.router.PathPrefix("/v3/api-docs").HandlerFunc(s.apiDocsHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.svc.Authenticator.Handler)

	authRoutes := api.PathPrefix("/auth").Subrouter()
	if s.svc.RateLimit != nil {
		authRoutes.Use(s.svc.RateLimit.Handler)
	}
	authRoutes.HandleFunc("/login", s.loginHandler).Methods(http.MethodPost)
	authRoutes.HandleFunc("/register", s.registerHandler).Methods(http.MethodPost)

	s.registerCatalogRoutes(api, "/autores", catalogHandlers{
		list: s.listAuthorsHandler, create: s.createAuthorHandler, get: s.getAuthorHandler,
		update: s.updateAuthorHandler, delete: s.deleteAuthorHandler,
	})
	s.registerCatalogRoutes(api, "/generos", catalogHandlers{
		list: s.listGenresHandler, create: s.createGenreHandler, get: s.getGenreHandler,
		update: s.updateGenreHandler, delete: s.deleteGenreHandler,
	})
	s.registerCatalogRoutes(api, "/livros", catalogHandlers{
		list: s.listBooksHandler, create: s.createBookHandler, get: s.getBookHandler,
		update: s.updateBookHandler, delete: s.deleteBookHandler,
	})
}

type catalogHandlers struct {
	list, create, get, update, delete http.HandlerFunc
}

func (s *Server) registerCatalogRoutes(api *mux.Router, path string, h catalogHandlers) {
	read := auth.RequireAnyAuthority(readAuthorities...)
	write := auth.RequireAnyAuthority(writeAuthorities...)

	api.Handle(path, read(h.list)).Methods(http.MethodGet)
	api.Handle(path, write(h.create)).Methods(http.MethodPost)
	api.Handle(path+"/{id}", read(h.get)).Methods(http.MethodGet)
	api.Handle(path+"/{id}", write(h.update)).Methods(http.MethodPut)
	api.Handle(path+"/{id}", write(h.delete)).Methods(http.MethodDelete)
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server",
		zap.Int("port", s.config.Port),
		zap.Bool("rate_limit_enabled", s.svc.RateLimit != nil),
		zap.Bool("cors_enabled", len(s.config.CORSOrigins) > 0),
	)

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the REST API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler interface for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// loggingMiddleware tags the request with an id, then logs and measures it
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(logging.RequestIDHeader)
		if requestID == "" {
			requestID = logging.NewRequestID()
		}
		w.Header().Set(logging.RequestIDHeader, requestID)
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))

		s.svc.Metrics.IncActiveRequests()
		defer s.svc.Metrics.DecActiveRequests()

		wrappedWriter := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrappedWriter, r)

		duration := time.Since(start)
		s.svc.Metrics.RecordHTTPRequest(r.Method, routeTemplate(r), wrappedWriter.statusCode, duration)
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrappedWriter.statusCode),
			zap.Duration("duration", duration),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", requestID),
		)
	})
}

// routeTemplate returns the matched route pattern so metric labels stay bounded
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// recoveryMiddleware recovers from panics
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				WriteError(w, http.StatusInternalServerError, MsgInternalError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers for allowed origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// healthCheckHandler handles health check requests
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	status, code := "healthy", http.StatusOK

	if s.svc.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.DB.PingContext(ctx); err != nil {
			s.logger.Warn("Database health check failed", zap.Error(err))
			checks["database"] = "unreachable"
			status, code = "unhealthy", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	WriteJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
