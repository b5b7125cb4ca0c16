// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/service"
	"github.com/strava-board/internal/types"
)

// Service interfaces for dependency injection and testing

// AuthServiceInterface defines the auth operations the server needs
type AuthServiceInterface interface {
	AuthorizeURL(state string) string
	HandleCallback(ctx context.Context, code string) (*models.User, error)
}

// SyncServiceInterface defines the sync operations the server needs
type SyncServiceInterface interface {
	SyncByID(ctx context.Context, userID string, since time.Time) (*types.SyncResult, error)
	ReclassifyUser(ctx context.Context, userID string) (int, error)
}

// StatsServiceInterface defines the read operations the server needs
type StatsServiceInterface interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListRuns(ctx context.Context, userID, clubName string) ([]*models.Run, error)
	WeeklyGroups(ctx context.Context, userID string) ([]service.WeekGroup, error)
	MonthlyGroups(ctx context.Context, userID, clubName string) ([]service.MonthGroup, error)
	Streak(ctx context.Context, userID string) (int, error)
	UserClubs(ctx context.Context, userID string) ([]string, error)
	ClubLeaderboard(ctx context.Context, clubName string, year int, order types.MonthOrder) ([]types.MonthLeaderboard, error)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	authService  AuthServiceInterface
	syncService  SyncServiceInterface
	statsService StatsServiceInterface
	clubNames    []string
	config       *ServerConfig
	logger       *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	authService AuthServiceInterface,
	syncService SyncServiceInterface,
	statsService StatsServiceInterface,
	clubNames []string,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		authService:  authService,
		syncService:  syncService,
		statsService: statsService,
		clubNames:    clubNames,
		config:       config,
		logger:       logging.GetGlobalLogger().WithField("component", "api_server"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Middleware order matters: log everything, recover before rate limiting
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// OAuth endpoints
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods("GET")
	s.router.HandleFunc("/auth/callback", s.handleCallback).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Per-user endpoints
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}/sync", s.handleSync).Methods("POST")
	api.HandleFunc("/users/{id}/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/users/{id}/weeks", s.handleWeeks).Methods("GET")
	api.HandleFunc("/users/{id}/months", s.handleMonths).Methods("GET")
	api.HandleFunc("/users/{id}/streak", s.handleStreak).Methods("GET")
	api.HandleFunc("/users/{id}/clubs", s.handleUserClubs).Methods("GET")
	api.HandleFunc("/users/{id}/reclassify", s.handleReclassify).Methods("POST")

	// Club endpoints
	api.HandleFunc("/clubs", s.handleListClubs).Methods("GET")
	api.HandleFunc("/clubs/{club}/leaderboard", s.handleLeaderboard).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "strava-board",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
