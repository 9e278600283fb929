package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ledger-service/internal/cache"
	"ledger-service/internal/config"
	"ledger-service/internal/domain"
	"ledger-service/internal/events"
	"ledger-service/internal/handler"
	"ledger-service/internal/repository"
	"ledger-service/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router  *mux.Router
	server  *http.Server
	db      *sql.DB
	closers []func()
	logger  *slog.Logger
	port    string
}

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Store       domain.Store
	Cache       cache.DashboardCache
	Publisher   events.Publisher
	PageMaxSize int
	Clock       func() time.Time
}

// NewServer connects to PostgreSQL and, when configured, Redis and RabbitMQ,
// then builds the router.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := repository.Open(ctx, cfg.GetDBConnectionString(), repository.PoolSettings{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to database", "target", cfg.RedactedDBTarget())

	s := &Server{
		db:     db,
		logger: logger,
	}

	deps := Dependencies{
		Store:       repository.NewStore(db, logger),
		Cache:       cache.Noop{},
		Publisher:   events.NoopPublisher{},
		PageMaxSize: cfg.PageMaxSize,
	}

	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set; dashboard cache disabled")
	} else if client, err := cache.Connect(ctx, cfg.RedisURL); err != nil {
		logger.Warn("Redis unavailable; dashboard cache disabled", "error", err)
	} else {
		deps.Cache = cache.NewRedisDashboardCache(client, cfg.RedisKeyPrefix, cfg.DashboardCacheTTL)
		s.closers = append(s.closers, func() { client.Close() })
		logger.Info("Redis connected", "key_prefix", cfg.RedisKeyPrefix)
	}

	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL not set; transaction events disabled")
	} else if publisher, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger); err != nil {
		logger.Warn("RabbitMQ unavailable; transaction events disabled", "error", err)
	} else {
		deps.Publisher = publisher
		s.closers = append(s.closers, publisher.Close)
		logger.Info("RabbitMQ connected", "exchange", cfg.EventsExchange)
	}

	s.router = NewRouter(deps, logger)
	return s, nil
}

// NewRouter wires services and handlers onto a mux router.
func NewRouter(deps Dependencies, logger *slog.Logger) *mux.Router {
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	opts := []service.TransactionOption{
		service.WithPublisher(deps.Publisher),
		service.WithDashboardCache(deps.Cache),
		service.WithMaxPageSize(deps.PageMaxSize),
	}
	if deps.Clock != nil {
		opts = append(opts, service.WithClock(deps.Clock))
	}

	accountService := service.NewAccountService(deps.Store, logger)
	transactionService := service.NewTransactionService(deps.Store, logger, opts...)
	dashboardService := service.NewDashboardService(deps.Store, deps.Cache, logger)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(handler.WriteNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handler.WriteMethodNotAllowed)

	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(logger))

	handler.Handlers{
		Accounts:     handler.NewAccountHandler(accountService),
		Transactions: handler.NewTransactionHandler(transactionService),
		Dashboard:    handler.NewDashboardHandler(dashboardService),
	}.Register(router.PathPrefix("/api/v1").Subrouter())

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := deps.Store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	return router
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop drains in-flight requests, then releases the broker, cache and
// database connections.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if s.db != nil {
		s.db.Close()
	}
	return err
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// NewLogger returns a discard logger for port "0" (tests) and a JSON logger
// on stdout otherwise.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.ServerPort == "0" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	logger := NewLogger(cfg)

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
