// Package server exposes the auctioneer over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/server/middleware"
	"github.com/alanyoungcy/auctioneer/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	RequireWalletSignatures bool
	SignatureMaxSkew        time.Duration

	// RequestsPerMinute limits each client IP. Zero disables the limit.
	RequestsPerMinute int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Listings    *handler.ListingHandler
	Settlements *handler.SettlementHandler
	// Dev is mounted only when non-nil.
	Dev *handler.DevHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *slog.Logger
}

// NewServer registers every route and the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "Authorization", "X-API-Key",
			middleware.HeaderWallet, middleware.HeaderWalletTimestamp, middleware.HeaderWalletSignature,
		},
		MaxAge: 86400,
	}))

	// Health check (no auth required).
	r.Get("/api/health", handlers.Health.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.APIKey))
		r.Use(middleware.RateLimit(limiter, cfg.RequestsPerMinute, time.Minute, logger))
		r.Use(middleware.WalletSignature(cfg.RequireWalletSignatures, cfg.SignatureMaxSkew, nil))

		r.Get("/api/status", handlers.Status.GetStatus)

		r.Route("/api/listings", func(r chi.Router) {
			r.Get("/", handlers.Listings.ListListings)
			r.Post("/", handlers.Listings.Sell)
			r.Route("/{address}", func(r chi.Router) {
				r.Get("/", handlers.Listings.GetListing)
				r.Post("/bids", handlers.Listings.Bid)
				r.Post("/cancel", handlers.Listings.Cancel)
				r.Post("/execute", handlers.Listings.ExecuteSale)
				r.Get("/settlement", handlers.Settlements.GetSettlement)
			})
		})
		r.Get("/api/settlements", handlers.Settlements.ListSettlements)
		r.Get("/api/events", handlers.Settlements.ListEvents)

		if handlers.Dev != nil {
			r.Route("/api/dev", func(r chi.Router) {
				r.Post("/airdrop", handlers.Dev.Airdrop)
				r.Post("/mint", handlers.Dev.Mint)
				r.Post("/clock", handlers.Dev.Clock)
				r.Post("/withdraw", handlers.Dev.Withdraw)
				r.Post("/reclaim", handlers.Dev.Reclaim)
				r.Get("/wallets/{wallet}", handlers.Dev.Wallet)
			})
		}

		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWS)
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		router:     r,
		logger:     logger,
	}
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
