package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"github.com/vikar/fx_cascade_trader/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	scheduler *usecase.Scheduler
	venue     domain.Venue
	repo      domain.TradeRepository
	metrics   http.Handler
	hub       *TradeHub
	logger    *zap.Logger
}

func NewServer(
	port int,
	scheduler *usecase.Scheduler,
	venue domain.Venue,
	repo domain.TradeRepository,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		scheduler: scheduler,
		venue:     venue,
		repo:      repo,
		metrics:   metricsHandler,
		hub:       NewTradeHub(logger),
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Plans and history
	s.router.HandleFunc("GET /api/plans", s.handlePlans)
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /api/history", s.handleHistory)

	// Live trade feed
	s.router.HandleFunc("GET /ws/trades", s.hub.HandleWS)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
}

// Hub returns the websocket hub so the trade log can broadcast records.
func (s *Server) Hub() *TradeHub {
	return s.hub
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
