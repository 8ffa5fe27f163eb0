// Package api exposes the operations HTTP API of the sentinel.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/observability"
	"solana-trade-sentinel/internal/scheduler"
	"solana-trade-sentinel/internal/storage"
)

// Validator runs the trade validation pipeline.
type Validator interface {
	Validate(ctx context.Context, tokenID, poolID string, cfg domain.ValidationConfig, knownLiquidity *float64) domain.ValidationResult
}

// Sizer computes trade sizes.
type Sizer interface {
	Calculate(balance float64, riskPercent, riskAmount *float64) (domain.RiskCalculation, error)
}

// Scheduler is the part of scheduler.Scheduler the API drives.
type Scheduler interface {
	Status() scheduler.Status
	Signals(tokenID string) (scheduler.SignalSnapshot, bool)
	AddAlert(a scheduler.PriceAlert) (scheduler.PriceAlert, error)
	Alerts() []scheduler.PriceAlert
	Watch(tokenID string, meta domain.TokenMeta)
	Unwatch(tokenID string) bool
	Watchlist() []string
	RecordSmartWallet(tokenID string, sig domain.SmartWalletSignal) bool
	OpenPositions() []domain.Position
}

// TrailingStates reads trailing stop state.
type TrailingStates interface {
	State(tokenID string) (domain.TrailingStopState, bool)
}

// PositionBook accepts positions from the execution service.
type PositionBook interface {
	Open(p domain.Position) error
	Close(tokenID string) error
}

// SinkStats reports event sink counters.
type SinkStats interface {
	Stats() []events.SinkStats
}

// Config configures the Server.
type Config struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	RateLimit         float64 // requests per second on /v1, 0 disables
	Burst             int
	DefaultValidation domain.ValidationConfig
}

// Options holds the Server collaborators. Journal, Positions and Sinks may be nil.
type Options struct {
	Config    Config
	Validator Validator
	Sizer     Sizer
	Scheduler Scheduler
	Trailing  TrailingStates
	Journal   storage.DecisionEventStore
	Positions PositionBook
	Sinks     SinkStats
	Logger    zerolog.Logger
}

// Server is the operations API.
type Server struct {
	cfg        Config
	router     *gin.Engine
	httpServer *http.Server
	validator  Validator
	sizer      Sizer
	sched      Scheduler
	trailing   TrailingStates
	journal    storage.DecisionEventStore
	book       PositionBook
	sinks      SinkStats
	logger     zerolog.Logger
	startedAt  time.Time
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		cfg:       opts.Config,
		router:    router,
		validator: opts.Validator,
		sizer:     opts.Sizer,
		sched:     opts.Scheduler,
		trailing:  opts.Trailing,
		journal:   opts.Journal,
		book:      opts.Positions,
		sinks:     opts.Sinks,
		logger:    opts.Logger.With().Str("component", "api").Logger(),
		startedAt: time.Now(),
	}

	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(s.logger))

	s.routes()
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(observability.Handler()))
	s.router.GET("/status", s.status)

	v1 := s.router.Group("/v1")
	if s.cfg.RateLimit > 0 {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		v1.Use(rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)))
	}
	{
		v1.POST("/validate", s.validate)
		v1.POST("/risk", s.risk)
		v1.GET("/signals/:token", s.signals)
		v1.GET("/trailing/:token", s.trailingState)
		v1.GET("/alerts", s.listAlerts)
		v1.POST("/alerts", s.createAlert)
		v1.GET("/watchlist", s.listWatchlist)
		v1.POST("/watchlist", s.watch)
		v1.DELETE("/watchlist/:token", s.unwatch)
		v1.POST("/watchlist/:token/smart-wallet", s.smartWallet)
		v1.GET("/positions", s.positions)
		if s.book != nil {
			v1.POST("/positions", s.openPosition)
			v1.DELETE("/positions/:token", s.closePosition)
		}
		if s.journal != nil {
			v1.GET("/events/:token", s.tokenEvents)
		}
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
