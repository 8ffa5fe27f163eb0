package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/scheduler"
	"solana-trade-sentinel/internal/sizing"
	"solana-trade-sentinel/internal/solana"
	"solana-trade-sentinel/internal/storage"
)

const defaultEventLimit = 100

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) status(c *gin.Context) {
	resp := gin.H{"scheduler": s.sched.Status()}
	if s.sinks != nil {
		resp["sinks"] = s.sinks.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

type validateRequest struct {
	TokenID      string                   `json:"tokenId"`
	PoolID       string                   `json:"poolId"`
	LiquiditySol *float64                 `json:"liquiditySol"`
	Config       *domain.ValidationConfig `json:"config"`
}

// validate always answers 200; rejections are carried in the result.
// A partial config in the body overrides only the fields it names.
func (s *Server) validate(c *gin.Context) {
	defaults := s.cfg.DefaultValidation
	req := validateRequest{Config: &defaults}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg := s.cfg.DefaultValidation
	if req.Config != nil {
		cfg = *req.Config
	}
	c.JSON(http.StatusOK, s.validator.Validate(c.Request.Context(), req.TokenID, req.PoolID, cfg, req.LiquiditySol))
}

type riskRequest struct {
	Balance     float64  `json:"balance"`
	RiskPercent *float64 `json:"riskPercent"`
	RiskAmount  *float64 `json:"riskAmount"`
}

func (s *Server) risk(c *gin.Context) {
	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	calc, err := s.sizer.Calculate(req.Balance, req.RiskPercent, req.RiskAmount)
	if errors.Is(err, sizing.ErrInvalidBalance) {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, calc)
}

func (s *Server) signals(c *gin.Context) {
	snap, ok := s.sched.Signals(c.Param("token"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "no signals for token")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) trailingState(c *gin.Context) {
	st, ok := s.trailing.State(c.Param("token"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "no trailing state for token")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) listAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": s.sched.Alerts()})
}

type alertRequest struct {
	TokenID   string  `json:"tokenId"`
	Direction string  `json:"direction"`
	Target    float64 `json:"target"`
}

func (s *Server) createAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	a, err := s.sched.AddAlert(scheduler.PriceAlert{
		TokenID:   req.TokenID,
		Direction: req.Direction,
		Target:    req.Target,
	})
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) listWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tokens": s.sched.Watchlist()})
}

type watchRequest struct {
	TokenID       string    `json:"tokenId"`
	PoolAddress   string    `json:"poolAddress"`
	Symbol        string    `json:"symbol"`
	PoolCreatedAt time.Time `json:"poolCreatedAt"`
}

func (s *Server) watch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := solana.ValidateAddress(req.TokenID); err != nil {
		errorResponse(c, http.StatusBadRequest, "tokenId: "+err.Error())
		return
	}
	if req.PoolAddress != "" {
		if err := solana.ValidateAddress(req.PoolAddress); err != nil {
			errorResponse(c, http.StatusBadRequest, "poolAddress: "+err.Error())
			return
		}
	}
	s.sched.Watch(req.TokenID, domain.TokenMeta{
		Symbol:        req.Symbol,
		PoolAddress:   req.PoolAddress,
		PoolCreatedAt: req.PoolCreatedAt,
	})
	c.JSON(http.StatusCreated, gin.H{"tokenId": req.TokenID})
}

func (s *Server) unwatch(c *gin.Context) {
	if !s.sched.Unwatch(c.Param("token")) {
		errorResponse(c, http.StatusNotFound, "token not watched")
		return
	}
	c.Status(http.StatusNoContent)
}

type smartWalletRequest struct {
	Wallet    string    `json:"wallet"`
	Action    string    `json:"action"`
	AmountSol float64   `json:"amountSol"`
	SeenAt    time.Time `json:"seenAt"`
}

func (s *Server) smartWallet(c *gin.Context) {
	var req smartWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Action != domain.SmartWalletBuy && req.Action != domain.SmartWalletSell {
		errorResponse(c, http.StatusBadRequest, "action must be buy or sell")
		return
	}
	if req.SeenAt.IsZero() {
		req.SeenAt = time.Now()
	}
	ok := s.sched.RecordSmartWallet(c.Param("token"), domain.SmartWalletSignal{
		Wallet:    req.Wallet,
		Action:    req.Action,
		AmountSol: req.AmountSol,
		SeenAt:    req.SeenAt,
	})
	if !ok {
		errorResponse(c, http.StatusNotFound, "token not watched")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) positions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.sched.OpenPositions()})
}

// openPosition records a position opened by the execution service. The
// next position sweep starts monitoring it.
func (s *Server) openPosition(c *gin.Context) {
	var p domain.Position
	if err := c.ShouldBindJSON(&p); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := solana.ValidateAddress(p.TokenID); err != nil {
		errorResponse(c, http.StatusBadRequest, "tokenId: "+err.Error())
		return
	}
	if p.PoolAddress != "" {
		if err := solana.ValidateAddress(p.PoolAddress); err != nil {
			errorResponse(c, http.StatusBadRequest, "poolAddress: "+err.Error())
			return
		}
	}
	if p.CreatorAddress != "" {
		if err := solana.ValidateAddress(p.CreatorAddress); err != nil {
			errorResponse(c, http.StatusBadRequest, "creatorAddress: "+err.Error())
			return
		}
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now()
	}
	if err := s.book.Open(p); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			errorResponse(c, http.StatusBadRequest, "entryPrice must be positive")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info().Str("token", p.TokenID).Float64("entry_price", p.EntryPrice).Msg("position opened")
	c.JSON(http.StatusCreated, p)
}

func (s *Server) closePosition(c *gin.Context) {
	token := c.Param("token")
	if err := s.book.Close(token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "position not open")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info().Str("token", token).Msg("position closed")
	c.Status(http.StatusNoContent)
}

func (s *Server) tokenEvents(c *gin.Context) {
	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	evs, err := s.journal.GetByToken(c.Request.Context(), c.Param("token"), limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("token", c.Param("token")).Msg("journal query failed")
		errorResponse(c, http.StatusInternalServerError, "journal unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}
