package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/approval"
	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/monitoring"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/reporting"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Server is the operator status and approval API
type Server struct {
	store     store.Store
	approvals *approval.Service
	health    *monitoring.HealthChecker
	metrics   *monitoring.Metrics
	log       *zap.Logger
	engine    *gin.Engine
	srv       *http.Server
}

// NewServer builds the router. health and metrics may be nil, in which case
// their endpoints are not registered.
func NewServer(addr string, st store.Store, approvals *approval.Service, health *monitoring.HealthChecker, metrics *monitoring.Metrics, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:     st,
		approvals: approvals,
		health:    health,
		metrics:   metrics,
		log:       logger.OrNop(log),
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(s.engine)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks serving requests until Shutdown
func (s *Server) ListenAndServe() error {
	s.log.Info("status API listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes(r *gin.Engine) {
	if s.health != nil {
		r.GET("/health", s.getHealth)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/signals", s.listSignals)
	r.GET("/signals/:id", s.getSignal)
	r.POST("/signals", s.submitSignal)
	r.POST("/signals/:id/approve", s.approveSignal)
	r.POST("/signals/:id/reject", s.rejectSignal)

	r.GET("/trades", s.listTrades)
	r.GET("/trades/:id", s.getTrade)
	r.GET("/portfolio", s.listPortfolio)
	r.GET("/stats", s.getStats)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("api request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) getHealth(c *gin.Context) {
	status := s.health.Status()
	c.JSON(monitoring.HTTPStatus(status.Status), status)
}

func (s *Server) listSignals(c *gin.Context) {
	var statuses []types.SignalStatus
	if q := c.Query("status"); q != "" {
		status, err := types.ParseSignalStatus(q)
		if err != nil {
			s.fail(c, err)
			return
		}
		statuses = append(statuses, status)
	}
	signals, err := s.store.ListSignals(c.Request.Context(), statuses...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) getSignal(c *gin.Context) {
	sig, err := s.store.GetSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

func (s *Server) submitSignal(c *gin.Context) {
	var in types.SignalCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := s.approvals.Submit(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sig)
}

type decisionRequest struct {
	By string `json:"by"`
}

func (r decisionRequest) who() string {
	if r.By == "" {
		return "api"
	}
	return r.By
}

func (s *Server) approveSignal(c *gin.Context) {
	var req decisionRequest
	// The body is optional
	_ = c.ShouldBindJSON(&req)
	sig, err := s.approvals.Approve(c.Request.Context(), c.Param("id"), req.who())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

func (s *Server) rejectSignal(c *gin.Context) {
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)
	sig, err := s.approvals.Reject(c.Request.Context(), c.Param("id"), req.who())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

func (s *Server) listTrades(c *gin.Context) {
	var statuses []types.TradeStatus
	if q := c.Query("status"); q != "" {
		status, err := types.ParseTradeStatus(q)
		if err != nil {
			s.fail(c, err)
			return
		}
		statuses = append(statuses, status)
	}
	trades, err := s.store.ListTrades(c.Request.Context(), statuses...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) getTrade(c *gin.Context) {
	trade, err := s.store.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) listPortfolio(c *gin.Context) {
	limit := 100
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	snaps, err := s.store.ListPortfolio(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	latest := (*types.PortfolioSnapshot)(nil)
	if len(snaps) > 0 {
		latest = &snaps[0]
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "history": snaps})
}

func (s *Server) getStats(c *gin.Context) {
	trades, err := s.store.ListTrades(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reporting.Summarize(trades))
}

// fail maps domain errors to status codes
func (s *Server) fail(c *gin.Context, err error) {
	var verr *types.ValidationError
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, approval.ErrNotPending), errors.Is(err, approval.ErrSignalExpired),
		errors.Is(err, types.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, approval.ErrLowConfidence), errors.As(err, &verr):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.log.Error("api request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
