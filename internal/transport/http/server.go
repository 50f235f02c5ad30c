// Package httpapi exposes the tracker's read model and a manual import
// trigger over a small gin server.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"fxledger/internal/config"
	"fxledger/internal/importer"
	"fxledger/internal/ledger"
	"fxledger/internal/logger"
	"fxledger/internal/report"
	"fxledger/internal/valuation"
)

const defaultListLimit = 100

// Ledger is the read surface the API serves, plus inference intake.
type Ledger interface {
	ListTradesOrdered(ctx context.Context) ([]ledger.Trade, error)
	ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]ledger.Trade, error)
	ListAlertStates(ctx context.Context) ([]ledger.AlertState, error)
	ListLinks(ctx context.Context, limit int) ([]ledger.Link, error)
	CountLinks(ctx context.Context) (int64, error)
	CountUnlinked(ctx context.Context) (int64, error)
	InsertInferences(ctx context.Context, ins []ledger.Inference) (int, error)
}

// ValuationSource exposes the latest mark-to-market snapshot.
type ValuationSource interface {
	Latest() *valuation.Valuation
}

// ImportRunner triggers a manual trade-log import.
type ImportRunner interface {
	ImportFile(ctx context.Context) (importer.Result, error)
}

// Server wraps the gin engine and its listen address.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig carries the API server dependencies.
type ServerConfig struct {
	Addr      string
	Ledger    Ledger
	Valuation ValuationSource
	Importer  ImportRunner
	AppConfig *config.Config
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("http server requires a ledger")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	h := &handlers{cfg: cfg}
	api.GET("/valuation", h.valuation)
	api.GET("/alerts", h.alerts)
	api.GET("/links", h.links)
	api.GET("/trades", h.trades)
	api.GET("/summary", h.summary)
	api.GET("/config", h.resolvedConfig)
	api.POST("/import", h.runImport)
	api.POST("/inferences", h.submitInferences)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) valuation(c *gin.Context) {
	if h.cfg.Valuation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "valuation job not running"})
		return
	}
	val := h.cfg.Valuation.Latest()
	if val == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no valuation tick completed yet"})
		return
	}
	c.JSON(http.StatusOK, val)
}

func (h *handlers) alerts(c *gin.Context) {
	states, err := h.cfg.Ledger.ListAlertStates(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": states})
}

func (h *handlers) links(c *gin.Context) {
	ctx := c.Request.Context()
	links, err := h.cfg.Ledger.ListLinks(ctx, queryLimit(c))
	if err != nil {
		serverError(c, err)
		return
	}
	linked, err := h.cfg.Ledger.CountLinks(ctx)
	if err != nil {
		serverError(c, err)
		return
	}
	unlinked, err := h.cfg.Ledger.CountUnlinked(ctx)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"links":          links,
		"linked_count":   linked,
		"unlinked_count": unlinked,
	})
}

func (h *handlers) trades(c *gin.Context) {
	trades, err := h.cfg.Ledger.ListTradesOrdered(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	if limit := queryLimit(c); len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (h *handlers) summary(c *gin.Context) {
	period := report.ParsePeriod(c.Query("period"))
	now := time.Now().UTC()
	from, to := period.Window(now)
	closed, err := h.cfg.Ledger.ListClosedTradesBetween(c.Request.Context(), from, to)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, report.BuildSummary(period, from, to, closed))
}

func (h *handlers) resolvedConfig(c *gin.Context) {
	if h.cfg.AppConfig == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "config not available"})
		return
	}
	rendered, err := h.cfg.AppConfig.RenderYAML()
	if err != nil {
		serverError(c, err)
		return
	}
	c.String(http.StatusOK, rendered)
}

func (h *handlers) runImport(c *gin.Context) {
	if h.cfg.Importer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "importer not configured"})
		return
	}
	res, err := h.cfg.Importer.ImportFile(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type inferencePayload struct {
	SourceRef  string          `json:"source_ref" binding:"required"`
	Timestamp  time.Time       `json:"timestamp" binding:"required"`
	RawContent string          `json:"raw_content"`
	Actions    json.RawMessage `json:"actions"`
}

// submitInferences accepts model inference records from the upstream
// decision service. Records with an already-seen source_ref are
// skipped, so re-posting a batch is safe.
func (h *handlers) submitInferences(c *gin.Context) {
	var payload []inferencePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ins := make([]ledger.Inference, 0, len(payload))
	for _, p := range payload {
		ins = append(ins, ledger.Inference{
			SourceRef:  p.SourceRef,
			Timestamp:  p.Timestamp.UTC(),
			RawContent: p.RawContent,
			Actions:    datatypes.JSON(p.Actions),
		})
	}
	inserted, err := h.cfg.Ledger.InsertInferences(c.Request.Context(), ins)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": len(payload), "inserted": inserted})
}

func serverError(c *gin.Context, err error) {
	logger.Errorf("http: %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		return defaultListLimit
	}
	return n
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
