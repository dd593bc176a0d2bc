// Package httpapi serves the reports as read-only JSON over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"blend-portfolio/internal/backstop"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/observability"
	"blend-portfolio/internal/portfolio"
	"blend-portfolio/internal/reporting"
	"blend-portfolio/internal/storage"
)

// Service is the report source behind the API. *portfolio.Service
// implements it.
type Service interface {
	BalanceHistory(ctx context.Context, req portfolio.BalanceRequest) (domain.BalanceHistory, error)
	CostBasis(ctx context.Context, req portfolio.CostBasisRequest) (domain.CostBasisReport, error)
	Yield(ctx context.Context, req portfolio.YieldRequest) (domain.YieldReport, error)
	Q4W(ctx context.Context, q backstop.Query) (domain.Q4WReport, error)
	Summary(ctx context.Context, req portfolio.SummaryRequest) (portfolio.Summary, error)
	SyncStatus(ctx context.Context) (*storage.SyncStatus, error)
}

// Options configure the router.
type Options struct {
	Backend        string
	DemoUser       string
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
}

type handler struct {
	svc     Service
	reports *reporting.Generator
	opts    Options
	started time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Service, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	h := &handler{
		svc:     svc,
		reports: reporting.NewGenerator(svc),
		opts:    opts,
		started: time.Now(),
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", h.handleStatus)
	r.GET("/metrics", gin.WrapH(observability.Handler(opts.Gatherer)))

	v1 := r.Group("/v1", timeout(opts.RequestTimeout))
	v1.GET("/users/:user/balances", h.handleBalances)
	v1.GET("/users/:user/cost-basis", h.handleCostBasis)
	v1.GET("/users/:user/yield", h.handleYield)
	v1.GET("/users/:user/summary", h.handleSummary)
	v1.GET("/users/:user/report", h.handleReport)
	v1.GET("/q4w", h.handleQ4W)
	return r
}

// NewServer wraps handler in an http.Server bound to addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// StatusResponse is the /status body.
type StatusResponse struct {
	Status   string              `json:"status"`
	Uptime   string              `json:"uptime"`
	Backend  string              `json:"backend"`
	DemoUser string              `json:"demoUser,omitempty"`
	Sync     *storage.SyncStatus `json:"sync"`
}

func (h *handler) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
		Backend:  h.opts.Backend,
		DemoUser: h.opts.DemoUser,
	}
	sync, err := h.svc.SyncStatus(c.Request.Context())
	switch {
	case err == nil:
		resp.Sync = sync
	case errors.Is(err, storage.ErrNotFound):
	default:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
