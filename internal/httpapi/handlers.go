package httpapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"blend-portfolio/internal/backstop"
	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/portfolio"
	"blend-portfolio/internal/reporting"
	"blend-portfolio/internal/storage"
)

func (h *handler) handleBalances(c *gin.Context) {
	from, err := dateParam(c, "from")
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := dateParam(c, "to")
	if err != nil {
		writeError(c, err)
		return
	}
	hist, err := h.svc.BalanceHistory(c.Request.Context(), portfolio.BalanceRequest{
		UserAddress:  c.Param("user"),
		AssetAddress: c.Query("asset"),
		Timezone:     c.Query("tz"),
		Range:        calendar.Range{From: from, To: to},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (h *handler) handleCostBasis(c *gin.Context) {
	live, err := liveParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	r, err := h.svc.CostBasis(c.Request.Context(), portfolio.CostBasisRequest{
		UserAddress:  c.Param("user"),
		PoolID:       c.Query("pool"),
		AssetAddress: c.Query("asset"),
		Timezone:     c.Query("tz"),
		Live:         live,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) handleYield(c *gin.Context) {
	live, err := liveParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	r, err := h.svc.Yield(c.Request.Context(), portfolio.YieldRequest{
		UserAddress: c.Param("user"),
		Timezone:    c.Query("tz"),
		Live:        live,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) handleSummary(c *gin.Context) {
	live, err := liveParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	lp, err := optFloatParam(c, "lp_price")
	if err != nil {
		writeError(c, err)
		return
	}
	s, err := h.svc.Summary(c.Request.Context(), portfolio.SummaryRequest{
		UserAddress: c.Param("user"),
		Timezone:    c.Query("tz"),
		Live:        live,
		LPPriceUSD:  lp,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) handleReport(c *gin.Context) {
	live, err := liveParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	lp, err := optFloatParam(c, "lp_price")
	if err != nil {
		writeError(c, err)
		return
	}
	days, err := intParam(c, "days")
	if err != nil {
		writeError(c, err)
		return
	}
	var assets []string
	if a := c.Query("assets"); a != "" {
		assets = strings.Split(a, ",")
	}

	r, err := h.reports.Generate(c.Request.Context(), reporting.Request{
		UserAddress: c.Param("user"),
		Timezone:    c.Query("tz"),
		Assets:      assets,
		Days:        days,
		LPPriceUSD:  lp,
		Live:        live,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, r)
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(r)))
	case "csv":
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(reporting.RenderCostBasisCSV(r.CostBasis)))
	default:
		writeError(c, &domain.ValidationError{Field: "format", Value: c.Query("format"), Reason: "want json, markdown or csv"})
	}
}

func (h *handler) handleQ4W(c *gin.Context) {
	q := backstop.Query{
		Pool:   c.Query("pool"),
		User:   c.Query("user"),
		Status: backstop.Status(c.Query("status")),
		SortBy: backstop.SortKey(c.Query("sort")),
	}
	switch order := c.DefaultQuery("order", "asc"); order {
	case "asc":
	case "desc":
		q.Desc = true
	default:
		writeError(c, &domain.ValidationError{Field: "order", Value: order, Reason: "want asc or desc"})
		return
	}

	var err error
	if q.MinShares, err = floatParam(c, "min_shares"); err != nil {
		writeError(c, err)
		return
	}
	if q.Limit, err = intParam(c, "limit"); err != nil {
		writeError(c, err)
		return
	}
	if q.Offset, err = intParam(c, "offset"); err != nil {
		writeError(c, err)
		return
	}
	if q.LPPriceUSD, err = optFloatParam(c, "lp_price"); err != nil {
		writeError(c, err)
		return
	}
	if v := c.Query("as_of"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			writeError(c, &domain.ValidationError{Field: "as_of", Value: v, Reason: "want RFC 3339 time"})
			return
		}
		q.AsOf = t.UTC()
	}

	r, err := h.svc.Q4W(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body["field"] = verr.Field
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrPaginationLimit):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}
	c.AbortWithStatusJSON(status, body)
}

func dateParam(c *gin.Context, name string) (calendar.Date, error) {
	v := c.Query(name)
	if v == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(v)
	if err != nil {
		return calendar.Date{}, &domain.ValidationError{Field: name, Value: v, Reason: "want YYYY-MM-DD"}
	}
	return d, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Value: v, Reason: "want an integer"}
	}
	return n, nil
}

func floatParam(c *gin.Context, name string) (float64, error) {
	p, err := optFloatParam(c, name)
	if err != nil || p == nil {
		return 0, err
	}
	return *p, nil
}

// optFloatParam parses a price or amount. NaN, infinities and negative
// values are rejected.
func optFloatParam(c *gin.Context, name string) (*float64, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !finite(f) || f < 0 {
		return nil, &domain.ValidationError{Field: name, Value: v, Reason: "want a finite, non-negative number"}
	}
	return &f, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// liveParam parses live=TOKEN:price,TOKEN:price.
func liveParam(c *gin.Context) (map[string]float64, error) {
	v := c.Query("live")
	if v == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(v, ",") {
		token, price, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, &domain.ValidationError{Field: "live", Value: pair, Reason: "want TOKEN:price"}
		}
		f, err := strconv.ParseFloat(price, 64)
		if err != nil || !finite(f) || f <= 0 {
			return nil, &domain.ValidationError{Field: "live", Value: pair, Reason: "price must be a positive number"}
		}
		out[token] = f
	}
	return out, nil
}
