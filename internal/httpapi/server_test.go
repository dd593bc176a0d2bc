package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blend-portfolio/internal/backstop"
	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/fixtures"
	"blend-portfolio/internal/logger"
	"blend-portfolio/internal/observability"
	"blend-portfolio/internal/portfolio"
	"blend-portfolio/internal/storage"
	"blend-portfolio/internal/storage/memory"
)

var anchor = calendar.MustParseDate("2024-06-30")

func setupRouter(t *testing.T) (http.Handler, fixtures.Wallet) {
	t.Helper()
	mem := memory.NewStores()
	w, err := fixtures.Load(context.Background(), mem, anchor)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("api", reg)
	svc := portfolio.New(mem.ReadOnly(), nil, m, logger.Nop(), portfolio.Options{Tokens: w.Tokens()}).
		WithClock(func() time.Time { return anchor.UTCMidnight().Add(15 * time.Hour) })

	return NewRouter(svc, Options{
		Backend:        "memory",
		DemoUser:       w.User,
		RequestTimeout: 5 * time.Second,
		Gatherer:       reg,
		Logger:         logger.Nop(),
	}), w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndStatus(t *testing.T) {
	h, w := setupRouter(t)

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StatusResponse](t, rec)
	assert.Equal(t, "running", st.Status)
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, w.User, st.DemoUser)
	require.NotNil(t, st.Sync)
	assert.NotZero(t, st.Sync.Ledger)
}

func TestCostBasis(t *testing.T) {
	h, w := setupRouter(t)

	rec := get(t, h, "/v1/users/"+w.User+"/cost-basis")
	require.Equal(t, http.StatusOK, rec.Code)
	r := decode[domain.CostBasisReport](t, rec)
	assert.Len(t, r.ByAssetKey, 3)

	rec = get(t, h, "/v1/users/"+w.User+"/cost-basis?pool="+w.PoolB)
	require.Equal(t, http.StatusOK, rec.Code)
	r = decode[domain.CostBasisReport](t, rec)
	assert.Len(t, r.ByAssetKey, 1)
}

func TestBalances(t *testing.T) {
	h, w := setupRouter(t)

	rec := get(t, h, "/v1/users/"+w.User+"/balances?asset="+w.USDC+"&from=2024-06-01&to=2024-06-30")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[domain.BalanceHistory](t, rec)
	assert.NotEmpty(t, hist.Snapshots)

	rec = get(t, h, "/v1/users/"+w.User+"/balances?asset="+w.USDC+"&from=June")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "from", decode[map[string]string](t, rec)["field"])
}

func TestYieldAndSummary(t *testing.T) {
	h, w := setupRouter(t)

	rec := get(t, h, "/v1/users/"+w.User+"/yield?live="+w.USDC+":1.0")
	require.Equal(t, http.StatusOK, rec.Code)
	y := decode[domain.YieldReport](t, rec)
	assert.Equal(t, fixtures.HistoryDays-1, y.DaysActive)

	rec = get(t, h, "/v1/users/"+w.User+"/summary?lp_price=2.5")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[portfolio.Summary](t, rec)
	require.Len(t, s.Q4W.Positions, 1)
	assert.Greater(t, s.Q4W.Positions[0].UnlockedUSD, 0.0)
}

func TestQ4W(t *testing.T) {
	h, w := setupRouter(t)

	rec := get(t, h, "/v1/q4w?pool="+w.Backstop+"&status=locked&sort=shares&order=desc&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	r := decode[domain.Q4WReport](t, rec)
	require.Len(t, r.Positions, 1)
	assert.Equal(t, w.User, r.Positions[0].UserAddress)

	rec = get(t, h, "/v1/q4w?as_of=2024-05-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	r = decode[domain.Q4WReport](t, rec)
	assert.Equal(t, "2024-05-01T00:00:00Z", r.AsOf.Format(time.RFC3339))
}

func TestReportFormats(t *testing.T) {
	h, w := setupRouter(t)

	rec := get(t, h, "/v1/users/"+w.User+"/report?format=markdown&days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Portfolio Report")

	rec = get(t, h, "/v1/users/"+w.User+"/report?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "pool_id,asset_address,"))

	rec = get(t, h, "/v1/users/"+w.User+"/report?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	h, w := setupRouter(t)

	tests := []struct {
		name  string
		path  string
		field string
	}{
		{"bad user", "/v1/users/alice/cost-basis", "user"},
		{"bad timezone", "/v1/users/" + w.User + "/yield?tz=Mars/Olympus", "timezone"},
		{"bad live pair", "/v1/users/" + w.User + "/yield?live=USDC", "live"},
		{"negative live price", "/v1/users/" + w.User + "/yield?live=" + w.USDC + ":-1", "live"},
		{"bad order", "/v1/q4w?order=sideways", "order"},
		{"bad status", "/v1/q4w?status=pending", "status"},
		{"bad limit", "/v1/q4w?limit=ten", "limit"},
		{"bad as_of", "/v1/q4w?as_of=yesterday", "as_of"},
		{"bad lp price", "/v1/users/" + w.User + "/summary?lp_price=cheap", "lp_price"},
		{"NaN lp price", "/v1/q4w?lp_price=NaN", "lp_price"},
		{"infinite lp price", "/v1/users/" + w.User + "/summary?lp_price=Inf", "lp_price"},
		{"negative lp price", "/v1/q4w?lp_price=-2", "lp_price"},
		{"NaN min shares", "/v1/q4w?min_shares=NaN", "min_shares"},
		{"infinite min shares", "/v1/q4w?min_shares=%2BInf", "min_shares"},
		{"NaN live price", "/v1/users/" + w.User + "/yield?live=" + w.USDC + ":NaN", "live"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, decode[map[string]string](t, rec)["field"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, w := setupRouter(t)
	require.Equal(t, http.StatusOK, get(t, h, "/v1/users/"+w.User+"/cost-basis").Code)

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `api_report_total{kind="cost_basis",status="ok"} 1`)
}

type failingService struct {
	err error
}

func (f failingService) BalanceHistory(context.Context, portfolio.BalanceRequest) (domain.BalanceHistory, error) {
	return domain.BalanceHistory{}, f.err
}

func (f failingService) CostBasis(context.Context, portfolio.CostBasisRequest) (domain.CostBasisReport, error) {
	return domain.CostBasisReport{}, f.err
}

func (f failingService) Yield(context.Context, portfolio.YieldRequest) (domain.YieldReport, error) {
	return domain.YieldReport{}, f.err
}

func (f failingService) Q4W(context.Context, backstop.Query) (domain.Q4WReport, error) {
	return domain.Q4WReport{}, f.err
}

func (f failingService) Summary(context.Context, portfolio.SummaryRequest) (portfolio.Summary, error) {
	return portfolio.Summary{}, f.err
}

func (f failingService) SyncStatus(context.Context) (*storage.SyncStatus, error) {
	return nil, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", domain.Unavailable("list events", errors.New("connection refused")), http.StatusServiceUnavailable},
		{"pagination", storage.ErrPaginationLimit, http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(failingService{err: tt.err}, Options{Logger: logger.Nop()})
			rec := get(t, h, "/v1/q4w")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.err.Error())

			rec = get(t, h, "/status")
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	h := NewRouter(failingService{err: storage.ErrNotFound}, Options{Logger: logger.Nop()})
	rec := get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[StatusResponse](t, rec).Sync)
}
