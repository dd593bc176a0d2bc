// Package portfolio is the request-scoped entry point: it validates input,
// runs the engines against the stores, memoizes results and records metrics.
package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"blend-portfolio/internal/backstop"
	"blend-portfolio/internal/balance"
	"blend-portfolio/internal/cache"
	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/costbasis"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/observability"
	"blend-portfolio/internal/storage"
	"blend-portfolio/internal/yield"
)

// Report kinds, used for cache keys and metric labels.
const (
	KindBalance   = "balance"
	KindCostBasis = "cost_basis"
	KindQ4W       = "q4w"
	KindYield     = "yield"
	KindSummary   = "summary"
)

// Options tune the service. Zero values take package defaults.
type Options struct {
	DefaultTimezone string
	PageSize        int
	MaxPages        int
	NoiseThreshold  float64
	Backstop        backstop.Config
	Tokens          yield.Tokens
	CacheTTL        time.Duration
}

// Service computes reports. It holds no per-request state.
type Service struct {
	stores  storage.Stores
	cache   cache.Cache
	metrics *observability.Metrics
	log     zerolog.Logger
	opts    Options
	now     func() time.Time

	balances      *balance.Loader
	reconstructor *balance.Reconstructor
	costs         *costbasis.Loader
	queues        *backstop.Loader
	yields        *yield.Loader
}

// New wires a service. c and m may be nil. Stores are used as given; wrap
// them with observability.InstrumentStores for query metrics.
func New(stores storage.Stores, c cache.Cache, m *observability.Metrics, log zerolog.Logger, opts Options) *Service {
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	if opts.NoiseThreshold == 0 {
		opts.NoiseThreshold = balance.DefaultNoiseThreshold
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Service{
		stores:        stores,
		cache:         c,
		metrics:       m,
		log:           log,
		opts:          opts,
		now:           time.Now,
		balances:      balance.NewLoader(stores.Events, stores.Rates, opts.PageSize, opts.MaxPages),
		reconstructor: balance.New(opts.NoiseThreshold),
		costs:         costbasis.NewLoader(stores.Events, stores.Prices, opts.PageSize, opts.MaxPages),
		queues:        backstop.NewLoader(stores.Events, opts.Backstop, opts.PageSize, opts.MaxPages),
		yields:        yield.NewLoader(stores.Events, stores.Prices, opts.Tokens, opts.PageSize, opts.MaxPages),
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) timezone(tz string) string {
	if tz == "" {
		return s.opts.DefaultTimezone
	}
	return tz
}

// today resolves tz and returns the current local date in it.
func (s *Service) today(tz string) (calendar.Date, error) {
	loc, err := calendar.LoadLocation(tz)
	if err != nil {
		return calendar.Date{}, &domain.ValidationError{Field: "timezone", Value: tz, Reason: "unknown IANA zone"}
	}
	return calendar.Today(s.now(), loc), nil
}

// run memoizes compute under key and records metrics.
func run[T any](ctx context.Context, s *Service, kind, key string, compute func(context.Context) (T, error)) (T, error) {
	started := time.Now()
	log := s.log.With().Str("report", kind).Logger()

	var obs cache.Observer
	if s.metrics != nil {
		obs = s.metrics
	}
	v, cached, err := cache.Memoize(ctx, s.cache, obs, kind, key, s.opts.CacheTTL, compute)

	if s.metrics != nil {
		s.metrics.RecordReport(kind, started, err)
	}
	switch {
	case err == nil:
		log.Debug().Bool("cached", cached).Dur("took", time.Since(started)).Msg("report computed")
	case errors.Is(err, domain.ErrValidation):
		log.Debug().Err(err).Msg("rejected request")
	case errors.Is(err, domain.ErrUnavailable):
		log.Error().Err(err).Msg("store unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debug().Err(err).Msg("request cancelled")
	default:
		log.Error().Err(err).Msg("report failed")
	}
	return v, err
}

func (s *Service) noteGaps(kind string, warnings []domain.DataGapWarning) {
	if len(warnings) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordGaps(warnings)
	}
	s.log.Warn().Str("report", kind).Int("gaps", len(warnings)).Msg("resolved data gaps by fallback")
}

// SyncStatus reports how far ingestion has progressed.
func (s *Service) SyncStatus(ctx context.Context) (*storage.SyncStatus, error) {
	if s.stores.Sync == nil {
		return nil, storage.ErrNotFound
	}
	return s.stores.Sync.LastSynced(ctx)
}

// Summary bundles the wallet-level reports computed together.
type Summary struct {
	CostBasis domain.CostBasisReport `json:"costBasis"`
	Yield     domain.YieldReport     `json:"yield"`
	Q4W       domain.Q4WReport       `json:"q4w"`
}

// SummaryRequest scopes Summary.
type SummaryRequest struct {
	UserAddress      string
	Timezone         string
	Live             map[string]float64
	PoolBalances     map[string]float64
	BackstopBalances map[string]float64
	LPPriceUSD       *float64
}

// Summary computes cost basis, yield and the wallet's Q4W positions
// concurrently. The first failure cancels the others and nothing partial
// is returned.
func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if err := domain.ValidateUser(req.UserAddress); err != nil {
		return Summary{}, err
	}
	tz := s.timezone(req.Timezone)
	if _, err := s.today(tz); err != nil {
		return Summary{}, err
	}

	started := time.Now()
	var out Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.CostBasis(gctx, CostBasisRequest{UserAddress: req.UserAddress, Timezone: tz, Live: req.Live})
		out.CostBasis = r
		return err
	})
	g.Go(func() error {
		r, err := s.Yield(gctx, YieldRequest{
			UserAddress:      req.UserAddress,
			Timezone:         tz,
			Live:             req.Live,
			PoolBalances:     req.PoolBalances,
			BackstopBalances: req.BackstopBalances,
		})
		out.Yield = r
		return err
	})
	g.Go(func() error {
		r, err := s.Q4W(gctx, backstop.Query{User: req.UserAddress, LPPriceUSD: req.LPPriceUSD, Limit: backstop.MaxLimit})
		out.Q4W = r
		return err
	})
	err := g.Wait()
	if s.metrics != nil {
		s.metrics.RecordReport(KindSummary, started, err)
	}
	if err != nil {
		return Summary{}, err
	}
	return out, nil
}
