package backstop

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// Config tunes queue accounting. Zero fields take the package defaults.
type Config struct {
	Epsilon          float64
	LockWindow       time.Duration
	DefaultShareRate float64
}

// Loader builds Q4W reports from the event store.
type Loader struct {
	pager *storage.Paginator
	cfg   Config
}

// NewLoader creates a loader.
func NewLoader(events storage.EventStore, cfg Config, pageSize, maxPages int) *Loader {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.LockWindow <= 0 {
		cfg.LockWindow = DefaultLockWindow
	}
	if cfg.DefaultShareRate <= 0 {
		cfg.DefaultShareRate = DefaultShareRate
	}
	return &Loader{pager: storage.NewPaginator(events, pageSize, maxPages), cfg: cfg}
}

// Report compiles q, reads queue and share-supply events up to q.AsOf
// concurrently, and returns one page of positions.
func (l *Loader) Report(ctx context.Context, q Query) (domain.Q4WReport, error) {
	p, err := q.Compile()
	if err != nil {
		return domain.Q4WReport{}, err
	}
	q = p.Query()
	until := q.AsOf.Add(time.Nanosecond)

	var queue, supply []domain.Event
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := l.pager.All(gctx, storage.EventFilter{
			UserAddress: q.User,
			Source:      domain.SourceBackstop,
			PoolID:      q.Pool,
			Actions:     domain.Q4WActions,
			To:          until,
		})
		if err != nil {
			return fmt.Errorf("load queue events: %w", err)
		}
		queue = events
		return nil
	})
	g.Go(func() error {
		events, err := l.pager.All(gctx, storage.EventFilter{
			Source:  domain.SourceBackstop,
			PoolID:  q.Pool,
			Actions: domain.ShareSupplyActions,
			To:      until,
		})
		if err != nil {
			return fmt.Errorf("load share supply events: %w", err)
		}
		supply = events
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Q4WReport{}, err
	}

	entries := Replay(queue, l.cfg.Epsilon, l.cfg.LockWindow)
	rates := ComputeShareRates(supply, l.cfg.DefaultShareRate, l.cfg.Epsilon)
	positions := Aggregate(entries, q.AsOf, rates, q.LPPriceUSD, l.cfg.Epsilon)
	return p.Run(positions), nil
}
