package balance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/rates"
	"blend-portfolio/internal/storage"
)

// Request identifies one balance history.
type Request struct {
	UserAddress  string
	AssetAddress string
	Timezone     string
	Range        calendar.Range
	Today        calendar.Date
	Live         map[string]domain.LiveBalance
}

// Validate checks identifiers, timezone and range before any store is read.
func (r Request) Validate() (*time.Location, error) {
	if err := domain.ValidateUser(r.UserAddress); err != nil {
		return nil, err
	}
	if err := domain.ValidateAsset(r.AssetAddress); err != nil {
		return nil, err
	}
	loc, err := calendar.LoadLocation(r.Timezone)
	if err != nil {
		return nil, &domain.ValidationError{Field: "timezone", Value: r.Timezone, Reason: "unknown IANA zone"}
	}
	if r.Range.From.IsZero() || r.Range.To.IsZero() || r.Range.To.Before(r.Range.From) {
		return nil, &domain.ValidationError{Field: "range", Value: r.Range.From.String() + ".." + r.Range.To.String(), Reason: "empty or inverted"}
	}
	return loc, nil
}

// Loader gathers the events and rates a reconstruction needs.
type Loader struct {
	events storage.EventStore
	rates  storage.RateIndexStore
	pager  *storage.Paginator
}

// NewLoader creates a loader reading through the given page size and ceiling.
func NewLoader(events storage.EventStore, rateStore storage.RateIndexStore, pageSize, maxPages int) *Loader {
	return &Loader{
		events: events,
		rates:  rateStore,
		pager:  storage.NewPaginator(events, pageSize, maxPages),
	}
}

// Load validates req and reads the full (user, asset) history up to the end
// of the range, then per-pool rates and first-event times concurrently.
func (l *Loader) Load(ctx context.Context, req Request) (Input, error) {
	loc, err := req.Validate()
	if err != nil {
		return Input{}, err
	}

	filter := storage.EventFilter{
		UserAddress:  req.UserAddress,
		Source:       domain.SourcePool,
		AssetAddress: req.AssetAddress,
		Actions:      domain.PositionActions,
		To:           calendar.NextDayStart(req.Range.To, loc),
	}
	events, err := l.pager.All(ctx, filter)
	if err != nil {
		return Input{}, fmt.Errorf("load position events: %w", err)
	}

	seen := make(map[string]bool)
	var pools []string
	for _, e := range events {
		if !seen[e.PoolID] {
			seen[e.PoolID] = true
			pools = append(pools, e.PoolID)
		}
	}
	sort.Strings(pools)

	in := Input{
		UserAddress:  req.UserAddress,
		AssetAddress: req.AssetAddress,
		Timezone:     loc.String(),
		Location:     loc,
		Range:        req.Range,
		Events:       events,
		Rates:        make(map[string]*rates.Resolver, len(pools)),
		FirstEvents:  make(map[string]time.Time, len(pools)),
		Today:        req.Today,
		Live:         req.Live,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, pool := range pools {
		g.Go(func() error {
			r, err := rates.Load(gctx, l.rates, pool, req.AssetAddress, req.Range.To, loc)
			if err != nil {
				return err
			}
			mu.Lock()
			in.Rates[pool] = r
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			pf := filter
			pf.PoolID = pool
			first, err := l.events.FirstEventAt(gctx, pf)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("first event for pool %s: %w", pool, err)
			}
			mu.Lock()
			in.FirstEvents[pool] = first
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Input{}, err
	}
	return in, nil
}
