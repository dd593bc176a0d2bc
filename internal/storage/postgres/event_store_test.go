package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestEventStore_InsertAndList(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewEventStore(pool)

	exp := t0.Add(17 * 24 * time.Hour)
	events := []*domain.Event{
		{
			Source: domain.SourcePool, ActionType: domain.ActionSupply,
			UserAddress: "u1", PoolID: "p1", AssetAddress: "usdc",
			AmountTokens: ptr(100.5), Units: ptr(98.0),
			LedgerClosedAt: t0, TxHash: "tx1",
		},
		{
			Source: domain.SourceBackstop, ActionType: domain.ActionQueueWithdrawal,
			UserAddress: "u1", PoolID: "p1",
			Shares: ptr(40.0), Q4WExp: &exp,
			LedgerClosedAt: t0.Add(time.Hour),
		},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.ListEvents(ctx, storage.EventFilter{UserAddress: "u1"}, storage.EventCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.SourcePool, got[0].Source)
	assert.Equal(t, domain.ActionSupply, got[0].ActionType)
	assert.Equal(t, "usdc", got[0].AssetAddress)
	assert.InDelta(t, 100.5, *got[0].AmountTokens, 1e-9)
	assert.InDelta(t, 98.0, *got[0].Units, 1e-9)
	assert.Nil(t, got[0].Shares)
	assert.Equal(t, "tx1", got[0].TxHash)
	assert.True(t, got[0].LedgerClosedAt.Equal(t0))

	assert.Equal(t, "", got[1].AssetAddress)
	require.NotNil(t, got[1].Q4WExp)
	assert.True(t, got[1].Q4WExp.Equal(exp))
	assert.InDelta(t, 40.0, got[1].ShareAmount(), 1e-9)
}

func TestEventStore_FilterAndCursor(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewEventStore(pool)

	var events []*domain.Event
	for i := 0; i < 7; i++ {
		action := domain.ActionSupply
		if i%2 == 1 {
			action = domain.ActionBorrow
		}
		events = append(events, &domain.Event{
			Source: domain.SourcePool, ActionType: action,
			UserAddress: "u1", PoolID: "p1", AssetAddress: "usdc",
			AmountTokens:   ptr(float64(i)),
			LedgerClosedAt: t0.Add(time.Duration(i/2) * time.Hour), // pairs share a timestamp
		})
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	all, err := storage.NewPaginator(store, 2, 10).All(ctx, storage.EventFilter{UserAddress: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i, e := range all {
		assert.InDelta(t, float64(i), e.Tokens(), 1e-9, "event %d out of order", i)
	}

	borrows, err := store.ListEvents(ctx, storage.EventFilter{
		Actions: []domain.ActionType{domain.ActionBorrow},
		From:    t0.Add(time.Hour),
		To:      t0.Add(3 * time.Hour),
	}, storage.EventCursor{}, 10)
	require.NoError(t, err)
	assert.Len(t, borrows, 2)
}

func TestEventStore_FirstEventAt(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewEventStore(pool)

	_, err := store.FirstEventAt(ctx, storage.EventFilter{UserAddress: "u1"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{
		{Source: domain.SourcePool, ActionType: domain.ActionSupply, UserAddress: "u1", PoolID: "p1", AssetAddress: "usdc", LedgerClosedAt: t0.Add(48 * time.Hour)},
		{Source: domain.SourcePool, ActionType: domain.ActionSupply, UserAddress: "u1", PoolID: "p1", AssetAddress: "usdc", LedgerClosedAt: t0},
	}))

	first, err := store.FirstEventAt(ctx, storage.EventFilter{UserAddress: "u1", From: t0.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.True(t, first.Equal(t0), "range must be ignored, got %v", first)
}

func TestEventStore_DuplicateID(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewEventStore(pool)

	e := &domain.Event{ID: 10, Source: domain.SourcePool, ActionType: domain.ActionSupply, UserAddress: "u1", PoolID: "p1", LedgerClosedAt: t0}
	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{e}))
	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.Event{e}), storage.ErrDuplicateKey)

	// The sequence was advanced past the explicit id.
	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{{Source: domain.SourcePool, ActionType: domain.ActionRepay, UserAddress: "u1", PoolID: "p1", LedgerClosedAt: t0}}))
	got, err := store.ListEvents(ctx, storage.EventFilter{}, storage.EventCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Greater(t, got[1].ID, int64(10))
}

func TestEventStore_UnavailableAfterClose(t *testing.T) {
	pool := newTestPool(t)

	store := NewEventStore(pool)
	pool.Close()

	_, err := store.ListEvents(context.Background(), storage.EventFilter{}, storage.EventCursor{}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
