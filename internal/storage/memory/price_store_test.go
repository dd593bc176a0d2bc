package memory

import (
	"context"
	"errors"
	"testing"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

func TestPriceStore_ListUpToOrdering(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	day := calendar.MustParseDate

	err := store.InsertBulk(ctx, []domain.PriceObservation{
		{TokenAddress: "xlm", PriceDate: day("2024-01-02"), USDPrice: 0.12},
		{TokenAddress: "usdc", PriceDate: day("2024-01-01"), USDPrice: 1.00},
		{TokenAddress: "xlm", PriceDate: day("2024-01-01"), USDPrice: 0.11},
		{TokenAddress: "xlm", PriceDate: day("2024-01-01"), USDPrice: 0.50}, // late duplicate
		{TokenAddress: "xlm", PriceDate: day("2024-02-01"), USDPrice: 0.20},
		{TokenAddress: "eurc", PriceDate: day("2024-01-01"), USDPrice: 1.10},
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.ListUpTo(ctx, []string{"xlm", "usdc"}, day("2024-01-31"))
	if err != nil {
		t.Fatalf("ListUpTo failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(got))
	}

	want := []struct {
		token string
		price float64
	}{{"usdc", 1.00}, {"xlm", 0.11}, {"xlm", 0.50}, {"xlm", 0.12}}
	for i, w := range want {
		if got[i].TokenAddress != w.token || got[i].USDPrice != w.price {
			t.Errorf("row %d: got %s %.2f, want %s %.2f", i, got[i].TokenAddress, got[i].USDPrice, w.token, w.price)
		}
	}
	if got[1].Seq >= got[2].Seq {
		t.Errorf("duplicates must be ordered by seq, got %d then %d", got[1].Seq, got[2].Seq)
	}
}

func TestPriceStore_DuplicateSeq(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	p := domain.PriceObservation{Seq: 3, TokenAddress: "xlm", PriceDate: calendar.MustParseDate("2024-01-01"), USDPrice: 1}

	if err := store.InsertBulk(ctx, []domain.PriceObservation{p}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, []domain.PriceObservation{p}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Auto-assigned seqs skip the explicit one.
	p.Seq = 0
	if err := store.InsertBulk(ctx, []domain.PriceObservation{p, p, p}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	got, _ := store.ListUpTo(ctx, []string{"xlm"}, calendar.MustParseDate("2024-01-01"))
	seen := map[int64]bool{}
	for _, r := range got {
		if seen[r.Seq] {
			t.Errorf("seq %d assigned twice", r.Seq)
		}
		seen[r.Seq] = true
	}
}

func TestPriceStore_InvalidInput(t *testing.T) {
	err := NewPriceStore().InsertBulk(context.Background(), []domain.PriceObservation{{USDPrice: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
