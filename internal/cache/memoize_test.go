package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type counter struct{ hits, misses int }

func (c *counter) CacheHit(string)  { c.hits++ }
func (c *counter) CacheMiss(string) { c.misses++ }

type report struct {
	User  string  `json:"user"`
	Total float64 `json:"total"`
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func TestMemoize_ComputesOnceThenHits(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, 0)
	obs := &counter{}
	calls := 0
	compute := func(context.Context) (report, error) {
		calls++
		return report{User: "u", Total: 42}, nil
	}

	for i := 0; i < 3; i++ {
		got, cached, err := Memoize(ctx, c, obs, "yield", "k", time.Minute, compute)
		if err != nil {
			t.Fatal(err)
		}
		if got.Total != 42 || cached != (i > 0) {
			t.Errorf("call %d: got %+v cached=%v", i, got, cached)
		}
	}
	if calls != 1 || obs.hits != 2 || obs.misses != 1 {
		t.Errorf("calls=%d hits=%d misses=%d", calls, obs.hits, obs.misses)
	}
}

func TestMemoize_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, 0)
	boom := errors.New("store unavailable")

	_, _, err := Memoize(ctx, c, nil, "yield", "k", time.Minute, func(context.Context) (report, error) {
		return report{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed computation was cached")
	}
}

func TestMemoize_BrokenCacheFallsThrough(t *testing.T) {
	got, cached, err := Memoize(context.Background(), brokenCache{}, nil, "q4w", "k", time.Minute, func(context.Context) (report, error) {
		return report{User: "u"}, nil
	})
	if err != nil || cached || got.User != "u" {
		t.Errorf("got %+v cached=%v err=%v", got, cached, err)
	}
}

func TestMemoize_NilCache(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, _, _ = Memoize(context.Background(), nil, nil, "q4w", "k", 0, func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestKey(t *testing.T) {
	if got := Key("balance", "GABC", 2024, "UTC"); got != "blend:balance:GABC:2024:UTC" {
		t.Errorf("Key = %q", got)
	}
}
