package backstop

import (
	"errors"
	"math"
	"testing"
	"time"

	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/strkey"
)

var (
	poolX = strkey.ContractFromSeed("backstop-x")
	poolY = strkey.ContractFromSeed("backstop-y")
	alice = strkey.AccountFromSeed("alice")
	bob   = strkey.AccountFromSeed("bob")
	carol = strkey.AccountFromSeed("carol")
)

func position(user, pool string, locked, unlocked float64, unlock *time.Time) domain.Q4WPosition {
	return domain.Q4WPosition{
		UserAddress:    user,
		PoolID:         pool,
		LockedShares:   locked,
		UnlockedShares: unlocked,
		HasUnlocked:    unlocked > 0,
		EarliestUnlock: unlock,
		LockedLP:       locked,
		UnlockedLP:     unlocked,
	}
}

func fixturePositions() []domain.Q4WPosition {
	return []domain.Q4WPosition{
		position(alice, poolX, 10, 0, expAt(5)),
		position(bob, poolX, 0, 3, nil),
		position(carol, poolX, 40, 0, expAt(2)),
		position(alice, poolY, 1, 20, expAt(9)),
	}
}

func users(rows []domain.Q4WPosition) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.UserAddress + "/" + r.PoolID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPipeline_UnlockedFirstThenUnlockTime(t *testing.T) {
	p, err := Query{AsOf: t0}.Compile()
	if err != nil {
		t.Fatal(err)
	}
	got := users(p.Page(fixturePositions()))
	want := []string{alice + "/" + poolY, bob + "/" + poolX, carol + "/" + poolX, alice + "/" + poolX}
	if !equal(got, want) {
		t.Errorf("order = %v\nwant    %v", got, want)
	}
}

func TestPipeline_SortBySharesDesc(t *testing.T) {
	p, err := Query{AsOf: t0, SortBy: SortShares, Desc: true}.Compile()
	if err != nil {
		t.Fatal(err)
	}
	got := users(p.Page(fixturePositions()))
	want := []string{alice + "/" + poolY, bob + "/" + poolX, carol + "/" + poolX, alice + "/" + poolX}
	if !equal(got, want) {
		t.Errorf("order = %v\nwant    %v", got, want)
	}
}

func TestPipeline_CountMatchesPagedRows(t *testing.T) {
	queries := []Query{
		{AsOf: t0},
		{AsOf: t0, Status: StatusLocked},
		{AsOf: t0, Status: StatusUnlocked},
		{AsOf: t0, Pool: poolX, MinShares: 5},
		{AsOf: t0, User: alice},
		{AsOf: t0, Pool: poolY, User: bob},
	}
	for _, q := range queries {
		p, err := q.Compile()
		if err != nil {
			t.Fatal(err)
		}
		all := fixturePositions()
		var paged int
		for off := 0; ; off++ {
			pq := p.Query()
			pq.Offset, pq.Limit = off, 1
			pp, err := pq.Compile()
			if err != nil {
				t.Fatal(err)
			}
			if len(pp.Page(all)) == 0 {
				break
			}
			paged++
		}
		if c := p.Count(all); c != paged {
			t.Errorf("%+v: Count = %d, paged rows = %d", q, c, paged)
		}
	}
}

func TestPipeline_RunSummaryCoversAllMatches(t *testing.T) {
	p, err := Query{AsOf: t0, Pool: poolX, Limit: 1}.Compile()
	if err != nil {
		t.Fatal(err)
	}
	r := p.Run(fixturePositions())

	if len(r.Positions) != 1 || r.TotalCount != 3 {
		t.Fatalf("got %d rows / total %d, want 1 / 3", len(r.Positions), r.TotalCount)
	}
	if r.Summary.TotalUsers != 3 || r.Summary.TotalLocked != 50 || r.Summary.TotalUnlocked != 3 {
		t.Errorf("summary = %+v", r.Summary)
	}
	if !r.AsOf.Equal(t0) {
		t.Errorf("AsOf = %v", r.AsOf)
	}
}

func TestPipeline_OffsetPastEnd(t *testing.T) {
	p, _ := Query{AsOf: t0, Offset: 10}.Compile()
	if rows := p.Page(fixturePositions()); rows == nil || len(rows) != 0 {
		t.Errorf("got %v, want empty non-nil page", rows)
	}
}

func TestQuery_Compile(t *testing.T) {
	p, err := Query{AsOf: t0, Limit: 10_000}.Compile()
	if err != nil {
		t.Fatal(err)
	}
	if q := p.Query(); q.Limit != MaxLimit || q.Status != StatusAll || q.SortBy != SortUnlockTime {
		t.Errorf("defaults not applied: %+v", q)
	}

	bad := []Query{
		{},
		{AsOf: t0, Pool: alice},
		{AsOf: t0, User: "nobody"},
		{AsOf: t0, Status: "pending"},
		{AsOf: t0, SortBy: "size"},
		{AsOf: t0, MinShares: -1},
		{AsOf: t0, MinShares: math.NaN()},
		{AsOf: t0, MinShares: math.Inf(1)},
		{AsOf: t0, LPPriceUSD: domain.Float(math.NaN())},
		{AsOf: t0, LPPriceUSD: domain.Float(-0.5)},
		{AsOf: t0, Offset: -1},
	}
	for _, q := range bad {
		if _, err := q.Compile(); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Compile(%+v) = %v, want validation error", q, err)
		}
	}
}
