package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ls5986/habexa-backend/internal/clients/keepa"
	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
)

func newTestCatalogService(t *testing.T, provider *fakeProductAPI) (*CatalogService, rediscl.Store) {
	t.Helper()
	store := rediscl.NewMemoryStore()
	svc := NewCatalogService(newTestLogger(t), provider, store, newTestLimiter(t), keepa.ProductBatchLimit, 24*time.Hour)
	return svc, store
}

func TestCatalogFetch_SecondCallServedFromCache(t *testing.T) {
	provider := &fakeProductAPI{products: map[string]keepa.Product{
		"B000ABC123": {
			ASIN:              "B000ABC123",
			Title:             "Widget",
			Brand:             "Acme",
			SalesRank:         12000,
			SalesEstimate:     80,
			TrackedPriceCents: 2450,
		},
	}}
	svc, _ := newTestCatalogService(t, provider)

	out, err := svc.Fetch(context.Background(), []string{"B000ABC123"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	data := out["B000ABC123"]
	if data == nil || data.Snapshot.Title != "Widget" {
		t.Fatalf("expected catalog data, got %+v", data)
	}
	if data.Snapshot.TrackedPrice == nil || *data.Snapshot.TrackedPrice != 24.50 {
		t.Fatalf("expected tracked price 24.50, got %v", data.Snapshot.TrackedPrice)
	}
	if len(provider.batchLens) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.batchLens))
	}

	if _, err := svc.Fetch(context.Background(), []string{"B000ABC123"}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(provider.batchLens) != 1 {
		t.Fatalf("cached asin must not refetch, calls=%d", len(provider.batchLens))
	}
}

func TestCatalogFetch_ChunksToProviderLimit(t *testing.T) {
	provider := &fakeProductAPI{products: map[string]keepa.Product{}}
	svc, _ := newTestCatalogService(t, provider)

	asins := make([]string, 230)
	for i := range asins {
		asins[i] = fmt.Sprintf("B%09d", i)
	}
	if _, err := svc.Fetch(context.Background(), asins); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	total := 0
	for _, n := range provider.batchLens {
		if n > keepa.ProductBatchLimit {
			t.Fatalf("batch of %d exceeds limit %d", n, keepa.ProductBatchLimit)
		}
		total += n
	}
	if total != 230 {
		t.Fatalf("expected 230 asins requested, got %d", total)
	}
}

func TestCatalogFetch_FailedChunkLeavesItemsWithoutData(t *testing.T) {
	provider := &fakeProductAPI{err: &keepa.HTTPError{StatusCode: 500}}
	svc, _ := newTestCatalogService(t, provider)

	out, err := svc.Fetch(context.Background(), []string{"B000ABC123"})
	if err != nil {
		t.Fatalf("transient failure must not fail the call: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("failed chunk must produce no data, got %d entries", len(out))
	}
}

func TestCatalogFetch_CredentialFailureIsFatal(t *testing.T) {
	provider := &fakeProductAPI{err: &keepa.HTTPError{StatusCode: 401}}
	svc, _ := newTestCatalogService(t, provider)

	if _, err := svc.Fetch(context.Background(), []string{"B000ABC123"}); err == nil || !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestCatalogFetch_MarketStatsPreferRankHistory(t *testing.T) {
	now := time.Now().UTC()
	history := rankHistoryWithDrops(now, 5)
	provider := &fakeProductAPI{products: map[string]keepa.Product{
		"B000ABC123": {
			ASIN:          "B000ABC123",
			RankHistory:   history,
			SalesEstimate: 999,
		},
	}}
	svc, _ := newTestCatalogService(t, provider)

	out, err := svc.Fetch(context.Background(), []string{"B000ABC123"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	market := out["B000ABC123"].Market
	if !market.HasRankHistory {
		t.Fatalf("expected rank history flag")
	}
	if market.RankDrops30d != 5 {
		t.Fatalf("expected 5 rank drops, got %d", market.RankDrops30d)
	}
}

// rankHistoryWithDrops builds a recent (minute-epoch, rank) series containing
// exactly n rank improvements.
func rankHistoryWithDrops(now time.Time, n int) []int64 {
	const epochOffsetMinutes = 21564000
	const high, low = int64(150000), int64(100000)

	toEpoch := func(ts time.Time) int64 { return ts.Unix()/60 - epochOffsetMinutes }

	ts := now.Add(-20 * 24 * time.Hour)
	series := []int64{toEpoch(ts), high}
	for i := 0; i < n; i++ {
		ts = ts.Add(12 * time.Hour)
		series = append(series, toEpoch(ts), low)
		ts = ts.Add(12 * time.Hour)
		series = append(series, toEpoch(ts), high)
	}
	return series
}
