package services

import (
	"context"
	"testing"
	"time"

	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
)

func newTestFeeService(t *testing.T, provider *fakeMarketplace) (*FeeService, rediscl.Store) {
	t.Helper()
	store := rediscl.NewMemoryStore()
	svc := NewFeeService(newTestLogger(t), provider, store, newTestLimiter(t), 7*24*time.Hour)
	return svc, store
}

func TestFeeBucket_GroupsNearbyPrices(t *testing.T) {
	if feeBucket(19.99) != feeBucket(20.01) {
		t.Fatalf("prices a few cents apart should share a bucket")
	}
	if feeBucket(19.99) == feeBucket(22.50) {
		t.Fatalf("prices dollars apart should not share a bucket")
	}
}

func TestFeeFetch_CachesByPriceBucket(t *testing.T) {
	provider := &fakeMarketplace{}
	svc, _ := newTestFeeService(t, provider)

	out, err := svc.Fetch(context.Background(), []FeeRequest{{ASIN: "B000ABC123", Price: 19.99}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if out["B000ABC123"] == nil || out["B000ABC123"].TotalFees <= 0 {
		t.Fatalf("expected fee snapshot, got %+v", out["B000ABC123"])
	}
	if provider.feesReqs != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.feesReqs)
	}

	// A near-identical price lands in the same bucket and hits the cache.
	if _, err := svc.Fetch(context.Background(), []FeeRequest{{ASIN: "B000ABC123", Price: 20.01}}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if provider.feesReqs != 1 {
		t.Fatalf("bucketed price must hit the cache, calls=%d", provider.feesReqs)
	}

	// A materially different price is a different bucket.
	if _, err := svc.Fetch(context.Background(), []FeeRequest{{ASIN: "B000ABC123", Price: 29.99}}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if provider.feesReqs != 2 {
		t.Fatalf("new price bucket must refetch, calls=%d", provider.feesReqs)
	}
}

func TestFeeFetch_FailedEstimateSkipsItem(t *testing.T) {
	provider := &fakeMarketplace{feesErr: &spapi.HTTPError{StatusCode: 503}}
	svc, _ := newTestFeeService(t, provider)

	out, err := svc.Fetch(context.Background(), []FeeRequest{{ASIN: "B000ABC123", Price: 10}})
	if err != nil {
		t.Fatalf("transient failure must not fail the batch: %v", err)
	}
	if _, ok := out["B000ABC123"]; ok {
		t.Fatalf("failed item must carry no snapshot")
	}
}

func TestFeeFetch_CredentialFailureIsFatal(t *testing.T) {
	provider := &fakeMarketplace{feesErr: &spapi.HTTPError{StatusCode: 403}}
	svc, _ := newTestFeeService(t, provider)

	_, err := svc.Fetch(context.Background(), []FeeRequest{{ASIN: "B000ABC123", Price: 10}})
	if err == nil || !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestFeeFetch_IgnoresInvalidRequests(t *testing.T) {
	provider := &fakeMarketplace{}
	svc, _ := newTestFeeService(t, provider)

	out, err := svc.Fetch(context.Background(), []FeeRequest{
		{ASIN: "", Price: 10},
		{ASIN: "B000ABC123", Price: 0},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(out) != 0 || provider.feesReqs != 0 {
		t.Fatalf("invalid requests must be dropped, out=%d calls=%d", len(out), provider.feesReqs)
	}
}
