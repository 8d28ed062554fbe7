package services

import (
	"math"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func approxEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculateProfitability_PackSizeDividesCost(t *testing.T) {
	// 10.00 for a 5-pack sold individually at 20.00 with 5.00 fees.
	out := CalculateProfitability(10, 5, fptr(20), fptr(5))

	if !approxEq(out.CostPerUnit, 2) {
		t.Fatalf("expected cost_per_unit=2 got %v", out.CostPerUnit)
	}
	if out.Profit == nil || !approxEq(*out.Profit, 13) {
		t.Fatalf("expected profit=13 got %v", out.Profit)
	}
	if out.ROI == nil || !approxEq(*out.ROI, 650) {
		t.Fatalf("expected roi=650 got %v", out.ROI)
	}
	if out.Margin == nil || !approxEq(*out.Margin, 65) {
		t.Fatalf("expected margin=65 got %v", out.Margin)
	}
	if out.BreakEvenPrice == nil || !approxEq(*out.BreakEvenPrice, 7) {
		t.Fatalf("expected break_even=7 got %v", out.BreakEvenPrice)
	}
}

func TestCalculateProfitability_NoSellPriceYieldsNilMetrics(t *testing.T) {
	out := CalculateProfitability(10, 1, nil, fptr(3))

	if out.Profit != nil || out.ROI != nil || out.Margin != nil {
		t.Fatalf("expected nil profit metrics, got profit=%v roi=%v margin=%v", out.Profit, out.ROI, out.Margin)
	}
	// Break-even only needs cost and fees.
	if out.BreakEvenPrice == nil || !approxEq(*out.BreakEvenPrice, 13) {
		t.Fatalf("expected break_even=13 got %v", out.BreakEvenPrice)
	}
}

func TestCalculateProfitability_NoFeesYieldsNilMetrics(t *testing.T) {
	out := CalculateProfitability(10, 1, fptr(25), nil)

	if out.Profit != nil || out.ROI != nil || out.Margin != nil || out.BreakEvenPrice != nil {
		t.Fatalf("expected all metrics nil without fees")
	}
	if !approxEq(out.CostPerUnit, 10) {
		t.Fatalf("expected cost_per_unit=10 got %v", out.CostPerUnit)
	}
}

func TestCalculateProfitability_ZeroCostSkipsROI(t *testing.T) {
	out := CalculateProfitability(0, 1, fptr(10), fptr(2))

	if out.ROI != nil {
		t.Fatalf("expected nil roi with zero cost, got %v", *out.ROI)
	}
	if out.Profit == nil || !approxEq(*out.Profit, 8) {
		t.Fatalf("expected profit=8 got %v", out.Profit)
	}
	if out.Margin == nil || !approxEq(*out.Margin, 80) {
		t.Fatalf("expected margin=80 got %v", out.Margin)
	}
}

func TestCalculateProfitability_ZeroSellPriceSkipsMargin(t *testing.T) {
	out := CalculateProfitability(5, 1, fptr(0), fptr(1))

	if out.Margin != nil {
		t.Fatalf("expected nil margin with zero sell price, got %v", *out.Margin)
	}
	if out.Profit == nil || !approxEq(*out.Profit, -6) {
		t.Fatalf("expected profit=-6 got %v", out.Profit)
	}
}

func TestCalculateProfitability_InvalidPackSizeTreatedAsOne(t *testing.T) {
	out := CalculateProfitability(10, 0, fptr(20), fptr(5))
	if !approxEq(out.CostPerUnit, 10) {
		t.Fatalf("expected cost_per_unit=10 got %v", out.CostPerUnit)
	}
}

func TestCalculateProfitability_HigherSellPriceNeverLowersProfit(t *testing.T) {
	fees := fptr(4)
	prev := CalculateProfitability(12, 2, fptr(10), fees)
	for price := 11.0; price <= 50; price += 1 {
		cur := CalculateProfitability(12, 2, fptr(price), fees)
		if *cur.Profit < *prev.Profit {
			t.Fatalf("profit decreased from %v to %v at price %v", *prev.Profit, *cur.Profit, price)
		}
		prev = cur
	}
}

func TestCalculateProfitability_HigherUnitCostLowersProfitAndROI(t *testing.T) {
	price := fptr(30)
	fees := fptr(6)
	prev := CalculateProfitability(2, 1, price, fees)
	for cost := 3.0; cost <= 20; cost += 1 {
		cur := CalculateProfitability(cost, 1, price, fees)
		if *cur.Profit >= *prev.Profit {
			t.Fatalf("profit did not fall from %v at cost %v, got %v", *prev.Profit, cost, *cur.Profit)
		}
		if *cur.ROI >= *prev.ROI {
			t.Fatalf("roi did not fall from %v at cost %v, got %v", *prev.ROI, cost, *cur.ROI)
		}
		prev = cur
	}
}
