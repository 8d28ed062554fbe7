package services

import (
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
)

// CalculateProfitability is pure and deterministic: no I/O, no clock, and no
// panics. Zero denominators yield nil metrics rather than errors.
//
//	profit = sell_price - (unit_cost / pack_size) - total_fees
//	roi    = profit / (unit_cost / pack_size) * 100
//	margin = profit / sell_price * 100
func CalculateProfitability(unitCost float64, packSize int, sellPrice, totalFees *float64) types.Profitability {
	if packSize < 1 {
		packSize = 1
	}
	costPerUnit := unitCost / float64(packSize)

	out := types.Profitability{CostPerUnit: costPerUnit}

	if totalFees != nil {
		breakEven := costPerUnit + *totalFees
		out.BreakEvenPrice = &breakEven
	}

	if sellPrice == nil || totalFees == nil {
		return out
	}

	profit := *sellPrice - costPerUnit - *totalFees
	out.Profit = &profit

	if costPerUnit != 0 {
		roi := profit / costPerUnit * 100
		out.ROI = &roi
	}
	if *sellPrice != 0 {
		margin := profit / *sellPrice * 100
		out.Margin = &margin
	}
	return out
}
