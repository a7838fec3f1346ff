package escrow

import "github.com/shopspring/decimal"

// Thresholds for the escrow recommendation.
type Thresholds struct {
	// HighValue combined with at least medium risk recommends escrow.
	HighValue decimal.Decimal
	// VeryHighValue recommends escrow regardless of risk.
	VeryHighValue decimal.Decimal
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighValue:     decimal.NewFromInt(1000),
		VeryHighValue: decimal.NewFromInt(5000),
	}
}

// Recommend is advisory only; nothing enforces it.
func Recommend(amount decimal.Decimal, risk RiskLevel, th Thresholds) Recommendation {
	rec := Recommendation{Recommended: true, RiskLevel: risk}
	switch {
	case risk.Elevated():
		rec.Reason = "high risk transaction - escrow strongly recommended"
	case amount.GreaterThan(th.HighValue) && risk.AtLeast(RiskMedium):
		rec.Reason = "high value transaction with moderate risk"
	case amount.GreaterThan(th.VeryHighValue):
		rec.Reason = "high value transaction - escrow recommended for buyer protection"
	default:
		rec.Recommended = false
		rec.Reason = "low risk — escrow optional"
	}
	return rec
}
