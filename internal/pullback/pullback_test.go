package pullback

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func TestCalculateFallsBackToTakeProfitWithNoHistory(t *testing.T) {
	tp := decimal.NewFromInt(40)
	details := Calculate(nil, tp)
	if details.ThresholdDropPercent != ThresholdDropPercent {
		t.Errorf("ThresholdDropPercent = %v, want %v", details.ThresholdDropPercent, ThresholdDropPercent)
	}
	if details.SoftFloor.LessThan(decimal.NewFromInt(10)) {
		t.Errorf("SoftFloor = %v, want at least the floor of 10", details.SoftFloor)
	}
	if details.MaxProfitEstimate.IsZero() {
		t.Error("expected a non-zero max profit estimate derived from take-profit")
	}
}

func TestCalculateUsesProfitableHistory(t *testing.T) {
	profitable := []types.Vector{
		{PnLPerContract: decimal.NewFromInt(40), MaxProfit: decimal.NewFromInt(60)},
		{PnLPerContract: decimal.NewFromInt(60), MaxProfit: decimal.NewFromInt(80)},
	}
	details := Calculate(profitable, decimal.NewFromInt(40))
	if details.MaxProfitEstimate.LessThan(decimal.NewFromInt(60)) {
		t.Errorf("MaxProfitEstimate = %v, want close to mean max profit (70)", details.MaxProfitEstimate)
	}
	if details.StepSize.GreaterThan(details.SoftFloor) {
		t.Errorf("expected SoftFloor (%v) >= StepSize (%v)", details.SoftFloor, details.StepSize)
	}
}
