// Package pullback implements the RecPullback calculator (C7): trailing-exit
// parameters derived from matched historical profits and the fluid risk
// model's take-profit suggestion.
package pullback

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// ThresholdDropPercent is the constant drop threshold for the trailing exit.
const ThresholdDropPercent = 15

// Calculate derives softFloor/stepSize/maxProfitEstimate/thresholdDropPercent
// from profitable vectors matched for the query's key, falling back to the
// fluid risk model's take-profit when no profitable history exists.
func Calculate(profitable []types.Vector, takeProfit decimal.Decimal) types.PullbackDetails {
	avgProfit := meanPnLPerContract(profitable)
	if avgProfit.IsZero() && len(profitable) == 0 {
		avgProfit = takeProfit
	}

	avgMaxProfit := meanPositiveMaxProfit(profitable)
	if avgMaxProfit.IsZero() {
		avgMaxProfit = avgProfit.Mul(decimal.NewFromFloat(1.5))
	}

	stepSize := decimal.NewFromFloat(math.Max(roundTo(avgProfit.Mul(decimal.NewFromFloat(0.25))), 5))
	softFloor := decimal.NewFromFloat(math.Max(roundTo(avgProfit.Mul(decimal.NewFromFloat(0.4))), 10))
	maxProfitEstimate := decimal.NewFromFloat(roundTo(avgMaxProfit))

	return types.PullbackDetails{
		SoftFloor:            softFloor,
		StepSize:             stepSize,
		MaxProfitEstimate:     maxProfitEstimate,
		ThresholdDropPercent: ThresholdDropPercent,
	}
}

func meanPnLPerContract(vectors []types.Vector) decimal.Decimal {
	if len(vectors) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range vectors {
		sum = sum.Add(v.PnLPerContract)
	}
	return sum.Div(decimal.NewFromInt(int64(len(vectors))))
}

func meanPositiveMaxProfit(vectors []types.Vector) decimal.Decimal {
	sum := decimal.Zero
	count := 0
	for _, v := range vectors {
		if v.MaxProfit.GreaterThan(decimal.Zero) {
			sum = sum.Add(v.MaxProfit)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(count)))
}

func roundTo(d decimal.Decimal) float64 {
	return math.Round(d.InexactFloat64())
}
