// Package vector builds and validates the immutable trade records pattern
// memory and the graduated range tables are made of.
package vector

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// trainingCutoffYear is the last calendar year whose outcomes are treated as
// historical baseline rather than current-run observations.
const trainingCutoffYear = 2024

// Key derives the pattern-memory key for an instrument/direction pair,
// normalizing the instrument to its base symbol.
func Key(instrument string, direction types.Direction) types.Key {
	return types.Key{
		InstrumentBase: utils.NormalizeInstrumentBase(instrument),
		Direction:      direction,
	}
}

// SanitizeFeatures drops non-finite values on ingress, returning a fresh map
// safe to store on a Vector.
func SanitizeFeatures(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for name, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[name] = v
	}
	return out
}

// DataTypeFor derives a vector's partition from its event-time timestamp:
// year <= 2024 is historical baseline (TRAINING), everything else is a
// current-run observation (RECENT), unless explicitly overridden.
func DataTypeFor(ts time.Time) types.DataType {
	if ts.Year() <= trainingCutoffYear {
		return types.DataTypeTraining
	}
	return types.DataTypeRecent
}

// BuildParams carries the fields needed to construct a Vector from a
// completed-trade outcome record.
type BuildParams struct {
	EntrySignalID string
	Instrument    string
	Direction     types.Direction
	EntryType     string
	Timestamp     time.Time
	Features      map[string]float64
	PnL           decimal.Decimal
	Quantity      int
	ExitReason    types.ExitReason
	MaxProfit     decimal.Decimal
	MaxLoss       decimal.Decimal
	ProfitByBar   map[int]float64
	DataTypeOverride *types.DataType
}

// Build constructs an immutable Vector, computing pnlPerContract, the
// profitable flag, holding-bar count, and a good-exit heuristic. Quantity is
// floored at 1 per the data model invariant (quantity >= 1).
func Build(p BuildParams) types.Vector {
	qty := p.Quantity
	if qty < 1 {
		qty = 1
	}
	pnlPerContract := p.PnL.Div(decimal.NewFromInt(int64(qty)))

	dataType := DataTypeFor(p.Timestamp)
	if p.DataTypeOverride != nil {
		dataType = *p.DataTypeOverride
	}

	holdingBars := 0
	if p.ProfitByBar != nil {
		holdingBars = len(p.ProfitByBar)
	}

	wasGoodExit := p.ExitReason == types.ExitReasonTakeProfit ||
		(p.ExitReason != types.ExitReasonStopLoss && p.PnL.GreaterThan(decimal.Zero))

	v := types.Vector{
		EntrySignalID:  p.EntrySignalID,
		Instrument:     p.Instrument,
		InstrumentBase: utils.NormalizeInstrumentBase(p.Instrument),
		Direction:      p.Direction,
		EntryType:      p.EntryType,
		DataType:       dataType,
		Features:       SanitizeFeatures(p.Features),
		Timestamp:      p.Timestamp,
		PnL:            p.PnL,
		Quantity:       qty,
		PnLPerContract: pnlPerContract,
		Profitable:     pnlPerContract.GreaterThan(decimal.Zero),
		ExitReason:     p.ExitReason,
		MaxProfit:      p.MaxProfit,
		MaxLoss:        p.MaxLoss,
		HoldingBars:    holdingBars,
		WasGoodExit:    wasGoodExit,
		ProfitByBar:    p.ProfitByBar,
	}
	v.Importance = ClassifyImportance(v)
	return v
}

// ClassifyImportance scores how much a completed trade is worth learning
// from. Noise trades (tiny pnl, tiny excursions) return 0 and are dropped by
// the outcome-intake caller unless force-store-all is set. Small-loss
// clusters are elevated above small-win clusters of the same magnitude
// because bleed dominates account health over time.
//
// Event-time only: no wall-clock recency bonus is applied here, unlike the
// source this is adapted from.
func ClassifyImportance(v types.Vector) float64 {
	absPnL := v.PnL.Abs().InexactFloat64()
	maxExcursion := math.Max(v.MaxProfit.Abs().InexactFloat64(), v.MaxLoss.Abs().InexactFloat64())

	if absPnL < 20 && maxExcursion < 30 {
		return 0
	}

	pnlFloat := v.PnL.InexactFloat64()
	isSmallLossCluster := pnlFloat < 0 && absPnL >= 10 && absPnL <= 40

	score := utils.Clamp(absPnL/100, 0, 1)
	if isSmallLossCluster {
		score = utils.Clamp(score+0.2, 0, 1)
	}
	return score
}

// IsNoise reports whether a completed trade should be dropped from pattern
// memory absent a force-store-all override.
func IsNoise(v types.Vector) bool {
	return v.Importance <= 0
}
