package riskmodel

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/internal/equity"
	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// BiasRejectConfidence and BiasRejectReason are the canned confidence and
// reason returned when directional-bias rejection fires (spec §4.4.6).
const (
	BiasRejectConfidence = 0.3
	BiasRejectReason     = "directional bias rejection"
)

// BiasRejectSL and BiasRejectTP are the canned SL/TP for a bias rejection.
var (
	BiasRejectSL = decimal.NewFromInt(25)
	BiasRejectTP = decimal.NewFromInt(35)
)

// directionSummary is one side's aggregate over the bias window.
type directionSummary struct {
	winRate    float64
	avgWin     float64
	tradeCount int
}

func summarize(records []equity.Record, direction types.Direction) directionSummary {
	var total, wins int
	var winSum float64
	for _, r := range records {
		if r.Direction != direction {
			continue
		}
		total++
		pnl := r.PnLPerContract.InexactFloat64()
		if pnl > 0 {
			wins++
			winSum += pnl
		}
	}
	s := directionSummary{tradeCount: total}
	if total > 0 {
		s.winRate = float64(wins) / float64(total)
	}
	if wins > 0 {
		s.avgWin = winSum / float64(wins)
	}
	return s
}

func (s directionSummary) score() float64 {
	return s.winRate * s.avgWin * float64(s.tradeCount)
}

func opposite(d types.Direction) types.Direction {
	if d == types.DirectionLong {
		return types.DirectionShort
	}
	return types.DirectionLong
}

// BiasCheck evaluates the directional-bias probabilistic rejection over the
// supplied 7-day window of equity records for the instrument. rng may be a
// seeded source for deterministic tests; the spec only requires
// E[rejection] = p with independent draws.
func BiasCheck(records []equity.Record, requestDirection types.Direction, rng *rand.Rand) (rejected bool, probability float64) {
	requestSide := summarize(records, requestDirection)
	oppositeSide := summarize(records, opposite(requestDirection))

	requestScore := requestSide.score()
	oppositeScore := oppositeSide.score()

	var p float64
	switch {
	case oppositeScore <= 0:
		return false, 0
	case requestScore <= 0:
		// The opposite side infinitely dominates: a zero-win request side
		// against active opposite-side performance is the maximum possible
		// imbalance, not an absence of one.
		p = 0.35
	case oppositeScore < 1.5*requestScore:
		return false, 0
	default:
		ratio := oppositeScore / requestScore
		biasStrength := 0.2 * (ratio - 1)
		if biasStrength > 0.4 {
			biasStrength = 0.4
		}
		p = 2 * biasStrength
		if p > 0.35 {
			p = 0.35
		}
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return rng.Float64() < p, p
}
