// Package adjuster implements the recent-trade adjuster (C6): scans the
// trailing RECENT window for a key and proposes tighter risk parameters or a
// confidence penalty. Advisories never reject a trade outright.
package adjuster

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// MaxLookback is the largest trailing window considered.
const MaxLookback = 10

// LookbackMode selects how the trailing window is bounded.
type LookbackMode int

const (
	// ModeLive restricts the window to t-24h <= ts < t.
	ModeLive LookbackMode = iota
	// ModeBacktest takes the last MaxLookback vectors by sequence, ignoring
	// the 24h window relative to t (backtests replay historical time).
	ModeBacktest
)

// Recommendation identifies which adjuster rule fired.
type Recommendation string

const (
	RecommendationNone           Recommendation = ""
	RecommendationTighterRisk    Recommendation = "tighter_risk"
	RecommendationUltraTight     Recommendation = "ultra_tight_risk"
	RecommendationCautiousRisk   Recommendation = "cautious_risk"
	RecommendationHighCaution    Recommendation = "high_caution"
)

// Advisory is the adjuster's output: C5 applies it by overriding SL/TP when
// TighterSL/TighterTP are present and subtracting Penalty from confidence.
type Advisory struct {
	Recommendation    Recommendation
	TighterSL         *decimal.Decimal
	TighterTP         *decimal.Decimal
	ConfidencePenalty float64
	ConsecutiveLosses int
	RecentWinRate     float64
	TotalRecentTrades int
}

// window selects up to MaxLookback RECENT vectors, most-recent-first.
func window(recent []types.Vector, mode LookbackMode, t time.Time) []types.Vector {
	candidates := recent
	if mode == ModeLive {
		filtered := make([]types.Vector, 0, len(recent))
		cutoff := t.Add(-24 * time.Hour)
		for _, v := range recent {
			if !v.Timestamp.Before(cutoff) && v.Timestamp.Before(t) {
				filtered = append(filtered, v)
			}
		}
		candidates = filtered
	}

	// candidates arrive oldest-first (insertion order); reverse to
	// most-recent-first and cap at MaxLookback.
	n := len(candidates)
	if n > MaxLookback {
		candidates = candidates[n-MaxLookback:]
		n = MaxLookback
	}
	reversed := make([]types.Vector, n)
	for i := 0; i < n; i++ {
		reversed[i] = candidates[n-1-i]
	}
	return reversed
}

// Evaluate computes the advisory for key's trailing window as of t.
func Evaluate(recent []types.Vector, mode LookbackMode, t time.Time) Advisory {
	mostRecentFirst := window(recent, mode, t)

	consecutiveLosses := 0
	for _, v := range mostRecentFirst {
		if v.PnLPerContract.LessThanOrEqual(decimal.Zero) {
			consecutiveLosses++
			continue
		}
		break
	}

	losses := mostRecentFirst[:consecutiveLosses]
	avgMaxProfit := meanMaxProfit(losses)
	avgLossMag := meanLossMagnitude(losses)

	advisory := Advisory{
		ConsecutiveLosses: consecutiveLosses,
		TotalRecentTrades: len(mostRecentFirst),
		RecentWinRate:     winRate(mostRecentFirst),
	}

	switch {
	case consecutiveLosses >= 5 && avgMaxProfit > 20:
		tp := decimal.NewFromFloat(math.Ceil(avgMaxProfit / 10))
		sl := decimal.NewFromFloat(math.Ceil(0.7 * avgLossMag / 10))
		advisory.Recommendation = RecommendationTighterRisk
		advisory.TighterTP = &tp
		advisory.TighterSL = &sl
		advisory.ConfidencePenalty = 0

	case consecutiveLosses >= 3 && avgMaxProfit < 10:
		tp := decimal.NewFromFloat(math.Max(1, math.Ceil(avgMaxProfit/10)))
		sl := decimal.NewFromFloat(math.Max(1, math.Ceil(0.3*avgLossMag/10)))
		advisory.Recommendation = RecommendationUltraTight
		advisory.TighterTP = &tp
		advisory.TighterSL = &sl
		advisory.ConfidencePenalty = 0

	case consecutiveLosses >= 3 && avgMaxProfit >= 10 && avgMaxProfit <= 20:
		tp := decimal.NewFromFloat(math.Ceil(avgMaxProfit / 10))
		sl := decimal.NewFromFloat(math.Ceil(0.5 * avgLossMag / 10))
		advisory.Recommendation = RecommendationCautiousRisk
		advisory.TighterTP = &tp
		advisory.TighterSL = &sl
		advisory.ConfidencePenalty = 0.3

	case consecutiveLosses >= 2 && sameDirectionLossCount(losses) >= 2:
		// The lookback window is already scoped to a single (instrument,
		// direction) key, so this condition is trivially implied by
		// consecutiveLosses >= 2; mirrored as specified rather than
		// collapsed, since the source treats it as a distinct rule.
		advisory.Recommendation = RecommendationHighCaution
		advisory.ConfidencePenalty = 0.3

	case len(mostRecentFirst) >= 5 && advisory.RecentWinRate < 0.4:
		advisory.ConfidencePenalty = 0.3

	default:
		advisory.Recommendation = RecommendationNone
	}

	return advisory
}

func meanMaxProfit(vectors []types.Vector) float64 {
	if len(vectors) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vectors {
		sum += v.MaxProfit.InexactFloat64()
	}
	return sum / float64(len(vectors))
}

func meanLossMagnitude(vectors []types.Vector) float64 {
	if len(vectors) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vectors {
		sum += math.Abs(v.PnLPerContract.InexactFloat64())
	}
	return sum / float64(len(vectors))
}

func sameDirectionLossCount(losses []types.Vector) int {
	if len(losses) == 0 {
		return 0
	}
	direction := losses[0].Direction
	count := 0
	for _, v := range losses {
		if v.Direction == direction {
			count++
		}
	}
	return count
}

func winRate(vectors []types.Vector) float64 {
	if len(vectors) == 0 {
		return 0
	}
	wins := 0
	for _, v := range vectors {
		if v.PnLPerContract.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	return float64(wins) / float64(len(vectors))
}

// Apply folds the advisory into a confidence/SL/TP triple, flooring
// confidence at 0.1 per spec.
func Apply(advisory Advisory, confidence float64, sl, tp decimal.Decimal) (float64, decimal.Decimal, decimal.Decimal) {
	if advisory.TighterSL != nil {
		sl = *advisory.TighterSL
	}
	if advisory.TighterTP != nil {
		tp = *advisory.TighterTP
	}
	confidence -= advisory.ConfidencePenalty
	if confidence < 0.1 {
		confidence = 0.1
	}
	return confidence, sl, tp
}
