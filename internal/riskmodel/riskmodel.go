// Package riskmodel implements the fluid risk model (C5): four continuous
// probability components combined with fixed weights, deriving a confidence
// score and dollar-denominated stop-loss/take-profit suggestions.
package riskmodel

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// Weights are the fixed component weights from the specification.
type Weights struct {
	Equity    float64
	Regime    float64
	LossAvoid float64
	ProfitSim float64
}

// DefaultWeights returns the specification's fixed weighting.
func DefaultWeights() Weights {
	return Weights{Equity: 0.30, Regime: 0.25, LossAvoid: 0.25, ProfitSim: 0.20}
}

var regimeIndicators = []string{"atr_percentage", "atr_14", "volatility_ratio", "rsi_14", "volume_ratio"}

// ComponentScores holds the four raw component outputs for observability.
type ComponentScores struct {
	Equity    float64
	Regime    float64
	LossAvoid float64
	ProfitSim float64
}

// EquityInputs feeds the equity-curve protection component.
type EquityInputs struct {
	WinStreak       int
	LossStreak      int
	DrawdownPercent float64
	RecentEfficiency []float64
}

// EquityScore computes E per spec §4.4.1, starting from a neutral 0.6 and
// applying streak/drawdown/efficiency adjustments, clamped to [0,1].
func EquityScore(in EquityInputs) float64 {
	e := 0.6

	if in.WinStreak > 0 {
		e += 0.3 * utils.Sigmoid(0.5*(float64(in.WinStreak)-2))
	}
	if in.LossStreak > 0 {
		e -= 0.4 * (1 - math.Exp(-0.3*float64(in.LossStreak)))
	}
	if in.DrawdownPercent > 0 {
		e -= 0.2 * (1 - math.Exp(-in.DrawdownPercent/100))
	}
	if len(in.RecentEfficiency) >= 5 {
		window := in.RecentEfficiency
		if len(window) > 5 {
			window = window[len(window)-5:]
		}
		meanEff := utils.Mean(window)
		if meanEff < 0.5 {
			e -= 0.15 * (0.5 - meanEff)
		}
	}

	return utils.Clamp(e, 0, 1)
}

// defaultRegimeScore is returned when memory is too sparse to judge regime
// fit; intentional per the design notes, never replaced with NaN.
const defaultRegimeScore = 0.65

// RegimeScore computes R per spec §4.4.2. profitable must already be
// filtered to pnlPerContract > 0 vectors for the query's key.
func RegimeScore(features map[string]float64, profitable []types.Vector) float64 {
	if len(profitable) < 10 {
		return defaultRegimeScore
	}

	sum, count := 0.0, 0
	for _, indicator := range regimeIndicators {
		value, ok := features[indicator]
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		observed := observationsFor(profitable, indicator)
		if len(observed) < 5 {
			continue
		}
		mean := utils.Mean(observed)
		std := utils.StdDev(observed)
		sum += utils.GaussianMembership(value, mean, std)
		count++
	}

	if count == 0 {
		return defaultRegimeScore
	}
	return sum / float64(count)
}

func observationsFor(vectors []types.Vector, feature string) []float64 {
	out := make([]float64, 0, len(vectors))
	for _, v := range vectors {
		if val, ok := v.Features[feature]; ok && !math.IsNaN(val) && !math.IsInf(val, 0) {
			out = append(out, val)
		}
	}
	return out
}

// LossAvoidanceScore computes L per spec §4.4.3 from the key's unprofitable
// vectors (pnlPerContract <= 0).
func LossAvoidanceScore(features map[string]float64, unprofitable []types.Vector) float64 {
	if len(unprofitable) < 5 {
		return 0.8
	}

	type neighbor struct {
		distance float64
		pnlAbs   float64
	}
	neighbors := make([]neighbor, 0, len(unprofitable))
	for _, v := range unprofitable {
		d, n := distance(features, v.Features)
		if n == 0 {
			continue
		}
		neighbors = append(neighbors, neighbor{distance: d, pnlAbs: math.Abs(v.PnLPerContract.InexactFloat64())})
	}
	if len(neighbors) == 0 {
		return 0.8
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].distance < neighbors[j].distance })
	k := int(math.Floor(0.3 * float64(len(unprofitable))))
	if k > 10 {
		k = 10
	}
	if k < 1 {
		k = 1
	}
	if k > len(neighbors) {
		k = len(neighbors)
	}
	neighbors = neighbors[:k]

	weightSum, weightedMagnitude := 0.0, 0.0
	for _, nb := range neighbors {
		w := math.Exp(-nb.distance)
		m := math.Min(nb.pnlAbs/50, 1)
		weightSum += w
		weightedMagnitude += w * m
	}
	if weightSum == 0 {
		return 0.8
	}
	risk := weightedMagnitude / weightSum
	return math.Max(0.2, 1-risk)
}

// ProfitSimilarityScore computes P per spec §4.4.4 from the key's
// profitable vectors.
func ProfitSimilarityScore(features map[string]float64, profitable []types.Vector) float64 {
	if len(profitable) < 5 {
		return 0.6
	}

	type neighbor struct {
		distance float64
		pnlAbs   float64
	}
	neighbors := make([]neighbor, 0, len(profitable))
	for _, v := range profitable {
		d, n := distance(features, v.Features)
		if n == 0 {
			continue
		}
		neighbors = append(neighbors, neighbor{distance: d, pnlAbs: math.Abs(v.PnLPerContract.InexactFloat64())})
	}
	if len(neighbors) == 0 {
		return 0.6
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].distance < neighbors[j].distance })
	k := int(math.Floor(0.4 * float64(len(profitable))))
	if k > 15 {
		k = 15
	}
	if k < 1 {
		k = 1
	}
	if k > len(neighbors) {
		k = len(neighbors)
	}
	neighbors = neighbors[:k]

	weightSum, weightedMagnitude := 0.0, 0.0
	for _, nb := range neighbors {
		w := math.Exp(-2 * nb.distance)
		m := math.Min(nb.pnlAbs/50, 1)
		weightSum += w
		weightedMagnitude += w * m
	}
	if weightSum == 0 {
		return 0.6
	}
	similarity := weightedMagnitude / weightSum
	return math.Min(1, 2*similarity)
}

// distance computes the normalized Euclidean distance between query and
// candidate feature maps, skipping pairs missing in either side. n is the
// count of valid dimensions compared.
func distance(query, candidate map[string]float64) (d float64, n int) {
	sumSquares := 0.0
	for name, qv := range query {
		cv, ok := candidate[name]
		if !ok {
			continue
		}
		diff := qv - cv
		sumSquares += diff * diff
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return math.Sqrt(sumSquares / float64(n)), n
}

// Combine blends the four components into an overall confidence, clipped to
// [0.1, 1.0], and the boolean approval gate.
func Combine(w Weights, scores ComponentScores) (confidence float64, approved bool) {
	raw := w.Equity*scores.Equity + w.Regime*scores.Regime + w.LossAvoid*scores.LossAvoid + w.ProfitSim*scores.ProfitSim
	confidence = utils.Clamp(raw, 0.1, 1.0)
	approved = confidence >= 0.50
	return confidence, approved
}

// SLTP derives dollar-denominated stop-loss/take-profit distances from
// confidence and the equity component, per spec §4.4.5.
func SLTP(confidence, equityScore float64) (sl, tp decimal.Decimal) {
	c := utils.Sigmoid(10 * (confidence - 0.6))
	confMult := 1 + 0.5*c
	equityMult := 1 + 0.3*math.Exp(2*(equityScore-0.7))

	slRaw := math.Round(25 / confMult)
	tpRaw := math.Round(50 * confMult * equityMult)

	sl = decimal.NewFromFloat(utils.Clamp(slRaw, 15, 40))
	tp = decimal.NewFromFloat(utils.Clamp(tpRaw, 30, 100))
	return sl, tp
}
