// Package confidence implements the range confidence engine (C4): scoring a
// feature vector against a graduated range table.
package confidence

import (
	"fmt"
	"math"
	"sort"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

const (
	zoneOptimalScore = 0.90
	zoneGoodScore    = 0.65
	zonePoorScore    = 0.20

	approvalThreshold   = 0.55
	minValidFeatures    = 3
)

// FeatureResult is one feature's contribution to the aggregate confidence.
type FeatureResult struct {
	Confidence float64
	Zone       types.Zone
}

// Result is the range confidence engine's full output for one query.
type Result struct {
	OverallConfidence float64
	ValidFeatures     int
	PerFeature        map[string]FeatureResult
	Approved          bool
	Reason            string
}

// Score scores features against table. A feature absent from the table, or
// carrying a non-finite value, is skipped rather than penalized.
func Score(features map[string]float64, table *types.RangeTable) Result {
	perFeature := make(map[string]FeatureResult)
	counts := map[types.Zone]int{types.ZoneOptimal: 0, types.ZoneGood: 0, types.ZonePoor: 0}

	if table != nil {
		for name, value := range features {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				continue
			}
			fr, ok := table.Ranges[name]
			if !ok {
				continue
			}
			zone := classify(value, fr)
			perFeature[name] = FeatureResult{Confidence: zoneScore(zone), Zone: zone}
			counts[zone]++
		}
	}

	validFeatures := len(perFeature)
	if validFeatures == 0 {
		return Result{
			PerFeature: perFeature,
			Approved:   false,
			Reason:     "no graduated features applicable",
		}
	}

	sum := 0.0
	for _, fr := range perFeature {
		sum += fr.Confidence
	}
	overall := sum / float64(validFeatures)
	approved := overall >= approvalThreshold && validFeatures >= minValidFeatures

	return Result{
		OverallConfidence: overall,
		ValidFeatures:     validFeatures,
		PerFeature:        perFeature,
		Approved:          approved,
		Reason:            reasonFor(counts),
	}
}

// classify assigns the zone a value falls into. Boundary values belong to
// the tighter zone: optimal beats good beats poor.
func classify(value float64, fr types.FeatureRange) types.Zone {
	if value >= fr.Q25 && value <= fr.Q75 {
		return types.ZoneOptimal
	}
	if (value >= fr.Q10 && value < fr.Q25) || (value > fr.Q75 && value <= fr.Q90) {
		return types.ZoneGood
	}
	return types.ZonePoor
}

func zoneScore(z types.Zone) float64 {
	switch z {
	case types.ZoneOptimal:
		return zoneOptimalScore
	case types.ZoneGood:
		return zoneGoodScore
	default:
		return zonePoorScore
	}
}

func reasonFor(counts map[types.Zone]int) string {
	names := make([]string, 0, len(counts))
	for z := range counts {
		names = append(names, string(z))
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", counts[types.Zone(name)], name)
	}
	return out
}
