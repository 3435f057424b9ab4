package confidence

import (
	"testing"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func tableWithRange(feature string, q10, q25, q50, q75, q90 float64) *types.RangeTable {
	return &types.RangeTable{
		Ranges: map[string]types.FeatureRange{
			feature: {Feature: feature, Q10: q10, Q25: q25, Q50: q50, Q75: q75, Q90: q90},
		},
	}
}

func TestScoreNilTableYieldsZeroFeatures(t *testing.T) {
	result := Score(map[string]float64{"rsi_14": 50}, nil)
	if result.ValidFeatures != 0 {
		t.Errorf("ValidFeatures = %d, want 0", result.ValidFeatures)
	}
	if result.Approved {
		t.Error("expected Approved false with no graduated features")
	}
}

func TestScoreMonotoneAcrossZones(t *testing.T) {
	table := tableWithRange("rsi_14", 10, 20, 50, 80, 90)

	optimal := Score(map[string]float64{"rsi_14": 50}, table)
	good := Score(map[string]float64{"rsi_14": 15}, table)
	poor := Score(map[string]float64{"rsi_14": 5}, table)

	if !(optimal.OverallConfidence > good.OverallConfidence && good.OverallConfidence > poor.OverallConfidence) {
		t.Errorf("expected optimal > good > poor, got %v, %v, %v",
			optimal.OverallConfidence, good.OverallConfidence, poor.OverallConfidence)
	}
}

func TestScoreSkipsFeatureAbsentFromTable(t *testing.T) {
	table := tableWithRange("rsi_14", 10, 20, 50, 80, 90)
	result := Score(map[string]float64{"volume": 1000}, table)
	if result.ValidFeatures != 0 {
		t.Errorf("ValidFeatures = %d, want 0 for an unmodeled feature", result.ValidFeatures)
	}
}

func TestClassifyBoundaryPrefersTighterZone(t *testing.T) {
	fr := types.FeatureRange{Q10: 10, Q25: 20, Q50: 50, Q75: 80, Q90: 90}
	if got := classify(20, fr); got != types.ZoneOptimal {
		t.Errorf("boundary value at Q25 classified as %v, want optimal", got)
	}
	if got := classify(80, fr); got != types.ZoneOptimal {
		t.Errorf("boundary value at Q75 classified as %v, want optimal", got)
	}
}
