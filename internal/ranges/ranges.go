// Package ranges implements the graduated range table (C3): per-key,
// per-feature profitable-quantile bands rebuilt lazily as pattern memory
// grows.
package ranges

import (
	"sync"
	"sync/atomic"

	"github.com/atlas-desktop/risk-engine/internal/memory"
	"github.com/atlas-desktop/risk-engine/pkg/types"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// MinProfitableSamples is the minimum number of profitable vectors in a key
// required before a table can be built at all.
const MinProfitableSamples = 10

// MinFeatureSamples is the minimum number of finite observations a feature
// needs, across the profitable set, to be graduated into the table.
const MinFeatureSamples = 10

var quantilePoints = [5]float64{0.10, 0.25, 0.50, 0.75, 0.90}

// tableState guards one key's lazily-built table with a single-flight lock:
// concurrent readers block on the first builder and then observe the fresh
// table, never a torn one.
type tableState struct {
	mu    sync.Mutex
	table *types.RangeTable
}

// Tables owns the lazily-built range table per key.
type Tables struct {
	memory *memory.Memory
	tick   int64

	mu     sync.Mutex
	states map[types.Key]*tableState
}

// New returns a Tables bound to memory, from which profitable vectors are
// drawn on build.
func New(mem *memory.Memory) *Tables {
	return &Tables{memory: mem, states: make(map[types.Key]*tableState)}
}

func (t *Tables) stateFor(key types.Key) *tableState {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.states[key]
	if !ok {
		ts = &tableState{}
		t.states[key] = ts
	}
	return ts
}

// NotReadyErr marks a key with fewer than MinProfitableSamples profitable
// vectors; the caller falls back to rule-based scoring.
type NotReadyErr struct {
	Key types.Key
}

func (e *NotReadyErr) Error() string {
	return "graduated range table not ready for key " + e.Key.String()
}

// Get returns the current table for key, building or rebuilding it if
// memory has advanced past the version the cached table was built from.
func (t *Tables) Get(key types.Key) (*types.RangeTable, error) {
	ts := t.stateFor(key)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	currentVersion := t.memory.Version(key)
	if ts.table != nil && ts.table.BuiltVersion == currentVersion {
		return ts.table, nil
	}

	table, err := t.build(key, currentVersion)
	if err != nil {
		return nil, err
	}
	ts.table = table
	return table, nil
}

func (t *Tables) build(key types.Key, version int) (*types.RangeTable, error) {
	vectors := t.memory.VectorsFor(key)

	profitable := make([]types.Vector, 0, len(vectors))
	for _, v := range vectors {
		if v.Profitable {
			profitable = append(profitable, v)
		}
	}
	if len(profitable) < MinProfitableSamples {
		return nil, &NotReadyErr{Key: key}
	}

	featureValues := make(map[string][]float64)
	for _, v := range profitable {
		for name, value := range v.Features {
			featureValues[name] = append(featureValues[name], value)
		}
	}

	ranges := make(map[string]types.FeatureRange)
	for name, values := range featureValues {
		if len(values) < MinFeatureSamples {
			continue
		}
		ranges[name] = buildFeatureRange(name, values)
	}

	return &types.RangeTable{
		Key:          key,
		Ranges:       ranges,
		VectorCount:  len(profitable),
		BuiltVersion: version,
		BuiltAt:      atomic.AddInt64(&t.tick, 1),
	}, nil
}

func buildFeatureRange(name string, values []float64) types.FeatureRange {
	fr := types.FeatureRange{
		Feature: name,
		Samples: len(values),
		Mean:    utils.Mean(values),
		StdDev:  utils.StdDev(values),
	}
	fr.Q10 = utils.QuantileFloorIndex(values, quantilePoints[0])
	fr.Q25 = utils.QuantileFloorIndex(values, quantilePoints[1])
	fr.Q50 = utils.QuantileFloorIndex(values, quantilePoints[2])
	fr.Q75 = utils.QuantileFloorIndex(values, quantilePoints[3])
	fr.Q90 = utils.QuantileFloorIndex(values, quantilePoints[4])
	return fr
}
