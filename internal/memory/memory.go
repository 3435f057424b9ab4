// Package memory implements the process-wide pattern memory (C2): an
// in-memory store mapping (instrumentBase, direction) to ordered vectors,
// partitioned into TRAINING and RECENT sets.
package memory

import (
	"sort"
	"sync"

	"github.com/atlas-desktop/risk-engine/internal/riskerrors"
	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// keyState holds one key's partitions behind its own lock so operations on
// different keys never contend.
type keyState struct {
	mu       sync.RWMutex
	training []types.Vector
	recent   []types.Vector
	combined []types.Vector // cached, timestamp-ordered view; rebuilt on append
	version  int            // bumped on every insert; range tables compare against this
}

func newKeyState() *keyState {
	return &keyState{}
}

func (k *keyState) rebuildCombinedLocked() {
	merged := make([]types.Vector, 0, len(k.training)+len(k.recent))
	merged = append(merged, k.training...)
	merged = append(merged, k.recent...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	k.combined = merged
}

// Memory is the process-wide pattern memory. The zero value is not usable;
// construct with New.
type Memory struct {
	mu   sync.RWMutex
	keys map[types.Key]*keyState
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{keys: make(map[types.Key]*keyState)}
}

func (m *Memory) stateFor(key types.Key) *keyState {
	m.mu.RLock()
	ks, ok := m.keys[key]
	m.mu.RUnlock()
	if ok {
		return ks
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ks, ok := m.keys[key]; ok {
		return ks
	}
	ks = newKeyState()
	m.keys[key] = ks
	return ks
}

// Insert appends vector into the partition its DataType selects, under the
// vector's key. It triggers table invalidation for the key by advancing the
// key's version counter; the graduated range table package observes this on
// its next read.
func (m *Memory) Insert(v types.Vector) error {
	if v.Instrument == "" {
		return riskerrors.FieldMissing("instrument")
	}
	if v.Direction == "" {
		return riskerrors.FieldMissing("direction")
	}
	if v.Timestamp.IsZero() {
		return riskerrors.FieldMissing("timestamp")
	}

	key := types.Key{InstrumentBase: v.InstrumentBase, Direction: v.Direction}
	ks := m.stateFor(key)

	ks.mu.Lock()
	defer ks.mu.Unlock()
	switch v.DataType {
	case types.DataTypeRecent:
		ks.recent = append(ks.recent, v)
	case types.DataTypeOutOfSample:
		// out-of-sample vectors are stored in the training partition, so
		// they are returned by VectorsFor and feed range statistics like
		// any other training vector.
		ks.training = append(ks.training, v)
	default:
		ks.training = append(ks.training, v)
	}
	ks.rebuildCombinedLocked()
	ks.version++
	return nil
}

// VectorsFor returns both partitions concatenated in timestamp order.
func (m *Memory) VectorsFor(key types.Key) []types.Vector {
	m.mu.RLock()
	ks, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	out := make([]types.Vector, len(ks.combined))
	copy(out, ks.combined)
	return out
}

// RecentFor returns the RECENT partition only, in insertion order.
func (m *Memory) RecentFor(key types.Key) []types.Vector {
	m.mu.RLock()
	ks, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	out := make([]types.Vector, len(ks.recent))
	copy(out, ks.recent)
	return out
}

// Version returns the key's current version, bumped on every insert. The
// graduated range table package uses this to detect invalidation.
func (m *Memory) Version(key types.Key) int {
	m.mu.RLock()
	ks, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.version
}

// Load bulk-loads vectors at startup. Each vector is validated with Insert;
// malformed records are skipped and counted rather than aborting the load.
func (m *Memory) Load(vectors []types.Vector) (loaded int, skipped int) {
	for _, v := range vectors {
		if err := m.Insert(v); err != nil {
			skipped++
			continue
		}
		loaded++
	}
	return loaded, skipped
}

// Keys returns all keys with at least one vector, for stats reporting.
func (m *Memory) Keys() []types.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Key, 0, len(m.keys))
	for k := range m.keys {
		out = append(out, k)
	}
	return out
}

// Size returns the total vector count across both partitions for key.
func (m *Memory) Size(key types.Key) int {
	m.mu.RLock()
	ks, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.training) + len(ks.recent)
}
