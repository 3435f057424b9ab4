// Package intake implements outcome intake (C8): the completed-trade path
// that updates equity state, inserts into pattern memory, and invalidates
// the affected graduated range table.
package intake

import (
	"sync"

	"github.com/atlas-desktop/risk-engine/internal/equity"
	"github.com/atlas-desktop/risk-engine/internal/memory"
	"github.com/atlas-desktop/risk-engine/internal/riskerrors"
	"github.com/atlas-desktop/risk-engine/internal/vector"
	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// VectorAppender persists an accepted vector for durability across
// restarts. The production wiring is vectorstore.FileStore.Append.
type VectorAppender interface {
	Append(v types.Vector)
}

// CalibrationEmitter receives a predicted-vs-actual bucket for a completed
// trade whose entry signal had a prior recorded decision. Failures here are
// recoverable: the outcome itself has already been applied.
type CalibrationEmitter interface {
	EmitCalibration(entrySignalID string, predictedConfidence float64, predictedApproved bool, actual types.Vector)
}

// DecisionLookup resolves the prior decision recorded for an entry signal,
// if any.
type DecisionLookup func(entrySignalID string) (predictedConfidence float64, predictedApproved bool, ok bool)

// Intake is the outcome-intake pipeline bound to shared memory and equity
// state.
type Intake struct {
	memory          *memory.Memory
	equity          *equity.State
	lookupDecision  DecisionLookup
	calibration     CalibrationEmitter
	store           VectorAppender
	forceStoreAll   bool

	mu        sync.Mutex
	processed map[string]struct{} // entry_signal_id -> already applied
}

// New returns an Intake pipeline. lookupDecision, calibration, and store may
// all be nil: lookupDecision/calibration being nil skips step 5 (calibration
// emission); store being nil skips durable persistence (memory-only).
func New(mem *memory.Memory, eq *equity.State, forceStoreAll bool, lookupDecision DecisionLookup, calibration CalibrationEmitter, store VectorAppender) *Intake {
	return &Intake{
		memory:         mem,
		equity:         eq,
		forceStoreAll:  forceStoreAll,
		lookupDecision: lookupDecision,
		calibration:    calibration,
		store:          store,
		processed:      make(map[string]struct{}),
	}
}

// Result reports what Apply did, for the HTTP layer's response body.
type Result struct {
	Accepted bool
	Dropped  bool // noise-filtered, not an error
	Reason   string
}

// Apply processes a completed-trade outcome record. It validates required
// fields, guards against duplicate entry_signal_id processing, classifies
// importance, appends to pattern memory, updates equity state, and emits a
// calibration record when a prior decision exists.
func (in *Intake) Apply(o types.Outcome) (Result, error) {
	if !o.EntrySignalIDProvided || o.EntrySignalID == "" {
		return Result{}, riskerrors.OutcomeMalformed("entry_signal_id missing")
	}
	if !o.PnLProvided {
		return Result{}, riskerrors.OutcomeMalformed("pnl missing")
	}
	if o.Timestamp == nil {
		return Result{}, riskerrors.BarTimestampRequired
	}

	in.mu.Lock()
	if _, seen := in.processed[o.EntrySignalID]; seen {
		in.mu.Unlock()
		return Result{Accepted: false, Reason: "duplicate entry_signal_id"}, nil
	}
	in.processed[o.EntrySignalID] = struct{}{}
	in.mu.Unlock()

	quantity := 1
	if o.Quantity != nil {
		quantity = *o.Quantity
	}

	v := vector.Build(vector.BuildParams{
		EntrySignalID: o.EntrySignalID,
		Instrument:    o.Instrument,
		Direction:     o.Direction,
		Timestamp:     o.Timestamp.Time,
		Features:      o.Features,
		PnL:           o.PnL,
		Quantity:      quantity,
		ExitReason:    o.ExitReason,
		MaxProfit:     o.MaxProfit,
		MaxLoss:       o.MaxLoss,
		ProfitByBar:   o.ProfitByBar,
	})

	if vector.IsNoise(v) && !in.forceStoreAll {
		return Result{Dropped: true, Reason: "noise-filtered"}, nil
	}

	if err := in.memory.Insert(v); err != nil {
		return Result{}, err
	}
	in.equity.Record(v)
	if in.store != nil {
		in.store.Append(v)
	}

	if in.lookupDecision != nil && in.calibration != nil {
		if predictedConfidence, predictedApproved, ok := in.lookupDecision(o.EntrySignalID); ok {
			in.calibration.EmitCalibration(o.EntrySignalID, predictedConfidence, predictedApproved, v)
		}
	}

	return Result{Accepted: true}, nil
}
