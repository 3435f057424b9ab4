package vectorstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func TestLoadAllMissingFileYieldsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()

	vectors, err := store.LoadAll(time.Time{}, "")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for a missing file, got %v", vectors)
	}
}

func TestAppendThenLoadAllRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	v := types.Vector{
		EntrySignalID:  "sig-1",
		Instrument:     "ES",
		InstrumentBase: "ES",
		Direction:      types.DirectionLong,
		Timestamp:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PnL:            decimal.NewFromInt(50),
	}
	store.Append(v)
	store.Close()

	reopened, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.LoadAll(time.Time{}, "")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 loaded vector, got %d", len(loaded))
	}
	if loaded[0].EntrySignalID != "sig-1" {
		t.Errorf("EntrySignalID = %q, want sig-1", loaded[0].EntrySignalID)
	}
}

func TestLoadAllFiltersByInstrumentAndSince(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Append(types.Vector{EntrySignalID: "a", InstrumentBase: "ES", Timestamp: early})
	store.Append(types.Vector{EntrySignalID: "b", InstrumentBase: "ES", Timestamp: late})
	store.Append(types.Vector{EntrySignalID: "c", InstrumentBase: "NQ", Timestamp: late})
	store.Close()

	reopened, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	loaded, err := reopened.LoadAll(since, "ES")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 1 || loaded[0].EntrySignalID != "b" {
		t.Fatalf("expected only vector b to survive the filter, got %+v", loaded)
	}
}

func TestFileStorePathIsVectorsJSONL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()
	if got, want := store.path, filepath.Join(dir, "vectors.jsonl"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
