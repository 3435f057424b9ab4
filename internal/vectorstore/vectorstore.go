// Package vectorstore implements the vector-store client (C12): a startup
// bulk loader for the append-only log of historical trade vectors, plus a
// fire-and-forget append path used after each in-memory update.
package vectorstore

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/risk-engine/pkg/types"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// Store is the vector-store contract: bulk read at startup with an optional
// instrument/since filter, and fire-and-forget append after each in-memory
// update.
type Store interface {
	LoadAll(since time.Time, instrument string) ([]types.Vector, error)
	Append(v types.Vector)
	Close()
}

// FileStore is a JSON-lines file-backed implementation for local/dev use. It
// mirrors the teacher's load-from-file-or-start-empty behavior: a missing
// file is treated as an empty store rather than an error.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex

	appendCh chan types.Vector
	wg       sync.WaitGroup
}

// NewFileStore returns a FileStore backed by dataDir/vectors.jsonl.
func NewFileStore(dataDir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &FileStore{
		path:     filepath.Join(dataDir, "vectors.jsonl"),
		logger:   logger,
		appendCh: make(chan types.Vector, 256),
	}
	s.wg.Add(1)
	go s.appendLoop()
	return s, nil
}

// LoadAll reads every vector from the backing file, filtering by since and
// instrument base when provided. A missing file yields an empty, non-error
// result — the engine starts with cold pattern memory.
func (s *FileStore) LoadAll(since time.Time, instrument string) ([]types.Vector, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := ""
	if instrument != "" {
		base = utils.NormalizeInstrumentBase(instrument)
	}

	var out []types.Vector
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v types.Vector
		if err := json.Unmarshal(line, &v); err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping malformed vector-store record", zap.Error(err))
			}
			continue
		}
		if !since.IsZero() && v.Timestamp.Before(since) {
			continue
		}
		if base != "" && v.InstrumentBase != base {
			continue
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Append enqueues v for asynchronous persistence. The in-memory update has
// already happened by the time this is called; a failure here is logged,
// never surfaced to the caller.
func (s *FileStore) Append(v types.Vector) {
	select {
	case s.appendCh <- v:
	default:
		if s.logger != nil {
			s.logger.Warn("vector-store append queue full, dropping record", zap.String("entrySignalId", v.EntrySignalID))
		}
	}
}

func (s *FileStore) appendLoop() {
	defer s.wg.Done()
	for v := range s.appendCh {
		s.writeOne(v)
	}
}

func (s *FileStore) writeOne(v types.Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("vector-store append failed to open file", zap.Error(err))
		}
		return
	}
	defer f.Close()

	encoded, err := json.Marshal(v)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("vector-store append failed to encode", zap.Error(err))
		}
		return
	}
	if _, err := f.Write(append(encoded, '\n')); err != nil && s.logger != nil {
		s.logger.Error("vector-store append failed to write", zap.Error(err))
	}
}

// Close stops the append worker after draining what is already queued.
func (s *FileStore) Close() {
	close(s.appendCh)
	s.wg.Wait()
}
