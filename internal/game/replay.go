package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayVersion = 1

// Replay is an ordered list of snapshots of one match with a playback cursor.
type Replay struct {
	GameID string

	mu     sync.RWMutex
	states []*Snapshot
	cursor int
}

// NewReplay creates an empty replay.
func NewReplay(gameID string) *Replay {
	return &Replay{GameID: gameID}
}

// Record appends a snapshot.
func (r *Replay) Record(snapshot *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, snapshot)
}

// Rewind moves the cursor back to the first snapshot.
func (r *Replay) Rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Next returns the snapshot under the cursor and advances it, or nil at the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.states) {
		return nil
	}
	s := r.states[r.cursor]
	r.cursor++
	return s
}

// Previous steps the cursor back and returns that snapshot, or nil at the start.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == 0 {
		return nil
	}
	r.cursor--
	return r.states[r.cursor]
}

// At returns the snapshot at index, or nil when out of range.
func (r *Replay) At(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.states) {
		return nil
	}
	return r.states[index]
}

// Len returns the number of recorded snapshots.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

type replayHeader struct {
	GameID     string
	SavedAt    time.Time
	Version    int
	StateCount int
}

func replayPath(dir, gameID string) string {
	return filepath.Join(dir, gameID+".replay")
}

// Save writes the replay to dir as a gzipped gob stream.
func (r *Replay) Save(dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create replay directory: %w", err)
	}
	file, err := os.Create(replayPath(dir, r.GameID))
	if err != nil {
		return fmt.Errorf("failed to create replay file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		GameID:     r.GameID,
		SavedAt:    time.Now(),
		Version:    replayVersion,
		StateCount: len(r.states),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode replay header: %w", err)
	}
	for i, s := range r.states {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode snapshot %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplay reads a replay previously written by Save.
func LoadReplay(dir, gameID string) (*Replay, error) {
	file, err := os.Open(replayPath(dir, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode replay header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}

	replay := NewReplay(header.GameID)
	for i := 0; i < header.StateCount; i++ {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", i, err)
		}
		replay.states = append(replay.states, &s)
	}
	return replay, nil
}

// ReplayRecorder keeps in-memory replays for running matches and flushes
// them to disk when a match ends.
type ReplayRecorder struct {
	logger  *zap.Logger
	dir     string
	mu      sync.Mutex
	replays map[string]*Replay
}

// NewReplayRecorder creates a recorder that saves into dir.
func NewReplayRecorder(logger *zap.Logger, dir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		dir:     dir,
		replays: make(map[string]*Replay),
	}
}

// Capture snapshots state into its match's replay, creating it on first use.
func (rr *ReplayRecorder) Capture(state *GameState) {
	rr.mu.Lock()
	replay, ok := rr.replays[state.ID]
	if !ok {
		replay = NewReplay(state.ID)
		rr.replays[state.ID] = replay
	}
	rr.mu.Unlock()

	replay.Record(NewSnapshot(state))
	if rr.logger != nil {
		rr.logger.Debug("captured replay snapshot",
			zap.String("game_id", state.ID),
			zap.Int("state_count", replay.Len()),
		)
	}
}

// Replay returns the in-memory replay of a match.
func (rr *ReplayRecorder) Replay(gameID string) (*Replay, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	replay, ok := rr.replays[gameID]
	return replay, ok
}

// Flush saves a match's replay to disk and drops it from memory.
func (rr *ReplayRecorder) Flush(gameID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[gameID]
	delete(rr.replays, gameID)
	rr.mu.Unlock()
	if !ok {
		return fmt.Errorf("no replay recorded for game %s", gameID)
	}

	if err := replay.Save(rr.dir); err != nil {
		return err
	}
	if rr.logger != nil {
		rr.logger.Info("saved replay",
			zap.String("game_id", gameID),
			zap.Int("state_count", replay.Len()),
			zap.String("directory", rr.dir),
		)
	}
	return nil
}
