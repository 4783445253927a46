// Package store provides crash-safe checkpoint persistence using JSON files.
//
// A checkpoint captures the risk gate's kill-switch state, its active
// RiskParams, and a telemetry snapshot. Writes use atomic file replacement
// (write to .tmp, then rename) to prevent corruption from partial writes or
// crashes mid-save. The engine saves a checkpoint whenever the kill switch is
// asserted, periodically on a ticker, and on shutdown, and loads one on
// startup to restore the kill-switch state across restarts. Clearing the
// kill switch does not itself trigger a save.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tickengine/pkg/types"
)

// Checkpoint is the persisted snapshot written on each Save call.
type Checkpoint struct {
	Kill   bool             `json:"kill"`
	Params types.RiskParams `json:"params"`
	Stats  types.Stats      `json:"stats"`
}

// Store persists a single checkpoint file in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir  string     // directory containing checkpoint.json
	path string
	mu   sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir, path: filepath.Join(dir, "checkpoint.json")}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// Save atomically persists cp, replacing any prior checkpoint.
// It writes to a .tmp file first, then renames over the target to ensure
// the file is never left in a partial state (crash-safe).
func (s *Store) Save(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Load restores the last saved checkpoint from disk.
// Returns nil, nil if no checkpoint exists yet (fresh start).
func (s *Store) Load() (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
