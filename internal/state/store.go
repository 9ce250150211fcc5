// Package state implements the State Store (component C5): a single
// durable JSON snapshot of the bot's current position and rotation
// counters, written crash-safely.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/djienne/deltaarb/internal/executor"
)

// BotState is the persisted document (SPEC_FULL.md §6).
type BotState struct {
	CurrentPosition  *executor.DeltaNeutralPosition `json:"current_position"`
	LastRotationTime *int64                         `json:"last_rotation_time"`
	TotalRotations   uint64                         `json:"total_rotations"`
}

// Store owns the single state file and its .bak/.tmp siblings. The
// orchestrator is its sole writer (SPEC_FULL.md §4.4/§5); the mutex here
// guards against concurrent reads from status-rendering code, not against
// concurrent writers.
type Store struct {
	path string
	mu   sync.RWMutex
}

// Open builds a Store over path, loading existing state if present. If
// loading the primary file fails, it falls back to the .bak sibling; if
// both are absent or corrupt, it initializes empty state and writes it.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) bakPath() string { return s.path + ".bak" }
func (s *Store) tmpPath() string { return s.path + ".tmp" }

// Load reads the state file, falling back to .bak on a parse error, and
// initializing+persisting empty state if neither is usable.
func (s *Store) Load() (BotState, error) {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	if st, err := readJSON(path); err == nil {
		return st, nil
	}

	if st, err := readJSON(s.bakPath()); err == nil {
		return st, nil
	}

	empty := BotState{}
	if err := s.Save(empty); err != nil {
		return BotState{}, fmt.Errorf("initialize empty state: %w", err)
	}
	return empty, nil
}

func readJSON(path string) (BotState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BotState{}, err
	}
	var st BotState
	if err := json.Unmarshal(data, &st); err != nil {
		return BotState{}, err
	}
	return st, nil
}

// Save persists st via the crash-safe sequence from SPEC_FULL.md §4.4: copy
// the current file to .bak, write new content to .tmp, rename .tmp over the
// target. Concurrency: only the orchestrator calls Save, so the write half
// of the lock only ever has one holder; it's still taken for symmetry with
// Load's readers.
func (s *Store) Save(st BotState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := backupIfExists(s.path, s.bakPath()); err != nil {
		return fmt.Errorf("back up state file: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.WriteFile(s.tmpPath(), data, 0o600); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}

	if err := os.Rename(s.tmpPath(), s.path); err != nil {
		return fmt.Errorf("rename staging file over target: %w", err)
	}

	return nil
}

func backupIfExists(src, dst string) error {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
