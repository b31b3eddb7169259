// Package watermark persists the per-account "last synced" timestamp. The
// watermark is advanced only after a successful destination import, so a
// failed run retries the same window and the destination's imported_id
// dedup absorbs the overlap.
package watermark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store reads and advances per-account watermarks.
type Store interface {
	// Get returns the account's watermark, or the configured epoch when
	// the account has never been synced.
	Get(accountID string) (time.Time, error)

	// Set advances the account's watermark. A value earlier than the
	// stored one is ignored: watermarks never move backwards.
	Set(accountID string, ts time.Time) error
}

// FileStore keeps watermarks in a flat JSON file mapping account id to an
// RFC3339 timestamp. The file is read whole and replaced whole via a temp
// file and rename, so a crashed write never leaves a torn file behind.
// Concurrent runs are not coordinated; single-run-at-a-time is assumed.
type FileStore struct {
	mu    sync.Mutex
	path  string
	epoch time.Time
}

// NewFileStore creates a store backed by the file at path. A missing or
// empty file means no account has a watermark yet. epoch is returned for
// unknown accounts.
func NewFileStore(path string, epoch time.Time) *FileStore {
	return &FileStore{path: path, epoch: epoch}
}

// Get implements Store.
func (s *FileStore) Get(accountID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, err := s.load()
	if err != nil {
		return time.Time{}, err
	}
	raw, ok := marks[accountID]
	if !ok {
		return s.epoch, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("watermark: account %s has invalid timestamp %q: %w", accountID, raw, err)
	}
	return ts, nil
}

// Set implements Store.
func (s *FileStore) Set(accountID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, err := s.load()
	if err != nil {
		return err
	}
	if raw, ok := marks[accountID]; ok {
		if current, err := time.Parse(time.RFC3339, raw); err == nil && ts.Before(current) {
			return nil
		}
	}
	marks[accountID] = ts.UTC().Format(time.RFC3339)
	return s.write(marks)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("watermark: reading %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	var marks map[string]string
	if err := json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("watermark: parsing %s: %w", s.path, err)
	}
	if marks == nil {
		marks = map[string]string{}
	}
	return marks, nil
}

func (s *FileStore) write(marks map[string]string) error {
	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return fmt.Errorf("watermark: encoding: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".watermarks-*.json")
	if err != nil {
		return fmt.Errorf("watermark: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("watermark: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("watermark: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("watermark: replacing %s: %w", s.path, err)
	}
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
