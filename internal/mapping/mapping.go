// Package mapping defines the account pairings the sync runs over and the
// JSON file they are persisted in. The file may be regenerated offline
// (see cmd/map-accounts); the engine only ever reads it.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Mode says how a pairing is reconciled.
type Mode string

const (
	// ModeImported accounts receive individual transformed transactions.
	ModeImported Mode = "imported"
	// ModeTracked accounts are corrected with balance adjustments only.
	ModeTracked Mode = "tracked"
	// ModeSkipped pairings are ignored by the sync.
	ModeSkipped Mode = "skipped"
)

// Entry pairs one Akahu account with one Actual account.
type Entry struct {
	AkahuID           string `json:"akahu_id"`
	AkahuName         string `json:"akahu_name,omitempty"`
	ActualAccountID   string `json:"actual_account_id"`
	ActualAccountName string `json:"actual_account_name,omitempty"`
	Mode              Mode   `json:"mode"`
}

// DisplayName returns an advisory label for logs. It is never used for
// matching.
func (e Entry) DisplayName() string {
	if e.AkahuName != "" {
		return e.AkahuName
	}
	return e.AkahuID
}

// AccountRef is a point-in-time snapshot of a ledger account, kept in the
// mapping file so the offline regeneration step can detect new and removed
// accounts.
type AccountRef struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DateFirstLoaded string `json:"date_first_loaded,omitempty"`
}

// File is the persisted mapping document.
type File struct {
	AkahuAccounts  []AccountRef `json:"akahu_accounts"`
	ActualAccounts []AccountRef `json:"actual_accounts"`
	Mapping        []Entry      `json:"mapping"`
}

// Load reads the mapping file. A missing file is not an error: it yields
// an empty mapping, matching a first run before any pairing exists.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("mapping: reading %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("mapping: parsing %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the mapping file atomically (temp file then rename).
func Save(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("mapping: encoding: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mapping-*.json")
	if err != nil {
		return fmt.Errorf("mapping: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("mapping: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("mapping: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("mapping: replacing %s: %w", path, err)
	}
	return nil
}
