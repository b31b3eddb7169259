package watermark

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "watermarks.json"), epoch)
}

func TestGet_MissingFileReturnsEpoch(t *testing.T) {
	store := newTestStore(t)

	ts, err := store.Get("acc_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ts.Equal(epoch) {
		t.Errorf("Get() = %v, want epoch %v", ts, epoch)
	}
}

func TestSetThenGet(t *testing.T) {
	store := newTestStore(t)
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Set("acc_1", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get("acc_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}

	// Other accounts are unaffected.
	other, err := store.Get("acc_2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !other.Equal(epoch) {
		t.Errorf("Get(acc_2) = %v, want epoch", other)
	}
}

func TestSet_NeverMovesBackwards(t *testing.T) {
	store := newTestStore(t)
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Set("acc_1", later); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set("acc_1", earlier); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get("acc_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("Get() = %v, want %v (watermark must not regress)", got, later)
	}
}

func TestSet_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watermarks.json")
	store := NewFileStore(path, epoch)

	if err := store.Set("acc_1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".watermarks-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "acc_1") {
		t.Errorf("file does not contain watermark: %s", data)
	}
}

func TestGet_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermarks.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(path, epoch)

	if _, err := store.Get("acc_1"); err == nil {
		t.Error("Get() expected error for corrupt file")
	}
}

func TestGet_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermarks.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(path, epoch)

	ts, err := store.Get("acc_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ts.Equal(epoch) {
		t.Errorf("Get() = %v, want epoch", ts)
	}
}
