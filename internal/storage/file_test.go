package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFile_WriteJSON_ReadJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "nested", "sample.json"))

	want := sample{Name: "agent", Count: 3}
	if err := f.WriteJSON(want); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var got sample
	if err := f.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadJSON() = %+v, want %+v", got, want)
	}
}

func TestFile_WriteJSONAtomic_RoundTripAndMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.json")
	f := NewFile(path)

	want := sample{Name: "device", Count: 7}
	if err := f.WriteJSONAtomic(want, 0o600); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if e.Name() != "device.json" {
			t.Errorf("leftover file in directory: %s", e.Name())
		}
	}

	var got sample
	if err := f.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadJSON() = %+v, want %+v", got, want)
	}
}

func TestFile_WriteJSONAtomic_Overwrite(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "settings.json"))

	if err := f.WriteJSONAtomic(sample{Name: "first", Count: 1}, 0o600); err != nil {
		t.Fatalf("first WriteJSONAtomic() error = %v", err)
	}
	if err := f.WriteJSONAtomic(sample{Name: "second", Count: 2}, 0o600); err != nil {
		t.Fatalf("second WriteJSONAtomic() error = %v", err)
	}

	var got sample
	if err := f.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if want := (sample{Name: "second", Count: 2}); got != want {
		t.Errorf("ReadJSON() = %+v, want %+v", got, want)
	}
}

func TestFile_Exists(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "missing.json"))
	if f.Exists() {
		t.Error("Exists() = true for a file never written")
	}
	if err := f.WriteJSON(sample{Name: "x"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !f.Exists() {
		t.Error("Exists() = false after WriteJSON")
	}
}
