package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, ext string) *Store {
	t.Helper()

	store, err := New(t.TempDir(), ext, nil)
	if err != nil {
		t.Fatalf("Failed to create cache store: %v", err)
	}
	return store
}

func TestStore_PutGetExists(t *testing.T) {
	store := newTestStore(t, "mp3")

	if store.Exists("v1", "a") {
		t.Fatal("empty cache reports a rendition")
	}

	path, err := store.Put("v1", "a", []byte("audio"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if want := filepath.Join(store.Root(), "v1", "a.mp3"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	if !store.Exists("v1", "a") {
		t.Error("Exists = false after Put")
	}
	if store.Exists("v2", "a") {
		t.Error("rendition leaked into another voice")
	}

	data, err := store.Get("v1", "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("Get = %q", data)
	}

	if _, err := store.Get("v2", "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get on missing voice = %v, want ErrCacheMiss", err)
	}
}

func TestStore_PutOverwritesAtomically(t *testing.T) {
	store := newTestStore(t, ".wav")

	if _, err := store.Put("v1", "a", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put("v1", "a", []byte("second")); err != nil {
		t.Fatal(err)
	}

	data, _ := store.Get("v1", "a")
	if string(data) != "second" {
		t.Errorf("Get = %q, want second", data)
	}

	files, _ := os.ReadDir(filepath.Join(store.Root(), "v1"))
	if len(files) != 1 {
		t.Errorf("voice directory holds %d files, want 1", len(files))
	}
}

func TestStore_RejectsInvalidKeys(t *testing.T) {
	store := newTestStore(t, ".mp3")

	tests := []struct {
		voice, item string
	}{
		{"", "a"},
		{"v1", ""},
		{"..", "a"},
		{"v1", "../escape"},
		{`v\1`, "a"},
	}
	for _, tt := range tests {
		if _, err := store.Put(tt.voice, tt.item, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q, %q) = %v, want ErrInvalidKey", tt.voice, tt.item, err)
		}
		if store.Exists(tt.voice, tt.item) {
			t.Errorf("Exists(%q, %q) = true", tt.voice, tt.item)
		}
	}

	if _, err := store.Put("v1", "a", nil); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Put(empty) = %v, want ErrEmptyAudio", err)
	}
}

func TestStore_EntriesAndStats(t *testing.T) {
	store := newTestStore(t, ".mp3")

	for _, k := range []struct{ voice, item, data string }{
		{"v2", "b", "bb"},
		{"v1", "b", "b"},
		{"v1", "a", "aaa"},
	} {
		if _, err := store.Put(k.voice, k.item, []byte(k.data)); err != nil {
			t.Fatal(err)
		}
	}

	// Manually staged files with another extension are still entries; temp,
	// hidden and empty files are not.
	dir := filepath.Join(store.Root(), "v2")
	os.WriteFile(filepath.Join(dir, "c.wav"), []byte("cc"), 0o644)
	os.WriteFile(filepath.Join(dir, "d.mp3.123.tmp"), []byte("partial"), 0o644)
	os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "e.mp3"), nil, 0o644)
	os.WriteFile(filepath.Join(store.Root(), "stray.txt"), []byte("x"), 0o644)

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	want := []string{"v1/a.mp3", "v1/b.mp3", "v2/b.mp3", "v2/c.wav"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e.Name() != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Name(), want[i])
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 4 || stats.Bytes != 8 {
		t.Errorf("stats = %d files / %d bytes, want 4 / 8", stats.Count, stats.Bytes)
	}
	if len(stats.Voices) != 2 || stats.Voices[0].Voice != "v1" || stats.Voices[0].Count != 2 {
		t.Errorf("voice stats = %+v", stats.Voices)
	}
}

func TestStore_VoicesAndDelete(t *testing.T) {
	store := newTestStore(t, ".mp3")

	store.Put("v1", "a", []byte("1"))
	store.Put("v3", "a", []byte("3"))

	got := store.Voices("a", []string{"v1", "v2", "v3"})
	if len(got) != 2 || got[0] != "v1" || got[1] != "v3" {
		t.Errorf("Voices = %v, want [v1 v3]", got)
	}

	if err := store.Delete("v1", "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("v1", "a"); err != nil {
		t.Errorf("second Delete = %v, want nil", err)
	}
	if store.Exists("v1", "a") {
		t.Error("rendition survived Delete")
	}
}

func TestStore_ReadEntry(t *testing.T) {
	store := newTestStore(t, ".mp3")

	dir := filepath.Join(store.Root(), "v1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.wav"), []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("v1", "a"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get(.wav under .mp3) error = %v, want ErrCacheMiss", err)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Entries = %+v, want one", entries)
	}
	data, err := store.ReadEntry(entries[0])
	if err != nil {
		t.Fatalf("ReadEntry failed: %v", err)
	}
	if string(data) != "wav" {
		t.Errorf("ReadEntry = %q, want wav", data)
	}

	outside := Entry{Voice: "v1", ItemID: "a", Path: filepath.Join(t.TempDir(), "a.wav")}
	if _, err := store.ReadEntry(outside); err == nil {
		t.Error("ReadEntry accepted a path outside the voice directory")
	}
	gone := Entry{Voice: "v1", ItemID: "b", Path: filepath.Join(dir, "b.wav")}
	if _, err := store.ReadEntry(gone); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("ReadEntry(missing) error = %v, want ErrCacheMiss", err)
	}
}
