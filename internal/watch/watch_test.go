package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFile_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- File(ctx, path, 20*time.Millisecond, func(context.Context) error {
			calls <- struct{}{}
			return nil
		}, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-calls:
		t.Fatal("callback ran for an unrelated file")
	case <-time.After(150 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`[{"id":"a","text":"a"}]`), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not called after write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("File() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("File() did not return after cancel")
	}
}

func TestFile_CallbackErrorStops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.yaml")
	if err := os.WriteFile(path, []byte("- id: a\n  text: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("progress file unwritable")
	done := make(chan error, 1)
	go func() {
		done <- File(context.Background(), path, 10*time.Millisecond, func(context.Context) error {
			return boom
		}, nil)
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("- id: b\n  text: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("File() error = %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("File() did not return the callback error")
	}
}

func TestFile_MissingDirectory(t *testing.T) {
	err := File(context.Background(), filepath.Join(t.TempDir(), "nope", "words.json"), 0, func(context.Context) error { return nil }, nil)
	if err == nil {
		t.Error("File() succeeded for a missing directory")
	}
}
