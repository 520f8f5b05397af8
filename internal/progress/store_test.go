package progress

import (
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/voicebank/internal/words"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "progress.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store, path
}

func readDocument(t *testing.T, path string) Document {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read progress file: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("progress file is not valid JSON: %v", err)
	}
	return doc
}

func TestOpen_MissingFile(t *testing.T) {
	store, path := openTestStore(t)

	doc := store.Document()
	if len(doc.Items) != 0 {
		t.Errorf("fresh document has %d items", len(doc.Items))
	}
	if doc.SessionID == "" || doc.Version != DocumentVersion {
		t.Errorf("fresh document header = %q/%q", doc.SessionID, doc.Version)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Open should not create the file before the first save")
	}
}

func TestOpen_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	if err := os.WriteFile(path, []byte(`{"items": {"a": {"status": "compl`), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open should tolerate corruption, got %v", err)
	}
	if n := len(store.Document().Items); n != 0 {
		t.Errorf("corrupt document yielded %d items", n)
	}

	entries, _ := os.ReadDir(dir)
	var quarantined bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "progress.json.corrupt-") {
			quarantined = true
		}
	}
	if !quarantined {
		t.Error("corrupt file was not moved aside")
	}
}

func TestOpen_ToleratesMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	legacy := `{"items": {"a": {"status": "completed", "voiceUsed": "v1"}, "b": {}}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	doc := store.Document()
	if doc.CompletedCount != 1 {
		t.Errorf("CompletedCount = %d, want 1", doc.CompletedCount)
	}
	b, ok := store.Item("b")
	if !ok || b.Status != StatusPending || b.ItemID != "b" {
		t.Errorf("item b = %+v", b)
	}
}

func TestSave_RoundTripsThroughDisk(t *testing.T) {
	store, path := openTestStore(t)

	if err := store.MarkCompleted("a", "v1", "/cache/v1/a.mp3"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	item, ok := reopened.Item("a")
	if !ok {
		t.Fatal("item a missing after reopen")
	}
	if item.Status != StatusCompleted || item.VoiceUsed != "v1" || item.CompletedAt == nil {
		t.Errorf("item a = %+v", item)
	}
	if reopened.Document().SessionID != store.Document().SessionID {
		t.Error("session id changed across reopen")
	}

	// No temp files are left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestSave_PropagatesWriteErrors(t *testing.T) {
	dir := t.TempDir()
	// The parent of the progress file is a regular file, so nothing can be written.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(filepath.Join(blocker, "progress.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.MarkFailed("a", errors.New("boom")); err == nil {
		t.Error("expected save error to propagate")
	}
}

func TestMarkFailed_KeepsGeneratedVoices(t *testing.T) {
	store, _ := openTestStore(t)

	if err := store.MarkCompleted("a", "v1", "p1"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddGeneratedVoice("a", "v2"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed("a", errors.New("server error")); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed("a", errors.New("again")); err != nil {
		t.Fatal(err)
	}

	item, _ := store.Item("a")
	if item.Status != StatusFailed || item.Attempts != 2 || item.LastError != "again" {
		t.Errorf("item = %+v", item)
	}
	if len(item.GeneratedVoices) != 2 {
		t.Errorf("GeneratedVoices = %v, want [v1 v2]", item.GeneratedVoices)
	}

	if err := store.MarkCompleted("a", "v1", "p1"); err != nil {
		t.Fatal(err)
	}
	item, _ = store.Item("a")
	if item.LastError != "" {
		t.Errorf("MarkCompleted did not clear LastError: %q", item.LastError)
	}
}

func TestAddGeneratedVoice_NoDuplicates(t *testing.T) {
	store, _ := openTestStore(t)

	for _, v := range []string{"v1", "v2", "v1", "v3", "v2", ""} {
		if err := store.AddGeneratedVoice("a", v); err != nil {
			t.Fatal(err)
		}
	}

	item, _ := store.Item("a")
	want := []string{"v1", "v2", "v3"}
	if strings.Join(item.GeneratedVoices, ",") != strings.Join(want, ",") {
		t.Errorf("GeneratedVoices = %v, want %v", item.GeneratedVoices, want)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	store, path := openTestStore(t)

	if err := store.Initialize([]words.Item{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkCompleted("a", "v1", "p"); err != nil {
		t.Fatal(err)
	}

	// A later campaign over a superset keeps prior state.
	if err := store.Initialize([]words.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}); err != nil {
		t.Fatal(err)
	}

	doc := readDocument(t, path)
	if doc.TotalItems != 3 || len(doc.Items) != 3 {
		t.Errorf("TotalItems = %d, items = %d, want 3/3", doc.TotalItems, len(doc.Items))
	}
	if doc.Items["a"].Status != StatusCompleted {
		t.Errorf("item a was reset to %s", doc.Items["a"].Status)
	}
	if doc.Items["c"].Status != StatusPending {
		t.Errorf("item c status = %s", doc.Items["c"].Status)
	}
}

// Counters match the item map for any order of mutations.
func TestUpsert_CountsNeverDrift(t *testing.T) {
	store, path := openTestStore(t)
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d", "e"}

	for i := 0; i < 200; i++ {
		id := ids[rng.Intn(len(ids))]
		var err error
		switch rng.Intn(4) {
		case 0:
			err = store.MarkCompleted(id, "v1", "p")
		case 1:
			err = store.MarkFailed(id, errors.New("x"))
		case 2:
			err = store.MarkSkipped(id)
		case 3:
			err = store.Upsert(id, func(p *ItemProgress) { p.Status = StatusPending })
		}
		if err != nil {
			t.Fatal(err)
		}

		doc := readDocument(t, path)
		var completed, failed, skipped int
		for _, item := range doc.Items {
			switch item.Status {
			case StatusCompleted:
				completed++
			case StatusFailed:
				failed++
			case StatusSkipped:
				skipped++
			}
		}
		if doc.CompletedCount != completed || doc.FailedCount != failed || doc.SkippedCount != skipped {
			t.Fatalf("step %d: counters %d/%d/%d, items %d/%d/%d", i,
				doc.CompletedCount, doc.FailedCount, doc.SkippedCount, completed, failed, skipped)
		}
	}
}

func TestMarkReviewed(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store, err := Open(filepath.Join(t.TempDir(), "p.json"), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.MarkReviewed("a", "v3", "/c/v3/a.mp3"); err != nil {
		t.Fatal(err)
	}
	item, _ := store.Item("a")
	if item.ReviewedAt == nil || !item.ReviewedAt.Equal(fixed) {
		t.Errorf("ReviewedAt = %v", item.ReviewedAt)
	}
	if item.VoiceUsed != "v3" || !item.HasVoice("v3") {
		t.Errorf("item = %+v", item)
	}
}

func TestUpsert_RejectsEmptyID(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.Upsert("", nil); !errors.Is(err, ErrEmptyItemID) {
		t.Errorf("err = %v, want ErrEmptyItemID", err)
	}
}

func TestItem_ReturnsCopy(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.MarkCompleted("a", "v1", "p"); err != nil {
		t.Fatal(err)
	}

	item, _ := store.Item("a")
	item.GeneratedVoices[0] = "mutated"
	item.Status = StatusFailed

	again, _ := store.Item("a")
	if again.GeneratedVoices[0] != "v1" || again.Status != StatusCompleted {
		t.Error("Item exposed internal state")
	}
}
