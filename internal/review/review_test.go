package review

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/dgnsrekt/voicebank/internal/audio"
	"github.com/dgnsrekt/voicebank/internal/cache"
	"github.com/dgnsrekt/voicebank/internal/progress"
	"github.com/dgnsrekt/voicebank/internal/words"
)

type fakeGenerator struct {
	calls []string
	fail  map[string]error // by voice
}

func (f *fakeGenerator) Generate(_ context.Context, text, voice string) ([]byte, error) {
	f.calls = append(f.calls, voice+":"+text)
	if err := f.fail[voice]; err != nil {
		return nil, err
	}
	return []byte(voice + ":" + text), nil
}

type fixture struct {
	gen      *fakeGenerator
	cache    *cache.Store
	progress *progress.Store
	player   *audio.MockPlayer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := cache.New(filepath.Join(dir, "cache"), ".mp3", nil)
	if err != nil {
		t.Fatal(err)
	}
	prog, err := progress.Open(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		gen:      &fakeGenerator{fail: map[string]error{}},
		cache:    store,
		progress: prog,
		player:   audio.NewMockPlayer(),
	}
}

func (f *fixture) workflow(t *testing.T, source DecisionSource, voices ...string) *Workflow {
	t.Helper()

	if len(voices) == 0 {
		voices = []string{"v1", "v2", "v3"}
	}
	w, err := New(voices, f.gen, f.cache, f.progress, f.player, source, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w
}

// seed caches the primary rendition as batch generation would.
func (f *fixture) seed(t *testing.T, id string) {
	t.Helper()

	path, err := f.cache.Put("v1", id, []byte("primary"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.progress.MarkCompleted(id, "v1", path); err != nil {
		t.Fatal(err)
	}
}

var apple = words.Item{ID: "a", Text: "apple"}

func TestReview_NextNextAccept(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")
	source := NewScriptedSource(Next, Next, Accept)

	outcome, err := f.workflow(t, source).Review(context.Background(), apple)
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if outcome != OutcomeAccepted {
		t.Fatalf("outcome = %s", outcome)
	}

	item, _ := f.progress.Item("a")
	if item.Status != progress.StatusCompleted || item.VoiceUsed != "v3" || item.ReviewedAt == nil {
		t.Errorf("item = %+v", item)
	}
	if !slices.Equal(item.GeneratedVoices, []string{"v1", "v2", "v3"}) {
		t.Errorf("GeneratedVoices = %v", item.GeneratedVoices)
	}
	if item.LocalAudioPath != f.cache.Path("v3", "a") {
		t.Errorf("LocalAudioPath = %s", item.LocalAudioPath)
	}
	if !slices.Equal(f.gen.calls, []string{"v2:apple", "v3:apple"}) {
		t.Errorf("generator calls = %v", f.gen.calls)
	}

	plays := f.player.Plays()
	want := []string{f.cache.Path("v1", "a"), f.cache.Path("v2", "a"), f.cache.Path("v3", "a")}
	if !slices.Equal(plays, want) {
		t.Errorf("plays = %v, want %v", plays, want)
	}

	prompts := source.Prompts()
	if prompts[0].Exhausted || prompts[1].Exhausted || !prompts[2].Exhausted {
		t.Errorf("exhausted flags = %v/%v/%v", prompts[0].Exhausted, prompts[1].Exhausted, prompts[2].Exhausted)
	}
	if prompts[2].VoiceIndex != 3 || prompts[2].VoiceCount != 3 {
		t.Errorf("last prompt = %+v", prompts[2])
	}
}

func TestReview_WrapsAroundWithoutRegenerating(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	// Cycle through every voice twice, then settle on the second.
	source := NewScriptedSource(Next, Next, Next, Next, Next, Next, Next, Accept)
	if _, err := f.workflow(t, source).Review(context.Background(), apple); err != nil {
		t.Fatal(err)
	}

	item, _ := f.progress.Item("a")
	if item.VoiceUsed != "v2" {
		t.Errorf("VoiceUsed = %s, want v2", item.VoiceUsed)
	}
	if !slices.Equal(item.GeneratedVoices, []string{"v1", "v2", "v3"}) {
		t.Errorf("GeneratedVoices = %v", item.GeneratedVoices)
	}
	if len(f.gen.calls) != 2 {
		t.Errorf("generated %d times, want 2", len(f.gen.calls))
	}
}

func TestReview_GeneratedVoicesNeverShrinkOrRepeat(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	decisions := []Decision{Next, Replay, Next, Next, Replay, Next, Next, Next, Next, Skip}
	w := f.workflow(t, NewScriptedSource(decisions...))

	var prev []string
	f.player.OnPlay = func(string) {
		item, _ := f.progress.Item("a")
		if len(item.GeneratedVoices) < len(prev) {
			t.Errorf("GeneratedVoices shrank from %v to %v", prev, item.GeneratedVoices)
		}
		seen := map[string]bool{}
		for _, v := range item.GeneratedVoices {
			if seen[v] {
				t.Errorf("duplicate voice %s in %v", v, item.GeneratedVoices)
			}
			seen[v] = true
		}
		prev = item.GeneratedVoices
	}

	outcome, err := w.Review(context.Background(), apple)
	if err != nil || outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}
	if len(prev) != 3 {
		t.Errorf("final GeneratedVoices = %v", prev)
	}
}

func TestReview_Replay(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	if _, err := f.workflow(t, NewScriptedSource(Replay, Replay, Accept)).Review(context.Background(), apple); err != nil {
		t.Fatal(err)
	}
	if f.player.PlayCount() != 3 {
		t.Errorf("played %d times, want 3", f.player.PlayCount())
	}
	item, _ := f.progress.Item("a")
	if item.VoiceUsed != "v1" || len(f.gen.calls) != 0 {
		t.Errorf("item = %+v, calls = %v", item, f.gen.calls)
	}
}

func TestReview_Skip(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	outcome, err := f.workflow(t, NewScriptedSource(Skip)).Review(context.Background(), apple)
	if err != nil || outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}

	item, _ := f.progress.Item("a")
	if item.Status != progress.StatusSkipped || item.ReviewedAt != nil {
		t.Errorf("item = %+v", item)
	}
	if item.VoiceUsed != "v1" {
		t.Errorf("skip changed VoiceUsed to %q", item.VoiceUsed)
	}
}

func TestReview_Unreviewable(t *testing.T) {
	f := newFixture(t)
	source := NewScriptedSource(Accept)

	outcome, err := f.workflow(t, source).Review(context.Background(), apple)
	if err != nil || outcome != OutcomeUnreviewable {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}
	if len(source.Prompts()) != 0 || len(f.gen.calls) != 0 {
		t.Error("unreviewable item should not prompt or generate")
	}
}

func TestReview_GenerationFailureExcludesVoice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")
	f.gen.fail["v2"] = errors.New("quota exceeded")

	source := NewScriptedSource(Next, Next, Accept)
	if _, err := f.workflow(t, source).Review(context.Background(), apple); err != nil {
		t.Fatal(err)
	}

	prompts := source.Prompts()
	if prompts[1].Notice == "" || prompts[1].Voice != "v1" {
		t.Errorf("prompt after failure = %+v", prompts[1])
	}

	item, _ := f.progress.Item("a")
	if item.VoiceUsed != "v3" {
		t.Errorf("VoiceUsed = %s, want v3", item.VoiceUsed)
	}
	if !slices.Equal(item.GeneratedVoices, []string{"v1", "v3"}) {
		t.Errorf("GeneratedVoices = %v", item.GeneratedVoices)
	}
	if !slices.Equal(f.gen.calls, []string{"v2:apple", "v3:apple"}) {
		t.Errorf("calls = %v", f.gen.calls)
	}
}

func TestReview_SingleVoiceCannotAdvance(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	source := NewScriptedSource(Next, Accept)
	if _, err := f.workflow(t, source, "v1").Review(context.Background(), apple); err != nil {
		t.Fatal(err)
	}
	if p := source.Prompts(); p[1].Notice == "" || !p[0].Exhausted {
		t.Errorf("prompts = %+v", p)
	}
}

func TestReview_PlaybackErrorStillPrompts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")
	f.player.Err = errors.New("no audio device")

	source := NewScriptedSource(Accept)
	outcome, err := f.workflow(t, source).Review(context.Background(), apple)
	if err != nil || outcome != OutcomeAccepted {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}
	if source.Prompts()[0].Notice == "" {
		t.Error("playback error not surfaced")
	}
}

func TestReview_ReconcilesCachedVoices(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")
	f.cache.Put("v3", "a", []byte("from an earlier session"))

	if _, err := f.workflow(t, NewScriptedSource(Next, Next, Accept)).Review(context.Background(), apple); err != nil {
		t.Fatal(err)
	}

	item, _ := f.progress.Item("a")
	if !slices.Equal(item.GeneratedVoices, []string{"v1", "v3", "v2"}) {
		t.Errorf("GeneratedVoices = %v", item.GeneratedVoices)
	}
	if !slices.Equal(f.gen.calls, []string{"v2:apple"}) {
		t.Errorf("calls = %v", f.gen.calls)
	}
}

func TestReviewAll(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")
	f.seed(t, "c")

	items := []words.Item{apple, {ID: "b", Text: "ball"}, {ID: "c", Text: "cat"}}
	source := NewScriptedSource(Accept, Skip)

	summary, err := f.workflow(t, source).ReviewAll(context.Background(), items, Options{})
	if err != nil {
		t.Fatalf("ReviewAll failed: %v", err)
	}
	if summary.Approved != 1 || summary.Skipped != 1 || summary.Failed != 1 || summary.Total != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if !slices.Equal(summary.FailedIDs, []string{"b"}) {
		t.Errorf("FailedIDs = %v", summary.FailedIDs)
	}
	if p := source.Prompts(); p[0].Position != 1 || p[0].Total != 3 || p[1].Position != 3 {
		t.Errorf("prompt positions = %+v", p)
	}

	// Accepted items are not offered again; skipped ones are.
	source = NewScriptedSource(Accept)
	summary, err = f.workflow(t, source).ReviewAll(context.Background(), items, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Approved != 1 || len(source.Prompts()) != 1 || source.Prompts()[0].Item.ID != "c" {
		t.Errorf("second session summary = %+v, prompts = %+v", summary, source.Prompts())
	}

	// --all brings everything back.
	source = NewScriptedSource(Accept, Accept)
	summary, err = f.workflow(t, source).ReviewAll(context.Background(), items, Options{All: true})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Approved != 2 || summary.Failed != 1 {
		t.Errorf("--all summary = %+v", summary)
	}
}

func TestReviewAll_Quit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")
	f.seed(t, "b")

	items := []words.Item{apple, {ID: "b", Text: "ball"}}
	summary, err := f.workflow(t, NewScriptedSource(Next, Quit)).ReviewAll(context.Background(), items, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Quit || summary.Total != 0 {
		t.Errorf("summary = %+v", summary)
	}

	// Quitting leaves the item as it was, apart from the voice generated.
	item, _ := f.progress.Item("a")
	if item.Status != progress.StatusCompleted || item.VoiceUsed != "v1" || item.ReviewedAt != nil {
		t.Errorf("item = %+v", item)
	}
	if !item.HasVoice("v2") {
		t.Error("generated voice was not recorded")
	}
}

func TestReviewAll_SourceErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	_, err := f.workflow(t, NewScriptedSource()).ReviewAll(context.Background(), []words.Item{apple}, Options{})
	if !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("err = %v, want ErrScriptExhausted", err)
	}
}

func TestNew_RejectsBadVoices(t *testing.T) {
	f := newFixture(t)
	src := NewScriptedSource()

	if _, err := New(nil, f.gen, f.cache, f.progress, f.player, src, nil); err == nil {
		t.Error("expected error for no voices")
	}
	if _, err := New([]string{"v1", "v1"}, f.gen, f.cache, f.progress, f.player, src, nil); err == nil {
		t.Error("expected error for duplicate voices")
	}
	if _, err := New([]string{"v1", ""}, f.gen, f.cache, f.progress, f.player, src, nil); err == nil {
		t.Error("expected error for empty voice")
	}
}
