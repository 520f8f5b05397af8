// Package review runs the operator-in-the-loop selection of one rendition
// per item. Each item is an explicit state loop: play the candidate, wait for
// a decision, and either finish, replay, or advance to the next voice,
// generating it on demand.
package review

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voicebank/internal/audio"
	"github.com/dgnsrekt/voicebank/internal/cache"
	"github.com/dgnsrekt/voicebank/internal/progress"
	"github.com/dgnsrekt/voicebank/internal/words"
)

// Generator produces a rendition for a voice on demand.
type Generator interface {
	Generate(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Outcome is how the review of one item ended.
type Outcome int

const (
	// OutcomeAccepted means a voice was chosen and recorded
	OutcomeAccepted Outcome = iota

	// OutcomeSkipped means the operator deferred the item
	OutcomeSkipped

	// OutcomeUnreviewable means the primary rendition does not exist
	OutcomeUnreviewable

	// OutcomeQuit means the operator ended the session on this item
	OutcomeQuit
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnreviewable:
		return "unreviewable"
	default:
		return "quit"
	}
}

// Summary tallies a review session.
type Summary struct {
	Approved  int
	Skipped   int
	Failed    int
	Total     int
	FailedIDs []string

	// Quit is set when the operator ended the session early.
	Quit bool
}

// Workflow reviews items against a fixed, ordered list of voices. The first
// voice is the primary one produced by batch generation.
type Workflow struct {
	voices   []string
	gen      Generator
	cache    *cache.Store
	progress *progress.Store
	player   audio.Player
	source   DecisionSource
	logger   *log.Logger
}

// New validates its collaborators. voices must be non-empty and unique.
func New(voices []string, gen Generator, store *cache.Store, prog *progress.Store,
	player audio.Player, source DecisionSource, logger *log.Logger,
) (*Workflow, error) {
	if len(voices) == 0 {
		return nil, errors.New("at least one voice is required")
	}
	for i, v := range voices {
		if v == "" {
			return nil, errors.New("voice names cannot be empty")
		}
		if slices.Index(voices, v) != i {
			return nil, fmt.Errorf("voice %q is listed twice", v)
		}
	}
	if gen == nil || store == nil || prog == nil || player == nil || source == nil {
		return nil, errors.New("generator, cache, progress, player and decision source are required")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Workflow{
		voices:   slices.Clone(voices),
		gen:      gen,
		cache:    store,
		progress: prog,
		player:   player,
		source:   source,
		logger:   logger,
	}, nil
}

type state int

const (
	statePlay state = iota
	stateAwait
	stateAdvance
)

// itemReview is the loop state for one item.
type itemReview struct {
	item     words.Item
	cursor   int
	heard    map[string]bool
	failed   map[string]bool
	notice   string
	position int
	total    int
}

// Review runs the decision loop for one item until it is accepted, skipped
// or the operator quits. Errors are reserved for progress that could not be
// saved, an unwritable cache, or a failing decision source.
func (w *Workflow) Review(ctx context.Context, item words.Item) (Outcome, error) {
	return w.review(ctx, &itemReview{item: item})
}

func (w *Workflow) review(ctx context.Context, r *itemReview) (Outcome, error) {
	id := r.item.ID
	if !w.cache.Exists(w.voices[0], id) {
		w.logger.Warn("No primary rendition, cannot review", "item", id, "voice", w.voices[0])
		return OutcomeUnreviewable, nil
	}
	if err := w.reconcile(id); err != nil {
		return OutcomeQuit, err
	}

	r.heard = make(map[string]bool)
	r.failed = make(map[string]bool)

	st := statePlay
	for {
		voice := w.voices[r.cursor]

		switch st {
		case statePlay:
			r.heard[voice] = true
			if err := w.player.Play(ctx, w.cache.Path(voice, id)); err != nil {
				if ctx.Err() != nil {
					return OutcomeQuit, ctx.Err()
				}
				w.logger.Warn("Playback failed", "item", id, "voice", voice, "err", err)
				r.notice = fmt.Sprintf("playback failed: %v", err)
			}
			st = stateAwait

		case stateAwait:
			d, err := w.source.Decide(ctx, w.prompt(r))
			if err != nil {
				return OutcomeQuit, err
			}
			r.notice = ""

			switch d {
			case Accept:
				if err := w.progress.MarkReviewed(id, voice, w.cache.Path(voice, id)); err != nil {
					return OutcomeQuit, err
				}
				w.logger.Info("Accepted", "item", id, "voice", voice)
				return OutcomeAccepted, nil
			case Replay:
				st = statePlay
			case Skip:
				if err := w.progress.MarkSkipped(id); err != nil {
					return OutcomeQuit, err
				}
				w.logger.Info("Skipped", "item", id)
				return OutcomeSkipped, nil
			case Quit:
				return OutcomeQuit, nil
			case Next:
				st = stateAdvance
			default:
				return OutcomeQuit, fmt.Errorf("%w: %v", ErrUnknownDecision, d)
			}

		case stateAdvance:
			next, ok := w.nextVoice(r)
			if !ok {
				r.notice = "no other voice is available"
				st = stateAwait
				continue
			}

			if err := w.ensureRendition(ctx, r.item, w.voices[next]); err != nil {
				if errors.Is(err, errFatal) {
					return OutcomeQuit, err
				}
				r.failed[w.voices[next]] = true
				r.notice = fmt.Sprintf("could not generate %s: %v", w.voices[next], err)
				st = stateAwait
				continue
			}

			r.cursor = next
			st = statePlay
		}
	}
}

// nextVoice picks the first usable voice after the cursor, wrapping around
// to the start of the list once the end is reached.
func (w *Workflow) nextVoice(r *itemReview) (int, bool) {
	n := len(w.voices)
	for step := 1; step < n; step++ {
		i := (r.cursor + step) % n
		if !r.failed[w.voices[i]] {
			return i, true
		}
	}
	return 0, false
}

var errFatal = errors.New("fatal")

// ensureRendition makes sure voice has been generated for item, recording
// it among the item's generated voices before it is played.
func (w *Workflow) ensureRendition(ctx context.Context, item words.Item, voice string) error {
	if !w.cache.Exists(voice, item.ID) {
		w.logger.Info("Generating alternative voice", "item", item.ID, "voice", voice)

		// Generation is not abandoned halfway through on interrupt.
		data, err := w.gen.Generate(context.WithoutCancel(ctx), item.Text, voice)
		if err != nil {
			w.logger.Error("Alternative voice failed", "item", item.ID, "voice", voice, "err", err)
			return err
		}
		if _, err := w.cache.Put(voice, item.ID, data); err != nil {
			return fmt.Errorf("%w: %w", errFatal, err)
		}
	}

	if err := w.progress.AddGeneratedVoice(item.ID, voice); err != nil {
		return fmt.Errorf("%w: %w", errFatal, err)
	}
	return nil
}

// reconcile records voices found on disk that progress does not know about.
func (w *Workflow) reconcile(itemID string) error {
	p, _ := w.progress.Item(itemID)
	for _, v := range w.cache.Voices(itemID, w.voices) {
		if p != nil && p.HasVoice(v) {
			continue
		}
		if err := w.progress.AddGeneratedVoice(itemID, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workflow) prompt(r *itemReview) Prompt {
	exhausted := true
	for _, v := range w.voices {
		if !r.heard[v] && !r.failed[v] {
			exhausted = false
			break
		}
	}

	return Prompt{
		Item:       r.item,
		Voice:      w.voices[r.cursor],
		VoiceIndex: r.cursor + 1,
		VoiceCount: len(w.voices),
		Exhausted:  exhausted,
		Notice:     r.notice,
		Position:   r.position,
		Total:      r.total,
	}
}

// Options controls ReviewAll.
type Options struct {
	// All includes items already accepted in an earlier session.
	All bool
}

// ReviewAll reviews items in order. Items accepted in an earlier session are
// left out unless opts.All is set; skipped items come back every session.
// The session stops early when the operator quits or ctx is cancelled.
func (w *Workflow) ReviewAll(ctx context.Context, items []words.Item, opts Options) (Summary, error) {
	queue := make([]words.Item, 0, len(items))
	for _, it := range items {
		if !opts.All {
			if p, ok := w.progress.Item(it.ID); ok && p.ReviewedAt != nil {
				continue
			}
		}
		queue = append(queue, it)
	}

	var summary Summary
	for i, it := range queue {
		if ctx.Err() != nil {
			summary.Quit = true
			break
		}

		outcome, err := w.review(ctx, &itemReview{item: it, position: i + 1, total: len(queue)})
		if err != nil {
			if ctx.Err() != nil {
				summary.Quit = true
				break
			}
			return summary, err
		}

		if outcome == OutcomeQuit {
			summary.Quit = true
			break
		}
		summary.Total++
		switch outcome {
		case OutcomeAccepted:
			summary.Approved++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeUnreviewable:
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, it.ID)
		}
	}

	w.logger.Info("Review session finished",
		"approved", summary.Approved, "skipped", summary.Skipped, "failed", summary.Failed, "total", summary.Total)
	return summary, nil
}
