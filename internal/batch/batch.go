// Package batch drives unattended generation over a whole word list. Runs
// are resumable: anything already cached under the primary voice is left
// alone, and progress is flushed after every item so an interrupted run
// loses nothing but the item in flight.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voicebank/internal/cache"
	"github.com/dgnsrekt/voicebank/internal/progress"
	"github.com/dgnsrekt/voicebank/internal/words"
)

// ErrInvalidAPIKey aborts a run before any item is attempted.
var ErrInvalidAPIKey = errors.New("synthesis provider rejected the API key")

// Generator is the part of the synthesis client the driver needs.
type Generator interface {
	Generate(ctx context.Context, text, voiceID string) ([]byte, error)
	ValidateKey(ctx context.Context) (bool, error)
}

// Config holds the driver's tunables.
type Config struct {
	// PrimaryVoice is the voice every item is generated with.
	PrimaryVoice string

	// Delay is the pause between provider calls.
	Delay time.Duration

	// MaxAttempts leaves items failed once they have failed this many
	// times. Zero retries failed items on every run.
	MaxAttempts int

	// RetryExhausted ignores MaxAttempts for this run.
	RetryExhausted bool
}

// Result summarizes one run.
type Result struct {
	Generated int
	Cached    int
	Failed    int
	Exhausted int
	Total     int

	// FailedItems holds the texts of items that failed in this run.
	FailedItems []string

	// ExhaustedItems holds the texts of items skipped because they hit
	// MaxAttempts.
	ExhaustedItems []string

	// Interrupted is set when the run stopped early on cancellation.
	Interrupted bool
}

// Driver runs generation campaigns.
type Driver struct {
	gen      Generator
	cache    *cache.Store
	progress *progress.Store
	config   Config
	sleep    func(context.Context, time.Duration) error
	logger   *log.Logger

	// OnItem, if set, is called after each item with its outcome.
	OnItem func(item words.Item, outcome Outcome, err error)
}

// Outcome is what happened to one item.
type Outcome int

const (
	// OutcomeGenerated means the provider produced a new rendition
	OutcomeGenerated Outcome = iota

	// OutcomeCached means a rendition was already on disk
	OutcomeCached

	// OutcomeFailed means generation failed after retries
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeGenerated:
		return "generated"
	case OutcomeCached:
		return "cached"
	default:
		return "failed"
	}
}

// New creates a driver. The progress store is shared with the caller.
func New(gen Generator, store *cache.Store, prog *progress.Store, config Config, logger *log.Logger) (*Driver, error) {
	if gen == nil || store == nil || prog == nil {
		return nil, errors.New("generator, cache and progress store are required")
	}
	if config.PrimaryVoice == "" {
		return nil, errors.New("primary voice cannot be empty")
	}
	if config.Delay < 0 {
		return nil, fmt.Errorf("delay cannot be negative: %v", config.Delay)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Driver{
		gen:      gen,
		cache:    store,
		progress: prog,
		config:   config,
		sleep:    sleep,
		logger:   logger,
	}, nil
}

// Pending returns, in input order, the items a run would attempt: those
// without a cached primary rendition plus those marked failed. Items that
// reached MaxAttempts are returned separately. Items whose accepted
// rendition is still cached are never attempted, whatever the primary voice.
func (d *Driver) Pending(items []words.Item) (todo, exhausted []words.Item) {
	for _, it := range items {
		p, known := d.progress.Item(it.ID)
		if known && d.accepted(p) {
			continue
		}
		failed := known && p.Status == progress.StatusFailed

		if !failed && d.cache.Exists(d.config.PrimaryVoice, it.ID) {
			continue
		}
		if failed && d.exhausted(p) {
			exhausted = append(exhausted, it)
			continue
		}
		todo = append(todo, it)
	}
	return todo, exhausted
}

// accepted reports whether the operator picked a rendition that is still on
// disk. Such items belong to the operator.
func (d *Driver) accepted(p *progress.ItemProgress) bool {
	return p.ReviewedAt != nil && p.VoiceUsed != "" && d.cache.Exists(p.VoiceUsed, p.ItemID)
}

func (d *Driver) exhausted(p *progress.ItemProgress) bool {
	return d.config.MaxAttempts > 0 && !d.config.RetryExhausted && p.Attempts >= d.config.MaxAttempts
}

// Run generates every pending item. Item failures are recorded and counted;
// the returned error is reserved for conditions that make continuing
// pointless: a rejected API key, an unwritable cache, or progress that could
// not be saved.
//
// Cancelling ctx stops the run at the next item boundary. The item in flight
// is finished first.
func (d *Driver) Run(ctx context.Context, items []words.Item) (Result, error) {
	result := Result{Total: len(items)}

	todo, exhausted := d.Pending(items)
	for _, it := range exhausted {
		result.Exhausted++
		result.ExhaustedItems = append(result.ExhaustedItems, it.Text)
	}

	if err := d.progress.Initialize(items); err != nil {
		return result, err
	}

	result.Cached = len(items) - len(todo) - len(exhausted)
	if err := d.reconcile(items, todo, exhausted); err != nil {
		return result, err
	}
	if len(todo) == 0 {
		d.logger.Info("Nothing to generate", "items", len(items), "voice", d.config.PrimaryVoice)
		return result, nil
	}

	ok, err := d.gen.ValidateKey(ctx)
	if err != nil {
		return result, fmt.Errorf("unable to validate API key: %w", err)
	}
	if !ok {
		return result, ErrInvalidAPIKey
	}

	d.logger.Info("Starting generation",
		"pending", len(todo), "total", len(items), "voice", d.config.PrimaryVoice)

	calledProvider := false
	for i, it := range todo {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		if calledProvider && d.config.Delay > 0 {
			if err := d.sleep(ctx, d.config.Delay); err != nil {
				result.Interrupted = true
				break
			}
		}

		// The item itself is never cut short by cancellation.
		outcome, itemErr, err := d.processItem(context.WithoutCancel(ctx), it)
		if err != nil {
			return result, err
		}
		calledProvider = outcome != OutcomeCached

		switch outcome {
		case OutcomeGenerated:
			result.Generated++
		case OutcomeCached:
			result.Cached++
		case OutcomeFailed:
			result.Failed++
			result.FailedItems = append(result.FailedItems, it.Text)
		}

		d.logger.Debug("Item done", "item", it.ID, "outcome", outcome, "n", i+1, "of", len(todo))
		if d.OnItem != nil {
			d.OnItem(it, outcome, itemErr)
		}
	}

	if result.Interrupted {
		d.logger.Warn("Generation interrupted",
			"generated", result.Generated, "failed", result.Failed, "total", result.Total)
	}
	return result, nil
}

// reconcile marks pending items whose primary rendition is already on disk
// as completed, so a lost or hand-edited progress file catches up with the
// cache.
func (d *Driver) reconcile(items, todo, exhausted []words.Item) error {
	skip := make(map[string]bool, len(todo)+len(exhausted))
	for _, it := range todo {
		skip[it.ID] = true
	}
	for _, it := range exhausted {
		skip[it.ID] = true
	}

	voice := d.config.PrimaryVoice
	for _, it := range items {
		if skip[it.ID] {
			continue
		}
		p, ok := d.progress.Item(it.ID)
		if !ok || p.Status != progress.StatusPending {
			continue
		}
		if err := d.progress.MarkCompleted(it.ID, voice, d.cache.Path(voice, it.ID)); err != nil {
			return err
		}
	}
	return nil
}

// processItem handles one item. itemErr is the synthesis failure recorded
// for the item; err is fatal to the run.
func (d *Driver) processItem(ctx context.Context, it words.Item) (outcome Outcome, itemErr, err error) {
	voice := d.config.PrimaryVoice

	// Another run, or the operator, may have produced the file since the
	// pending list was computed.
	if d.cache.Exists(voice, it.ID) {
		if err := d.progress.MarkCompleted(it.ID, voice, d.cache.Path(voice, it.ID)); err != nil {
			return OutcomeCached, nil, err
		}
		return OutcomeCached, nil, nil
	}

	audio, genErr := d.gen.Generate(ctx, it.Text, voice)
	if genErr != nil {
		d.logger.Error("Generation failed", "item", it.ID, "text", it.Text, "err", genErr)
		if err := d.progress.MarkFailed(it.ID, genErr); err != nil {
			return OutcomeFailed, genErr, err
		}
		return OutcomeFailed, genErr, nil
	}

	path, err := d.cache.Put(voice, it.ID, audio)
	if err != nil {
		return OutcomeFailed, nil, err
	}
	if err := d.progress.MarkCompleted(it.ID, voice, path); err != nil {
		return OutcomeGenerated, nil, err
	}

	d.logger.Info("Generated", "item", it.ID, "text", it.Text, "voice", voice)
	return OutcomeGenerated, nil, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
