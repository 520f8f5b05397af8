package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/voicebank/internal/words"
)

// Decision is the operator's answer to one prompt.
type Decision int

const (
	// DecisionNone is the zero value and never a valid answer
	DecisionNone Decision = iota

	// Accept keeps the current voice for the item
	Accept

	// Next moves on to the next configured voice
	Next

	// Replay plays the current voice again
	Replay

	// Skip defers the item without choosing a voice
	Skip

	// Quit ends the review session, leaving the item untouched
	Quit
)

// ErrUnknownDecision is returned by ParseDecision for unrecognized input.
var ErrUnknownDecision = errors.New("unknown decision")

// String returns the long name of the decision.
func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Next:
		return "next"
	case Replay:
		return "replay"
	case Skip:
		return "skip"
	case Quit:
		return "quit"
	default:
		return "none"
	}
}

// ParseDecision reads a decision, either its first letter or its full name,
// ignoring case and surrounding whitespace.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "accept":
		return Accept, nil
	case "n", "next":
		return Next, nil
	case "r", "replay":
		return Replay, nil
	case "s", "skip":
		return Skip, nil
	case "q", "quit":
		return Quit, nil
	default:
		return DecisionNone, fmt.Errorf("%w: %q", ErrUnknownDecision, s)
	}
}

// Prompt is what the operator is asked about.
type Prompt struct {
	Item words.Item

	// Voice is the candidate that was just played.
	Voice string

	// VoiceIndex is the 1-based position of Voice among VoiceCount
	// configured voices.
	VoiceIndex int
	VoiceCount int

	// Exhausted is set once every usable voice has been heard; Next then
	// wraps around to the first voice.
	Exhausted bool

	// Notice carries a playback or generation problem to show.
	Notice string

	// Position and Total place the item within the session.
	Position int
	Total    int
}

// DecisionSource supplies operator decisions.
type DecisionSource interface {
	Decide(ctx context.Context, p Prompt) (Decision, error)
}

// ErrScriptExhausted is returned by a ScriptedSource with no decisions left.
var ErrScriptExhausted = errors.New("no scripted decisions left")

// ScriptedSource replays a fixed list of decisions and records the prompts
// it was shown.
type ScriptedSource struct {
	decisions []Decision
	prompts   []Prompt
}

// NewScriptedSource returns a source answering with decisions in order.
func NewScriptedSource(decisions ...Decision) *ScriptedSource {
	return &ScriptedSource{decisions: decisions}
}

// Decide implements DecisionSource.
func (s *ScriptedSource) Decide(ctx context.Context, p Prompt) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return DecisionNone, err
	}
	s.prompts = append(s.prompts, p)
	if len(s.decisions) == 0 {
		return DecisionNone, ErrScriptExhausted
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

// Prompts returns every prompt shown so far.
func (s *ScriptedSource) Prompts() []Prompt {
	return append([]Prompt(nil), s.prompts...)
}

// Remaining returns the number of unused decisions.
func (s *ScriptedSource) Remaining() int {
	return len(s.decisions)
}
