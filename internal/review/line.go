package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// LineSource reads one decision per line. It is used when stdin is not a
// terminal, for example when decisions are piped in from a file.
type LineSource struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLineSource reads from in and writes prompts to out.
func NewLineSource(in io.Reader, out io.Writer) *LineSource {
	return &LineSource{in: bufio.NewReader(in), out: out}
}

// Decide prints p and reads lines until one parses. End of input quits.
func (s *LineSource) Decide(ctx context.Context, p Prompt) (Decision, error) {
	if p.Notice != "" {
		fmt.Fprintf(s.out, "  ! %s\n", p.Notice)
	}
	for {
		if err := ctx.Err(); err != nil {
			return DecisionNone, err
		}

		fmt.Fprintf(s.out, "%s [a/n/r/s/q]: ", describe(p))

		line, err := s.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return DecisionNone, err
		}
		if line == "" && errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return Quit, nil
		}

		d, perr := ParseDecision(line)
		if perr == nil {
			return d, nil
		}
		fmt.Fprintln(s.out, "  please answer accept, next, replay, skip or quit")
		if errors.Is(err, io.EOF) {
			return Quit, nil
		}
	}
}

// describe renders the item and candidate voice on one line.
func describe(p Prompt) string {
	s := fmt.Sprintf("%q · %s (%d/%d)", p.Item.Text, p.Voice, p.VoiceIndex, p.VoiceCount)
	if p.Total > 0 {
		s = fmt.Sprintf("[%d/%d] %s", p.Position, p.Total, s)
	}
	if p.Exhausted {
		s += " (all voices heard, next wraps around)"
	}
	return s
}
