package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// defaultCommands are tried in order when no command is configured. Each
// plays the file given as its last argument and exits when done.
var defaultCommands = [][]string{
	{"afplay"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"mpv", "--no-video", "--really-quiet"},
	{"mpg123", "-q"},
	{"aplay", "-q"},
}

// CommandPlayer plays files through an external program.
type CommandPlayer struct {
	name string
	args []string
}

// NewCommandPlayer resolves command, or the first installed default player
// when command is empty.
func NewCommandPlayer(command string) (*CommandPlayer, error) {
	if fields := strings.Fields(command); len(fields) > 0 {
		path, err := exec.LookPath(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s not found", ErrNoPlayer, fields[0])
		}
		return &CommandPlayer{name: path, args: fields[1:]}, nil
	}

	for _, c := range defaultCommands {
		if path, err := exec.LookPath(c[0]); err == nil {
			return &CommandPlayer{name: path, args: c[1:]}, nil
		}
	}
	return nil, fmt.Errorf("%w: install one of afplay, ffplay, mpv, mpg123 or aplay", ErrNoPlayer)
}

// Command returns the resolved program and its fixed arguments.
func (p *CommandPlayer) Command() (string, []string) {
	return p.name, p.args
}

// Play runs the command on path and waits for it to exit. Cancelling ctx
// kills the process.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	args := append(append([]string{}, p.args...), path)
	cmd := exec.CommandContext(ctx, p.name, args...) //nolint:gosec

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("player failed: %w\nstderr: %s", err, msg)
		}
		return fmt.Errorf("player failed: %w", err)
	}
	return nil
}
