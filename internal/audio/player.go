package audio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Common playback errors
var (
	// ErrUnsupportedFormat is returned when a player cannot decode a file
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoPlayer is returned when no playback backend is available
	ErrNoPlayer = errors.New("no audio player available")
)

// Player plays one file and blocks until playback ends or ctx is done.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Kind selects a playback backend.
type Kind string

const (
	// KindAuto plays WAV through oto and everything else through a command
	KindAuto Kind = "auto"

	// KindOto always uses oto; only PCM WAV files play
	KindOto Kind = "oto"

	// KindCommand always uses an external command
	KindCommand Kind = "command"

	// KindNone disables playback; Play returns immediately
	KindNone Kind = "none"
)

// ParseKind validates a configured player name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAuto, KindOto, KindCommand, KindNone:
		return k, nil
	case "":
		return KindAuto, nil
	default:
		return "", fmt.Errorf("unknown player %q: use auto, oto, command or none", s)
	}
}

// New builds the player for kind. command overrides the external command
// lookup and may carry arguments, such as "mpv --really-quiet".
func New(kind Kind, command string) (Player, error) {
	switch kind {
	case KindNone:
		return silent{}, nil
	case KindCommand:
		return NewCommandPlayer(command)
	case KindOto:
		if !otoAvailable {
			return nil, fmt.Errorf("%w: built without oto support", ErrNoPlayer)
		}
		return NewOtoPlayer(), nil
	case KindAuto, "":
		cmd, err := NewCommandPlayer(command)
		if err != nil && !otoAvailable {
			return nil, err
		}
		return &autoPlayer{oto: NewOtoPlayer(), command: cmd}, nil
	default:
		return nil, fmt.Errorf("unknown player %q", kind)
	}
}

// autoPlayer routes WAV files to oto and everything else to a command.
type autoPlayer struct {
	oto     *OtoPlayer
	command *CommandPlayer
}

func (p *autoPlayer) Play(ctx context.Context, path string) error {
	if otoAvailable && strings.EqualFold(filepath.Ext(path), ".wav") {
		err := p.oto.Play(ctx, path)
		if !errors.Is(err, ErrUnsupportedFormat) || p.command == nil {
			return err
		}
	}
	if p.command == nil {
		return fmt.Errorf("%w for %s", ErrNoPlayer, filepath.Ext(path))
	}
	return p.command.Play(ctx, path)
}

type silent struct{}

func (silent) Play(context.Context, string) error { return nil }
