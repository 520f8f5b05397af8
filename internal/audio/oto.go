//go:build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const otoAvailable = true

// OtoPlayer plays 16-bit PCM WAV files on the default output device.
//
// oto allows one context per process, so the sample rate and channel count
// are fixed by the first file played. Later files in another format are
// rejected with ErrUnsupportedFormat.
type OtoPlayer struct {
	mu     sync.Mutex
	ctx    *oto.Context
	format Format
}

// NewOtoPlayer returns a player; the device is opened on first use.
func NewOtoPlayer() *OtoPlayer {
	return &OtoPlayer{}
}

// Play decodes path and blocks until the audio has been played.
func (p *OtoPlayer) Play(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	f, pcm, err := ParseWAV(data)
	if err != nil {
		return err
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, f.BitsPerSample)
	}
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureContext(f); err != nil {
		return err
	}

	// pcm must stay referenced until the player is closed.
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (p *OtoPlayer) ensureContext(f Format) error {
	if p.ctx != nil {
		if f.SampleRate != p.format.SampleRate || f.Channels != p.format.Channels {
			return fmt.Errorf("%w: %d Hz/%d ch after device opened at %d Hz/%d ch",
				ErrUnsupportedFormat, f.SampleRate, f.Channels, p.format.SampleRate, p.format.Channels)
		}
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	p.ctx = ctx
	p.format = f
	return nil
}
