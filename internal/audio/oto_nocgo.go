//go:build nocgo

package audio

import (
	"context"
	"fmt"
)

const otoAvailable = false

// OtoPlayer is unavailable in builds without cgo.
type OtoPlayer struct{}

// NewOtoPlayer returns a player whose Play always fails.
func NewOtoPlayer() *OtoPlayer {
	return &OtoPlayer{}
}

// Play always returns ErrNoPlayer.
func (p *OtoPlayer) Play(context.Context, string) error {
	return fmt.Errorf("%w: built without oto support", ErrNoPlayer)
}
