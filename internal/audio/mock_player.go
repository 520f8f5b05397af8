package audio

import (
	"context"
	"sync"
)

// MockPlayer records plays without producing sound.
type MockPlayer struct {
	mu    sync.Mutex
	plays []string

	// Err, when set, is returned by every Play after recording it.
	Err error

	// OnPlay is called with each path, if set.
	OnPlay func(path string)
}

// NewMockPlayer returns an empty mock.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play records path.
func (m *MockPlayer) Play(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.plays = append(m.plays, path)
	cb, err := m.OnPlay, m.Err
	m.mu.Unlock()

	if cb != nil {
		cb(path)
	}
	return err
}

// Plays returns every path played so far, in order.
func (m *MockPlayer) Plays() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.plays...)
}

// PlayCount returns the number of plays.
func (m *MockPlayer) PlayCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plays)
}

// Reset forgets recorded plays.
func (m *MockPlayer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays = nil
}
