package cache

import (
	"errors"
	"path/filepath"
	"time"
)

// Common errors for cache operations
var (
	// ErrCacheMiss is returned when a rendition is not present on disk
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidKey is returned when a voice or item id cannot be used as a
	// path component
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrEmptyAudio is returned when asked to store zero bytes
	ErrEmptyAudio = errors.New("audio data is empty")
)

// Entry describes one cached rendition.
type Entry struct {
	Voice   string
	ItemID  string
	Path    string
	Size    int64
	ModTime time.Time
}

// Name is the entry's location relative to the cache root, using forward
// slashes: {voice}/{itemId}{ext}.
func (e Entry) Name() string {
	return e.Voice + "/" + e.ItemID + filepath.Ext(e.Path)
}

// VoiceStats summarizes the renditions of one voice.
type VoiceStats struct {
	Voice  string
	Count  int
	Bytes  int64
	Newest time.Time
}

// Stats summarizes the whole cache.
type Stats struct {
	Voices []VoiceStats
	Count  int
	Bytes  int64
}
