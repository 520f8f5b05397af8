package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Store is the on-disk rendition cache.
type Store struct {
	root   string
	ext    string
	logger *log.Logger
}

// New creates the cache root if needed. ext is the file extension used for
// new renditions, such as ".mp3" or ".wav".
func New(root, ext string, logger *log.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if logger == nil {
		logger = log.Default()
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Store{root: root, ext: ext, logger: logger}, nil
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// Ext returns the extension of new renditions.
func (s *Store) Ext() string {
	return s.ext
}

// Path returns where the rendition of itemID in voice lives.
func (s *Store) Path(voice, itemID string) string {
	return filepath.Join(s.root, voice, itemID+s.ext)
}

// Exists reports whether the rendition is on disk. Invalid keys never exist.
func (s *Store) Exists(voice, itemID string) bool {
	if validKey(voice, itemID) != nil {
		return false
	}
	info, err := os.Stat(s.Path(voice, itemID))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Get reads a rendition.
func (s *Store) Get(voice, itemID string) ([]byte, error) {
	if err := validKey(voice, itemID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(voice, itemID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", voice, itemID, ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// ReadEntry reads a file listed by Entries, whatever its extension.
func (s *Store) ReadEntry(e Entry) ([]byte, error) {
	if err := validKey(e.Voice, e.ItemID); err != nil {
		return nil, err
	}
	if filepath.Dir(e.Path) != filepath.Join(s.root, e.Voice) {
		return nil, fmt.Errorf("%s is outside voice directory %s", e.Path, e.Voice)
	}
	data, err := os.ReadFile(e.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", e.Voice, e.ItemID, ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// Put stores a rendition and returns its path. The file appears atomically:
// readers see either the old file, no file, or the complete new one.
func (s *Store) Put(voice, itemID string, data []byte) (string, error) {
	if err := validKey(voice, itemID); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyAudio
	}

	path := s.Path(voice, itemID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create voice directory: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	s.logger.Debug("Cached rendition", "voice", voice, "item", itemID, "bytes", len(data))
	return path, nil
}

// Delete removes a rendition. Deleting a missing rendition is not an error.
func (s *Store) Delete(voice, itemID string) error {
	if err := validKey(voice, itemID); err != nil {
		return err
	}
	err := os.Remove(s.Path(voice, itemID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Voices returns the voices, in the given order, that have a rendition of
// itemID on disk.
func (s *Store) Voices(itemID string, voices []string) []string {
	var found []string
	for _, v := range voices {
		if s.Exists(v, itemID) {
			found = append(found, v)
		}
	}
	return found
}

// Entries lists every rendition on disk, whatever its extension, sorted by
// voice and then item id. Temp files and hidden files are ignored.
func (s *Store) Entries() ([]Entry, error) {
	voiceDirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var entries []Entry
	for _, vd := range voiceDirs {
		if !vd.IsDir() || strings.HasPrefix(vd.Name(), ".") {
			continue
		}
		voice := vd.Name()

		files, err := os.ReadDir(filepath.Join(s.root, voice))
		if err != nil {
			return nil, fmt.Errorf("failed to read voice directory %s: %w", voice, err)
		}
		for _, f := range files {
			name := f.Name()
			if !f.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			info, err := f.Info()
			if err != nil {
				s.logger.Warn("Skipping unreadable cache file", "voice", voice, "file", name, "err", err)
				continue
			}
			if info.Size() == 0 {
				continue
			}

			entries = append(entries, Entry{
				Voice:   voice,
				ItemID:  strings.TrimSuffix(name, filepath.Ext(name)),
				Path:    filepath.Join(s.root, voice, name),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Voice != entries[j].Voice {
			return entries[i].Voice < entries[j].Voice
		}
		return entries[i].ItemID < entries[j].ItemID
	})
	return entries, nil
}

// Stats aggregates Entries per voice.
func (s *Store) Stats() (Stats, error) {
	entries, err := s.Entries()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	byVoice := make(map[string]int)
	for _, e := range entries {
		i, ok := byVoice[e.Voice]
		if !ok {
			i = len(stats.Voices)
			byVoice[e.Voice] = i
			stats.Voices = append(stats.Voices, VoiceStats{Voice: e.Voice})
		}
		vs := &stats.Voices[i]
		vs.Count++
		vs.Bytes += e.Size
		if e.ModTime.After(vs.Newest) {
			vs.Newest = e.ModTime
		}
		stats.Count++
		stats.Bytes += e.Size
	}
	return stats, nil
}

func validKey(voice, itemID string) error {
	for _, part := range []string{voice, itemID} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %q/%q", ErrInvalidKey, voice, itemID)
		}
	}
	return nil
}

// writeFile writes to a temp file next to path, syncs it and renames it into
// place.
func writeFile(path string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tempPath := file.Name()

	_, err = file.Write(data)
	if err == nil {
		err = file.Sync()
	}
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}
