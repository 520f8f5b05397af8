// Package progress persists the per-item state of a generation campaign as a
// single JSON document. Every mutation rewrites the whole document through a
// temp file and a rename, so a crash loses at most the update in flight.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/voicebank/internal/words"
)

// ErrEmptyItemID is returned when a mutation names no item.
var ErrEmptyItemID = errors.New("item id cannot be empty")

// Store owns the progress document of one campaign. It is not safe for
// concurrent use; the pipeline runs one operation at a time.
type Store struct {
	path   string
	doc    *Document
	now    func() time.Time
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads the document at path. A missing file yields a fresh document.
// A corrupt file is moved aside and also yields a fresh document: the cache,
// not this file, is the record of what audio exists.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("progress file path cannot be empty")
	}

	s := &Store{
		path:   path,
		now:    time.Now,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

// Path returns the location of the progress file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.fresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read progress file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.quarantine(err)
		return s.fresh(), nil
	}

	// Tolerate documents written by older versions or edited by hand.
	if doc.Items == nil {
		doc.Items = make(map[string]*ItemProgress)
	}
	for id, item := range doc.Items {
		if item == nil {
			delete(doc.Items, id)
			continue
		}
		if item.ItemID == "" {
			item.ItemID = id
		}
		if item.Status == "" {
			item.Status = StatusPending
		}
	}
	if doc.Version == "" {
		doc.Version = DocumentVersion
	}
	if doc.SessionID == "" {
		doc.SessionID = uuid.NewString()
	}
	doc.recount()

	return &doc, nil
}

// quarantine moves an unreadable progress file out of the way so it can be
// inspected by hand instead of being overwritten.
func (s *Store) quarantine(cause error) {
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, aside); err != nil {
		s.logger.Warn("Progress file is corrupt and could not be moved aside",
			"path", s.path, "err", cause, "renameErr", err)
		return
	}
	s.logger.Warn("Progress file is corrupt, starting a fresh document",
		"path", s.path, "movedTo", aside, "err", cause)
}

func (s *Store) fresh() *Document {
	now := s.now().UTC()
	return &Document{
		Version:       DocumentVersion,
		SessionID:     uuid.NewString(),
		StartedAt:     now,
		LastUpdatedAt: now,
		Items:         make(map[string]*ItemProgress),
	}
}

// Save writes the full document. The counters are recomputed first.
func (s *Store) Save() error {
	s.doc.recount()
	s.doc.LastUpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode progress: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("unable to save progress: %w", err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
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

// Document returns a copy of the current document.
func (s *Store) Document() *Document {
	return s.doc.clone()
}

// Item returns a copy of the item's progress.
func (s *Store) Item(itemID string) (*ItemProgress, bool) {
	item, ok := s.doc.Items[itemID]
	if !ok {
		return nil, false
	}
	return item.clone(), true
}

// Upsert applies mutate to the existing entry, or to a new pending one, and
// persists the document.
func (s *Store) Upsert(itemID string, mutate func(*ItemProgress)) error {
	if itemID == "" {
		return ErrEmptyItemID
	}

	item, ok := s.doc.Items[itemID]
	if !ok {
		item = &ItemProgress{
			ItemID:          itemID,
			Status:          StatusPending,
			GeneratedVoices: []string{},
		}
		s.doc.Items[itemID] = item
	}
	if mutate != nil {
		mutate(item)
	}
	item.ItemID = itemID

	return s.Save()
}

// MarkCompleted records a usable rendition for the item.
func (s *Store) MarkCompleted(itemID, voice, path string) error {
	now := s.now().UTC()
	return s.Upsert(itemID, func(p *ItemProgress) {
		p.Status = StatusCompleted
		p.VoiceUsed = voice
		p.LocalAudioPath = path
		p.CompletedAt = &now
		p.LastError = ""
		p.addVoice(voice)
	})
}

// MarkReviewed records the operator's accepted rendition.
func (s *Store) MarkReviewed(itemID, voice, path string) error {
	now := s.now().UTC()
	return s.Upsert(itemID, func(p *ItemProgress) {
		p.Status = StatusCompleted
		p.VoiceUsed = voice
		p.LocalAudioPath = path
		p.CompletedAt = &now
		p.ReviewedAt = &now
		p.LastError = ""
		p.addVoice(voice)
	})
}

// MarkFailed records a failed generation attempt. Generated voices are kept.
func (s *Store) MarkFailed(itemID string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.Upsert(itemID, func(p *ItemProgress) {
		p.Status = StatusFailed
		p.Attempts++
		p.LastError = msg
	})
}

// MarkSkipped defers the item. Nothing but the status changes.
func (s *Store) MarkSkipped(itemID string) error {
	return s.Upsert(itemID, func(p *ItemProgress) {
		p.Status = StatusSkipped
	})
}

// MarkUploaded flags the item as promoted to object storage.
func (s *Store) MarkUploaded(itemID string) error {
	return s.Upsert(itemID, func(p *ItemProgress) {
		p.Uploaded = true
	})
}

// AddGeneratedVoice appends voice to the item's generated voices.
func (s *Store) AddGeneratedVoice(itemID, voice string) error {
	return s.Upsert(itemID, func(p *ItemProgress) {
		p.addVoice(voice)
	})
}

// Initialize makes sure every item has an entry and records the campaign
// size. Existing entries are left alone, so repeated campaigns over a superset
// of items are safe.
func (s *Store) Initialize(items []words.Item) error {
	for _, it := range items {
		if it.ID == "" {
			return ErrEmptyItemID
		}
		if _, ok := s.doc.Items[it.ID]; ok {
			continue
		}
		s.doc.Items[it.ID] = &ItemProgress{
			ItemID:          it.ID,
			Status:          StatusPending,
			GeneratedVoices: []string{},
		}
	}
	s.doc.TotalItems = len(items)

	return s.Save()
}
