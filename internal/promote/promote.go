// Package promote copies cached renditions to durable object storage.
//
// Promotion is driven by what is on disk in the cache, not by progress
// status, so files staged by hand are uploaded too.
package promote

import (
	"context"
	"errors"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voicebank/internal/cache"
	"github.com/dgnsrekt/voicebank/internal/progress"
)

// DefaultCacheControl marks uploaded renditions as immutable for a year.
const DefaultCacheControl = "public, max-age=31536000, immutable"

// ObjectStore is the destination of an upload.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
}

// Candidate is one cached file to upload.
type Candidate struct {
	ItemID string
	Voice  string
	Path   string
	Key    string
}

// ID names the candidate in reports.
func (c Candidate) ID() string {
	return c.Voice + "/" + c.ItemID
}

// Report summarizes an upload.
type Report struct {
	Uploaded  int
	Failed    int
	Total     int
	FailedIDs []string

	// Interrupted is set when the upload stopped early on cancellation.
	Interrupted bool
}

// Config holds the promoter's settings.
type Config struct {
	Prefix       string
	CacheControl string
}

// Promoter uploads cached renditions.
type Promoter struct {
	cache    *cache.Store
	progress *progress.Store
	store    ObjectStore
	config   Config
	logger   *log.Logger
}

// New creates a promoter. prog may be nil, in which case nothing is marked
// uploaded.
func New(store ObjectStore, files *cache.Store, prog *progress.Store, config Config, logger *log.Logger) (*Promoter, error) {
	if store == nil || files == nil {
		return nil, errors.New("object store and cache are required")
	}
	if config.CacheControl == "" {
		config.CacheControl = DefaultCacheControl
	}
	config.Prefix = strings.Trim(config.Prefix, "/")
	if logger == nil {
		logger = log.Default()
	}
	return &Promoter{
		cache:    files,
		progress: prog,
		store:    store,
		config:   config,
		logger:   logger,
	}, nil
}

// Key returns the object key for voice and itemID with extension ext.
func (p *Promoter) Key(voice, itemID, ext string) string {
	name := path.Join(voice, itemID+ext)
	if p.config.Prefix == "" {
		return name
	}
	return p.config.Prefix + "/" + name
}

// Collect returns every rendition present in the cache, sorted by voice then
// item id.
func (p *Promoter) Collect() ([]Candidate, error) {
	entries, err := p.cache.Entries()
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, Candidate{
			ItemID: e.ItemID,
			Voice:  e.Voice,
			Path:   e.Path,
			Key:    p.Key(e.Voice, e.ItemID, filepath.Ext(e.Path)),
		})
	}
	return candidates, nil
}

// Upload puts each candidate in order. Per-file failures are logged and
// counted; a progress write failure stops the upload and is returned.
func (p *Promoter) Upload(ctx context.Context, candidates []Candidate) (Report, error) {
	report := Report{Total: len(candidates)}

	for _, c := range candidates {
		if ctx.Err() != nil {
			report.Interrupted = true
			p.logger.Warn("upload interrupted", "uploaded", report.Uploaded, "remaining", report.Total-report.Uploaded-report.Failed)
			break
		}

		if err := p.put(ctx, c); err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, c.ID())
			p.logger.Error("upload failed", "item", c.ItemID, "voice", c.Voice, "err", err)
			continue
		}
		report.Uploaded++
		p.logger.Debug("uploaded", "key", c.Key)

		if err := p.markUploaded(c); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (p *Promoter) put(ctx context.Context, c Candidate) error {
	data, err := p.cache.ReadEntry(cache.Entry{Voice: c.Voice, ItemID: c.ItemID, Path: c.Path})
	if err != nil {
		return err
	}
	return p.store.Put(context.WithoutCancel(ctx), c.Key, data, ContentType(c.Path), p.config.CacheControl)
}

// markUploaded flags the item when the uploaded voice is the accepted one,
// or when no voice has been accepted yet.
func (p *Promoter) markUploaded(c Candidate) error {
	if p.progress == nil {
		return nil
	}
	item, ok := p.progress.Item(c.ItemID)
	if !ok {
		return nil
	}
	if item.VoiceUsed != "" && item.VoiceUsed != c.Voice {
		return nil
	}
	return p.progress.MarkUploaded(c.ItemID)
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".ulaw": "audio/basic",
	".alaw": "audio/basic",
	".pcm":  "audio/L16",
}

// ContentType guesses the MIME type of a rendition from its extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
