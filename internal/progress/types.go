package progress

import (
	"slices"
	"time"
)

// DocumentVersion is written into every new progress document.
const DocumentVersion = "1.0"

// Status is the lifecycle state of one item.
type Status string

const (
	// StatusPending means no rendition has been produced yet
	StatusPending Status = "pending"

	// StatusCompleted means a rendition exists and VoiceUsed names it
	StatusCompleted Status = "completed"

	// StatusFailed means the last generation attempt failed
	StatusFailed Status = "failed"

	// StatusSkipped means the operator deferred the item during review
	StatusSkipped Status = "skipped"
)

// ItemProgress is the persisted state of one item.
type ItemProgress struct {
	ItemID          string     `json:"itemId"`
	Status          Status     `json:"status"`
	VoiceUsed       string     `json:"voiceUsed,omitempty"`
	GeneratedVoices []string   `json:"generatedVoices"`
	LocalAudioPath  string     `json:"localAudioPath,omitempty"`
	Uploaded        bool       `json:"uploaded"`
	Attempts        int        `json:"attempts"`
	LastError       string     `json:"lastError,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
}

// HasVoice reports whether voice was ever generated for the item.
func (p *ItemProgress) HasVoice(voice string) bool {
	return slices.Contains(p.GeneratedVoices, voice)
}

// addVoice appends voice unless it is already recorded. The list only grows.
func (p *ItemProgress) addVoice(voice string) {
	if voice == "" || p.HasVoice(voice) {
		return
	}
	p.GeneratedVoices = append(p.GeneratedVoices, voice)
}

func (p *ItemProgress) clone() *ItemProgress {
	c := *p
	c.GeneratedVoices = slices.Clone(p.GeneratedVoices)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

// Document is the whole progress file of one campaign.
type Document struct {
	Version        string                   `json:"version"`
	SessionID      string                   `json:"sessionId"`
	StartedAt      time.Time                `json:"startedAt"`
	LastUpdatedAt  time.Time                `json:"lastUpdatedAt"`
	TotalItems     int                      `json:"totalItems"`
	CompletedCount int                      `json:"completedCount"`
	FailedCount    int                      `json:"failedCount"`
	SkippedCount   int                      `json:"skippedCount"`
	Items          map[string]*ItemProgress `json:"items"`
}

// recount derives the aggregate counters from the item map. It never adjusts
// counters incrementally so they cannot drift from the items.
func (d *Document) recount() {
	d.CompletedCount, d.FailedCount, d.SkippedCount = 0, 0, 0
	for _, item := range d.Items {
		switch item.Status {
		case StatusCompleted:
			d.CompletedCount++
		case StatusFailed:
			d.FailedCount++
		case StatusSkipped:
			d.SkippedCount++
		}
	}
}

// clone returns a deep copy safe to hand to readers.
func (d *Document) clone() *Document {
	c := *d
	c.Items = make(map[string]*ItemProgress, len(d.Items))
	for id, item := range d.Items {
		c.Items[id] = item.clone()
	}
	return &c
}
