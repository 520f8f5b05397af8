// Package status summarizes a campaign from its progress document and the
// rendition cache.
package status

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/voicebank/internal/cache"
	"github.com/dgnsrekt/voicebank/internal/progress"
	"github.com/dgnsrekt/voicebank/internal/words"
)

// Row is one item as shown in listings.
type Row struct {
	ItemID    string
	Text      string
	Status    progress.Status
	Voice     string
	Voices    int
	Attempts  int
	LastError string
	Reviewed  bool
	Uploaded  bool
}

// Report is a point-in-time campaign summary.
type Report struct {
	SessionID     string
	StartedAt     time.Time
	LastUpdatedAt time.Time

	Total     int
	Pending   int
	Completed int
	Failed    int
	Skipped   int
	Reviewed  int
	Uploaded  int

	Cache cache.Stats
	Rows  []Row

	now time.Time
}

// Build assembles a report. items supplies display texts and may be nil.
func Build(doc *progress.Document, stats cache.Stats, items []words.Item, now time.Time) *Report {
	texts := make(map[string]string, len(items))
	for _, it := range items {
		texts[it.ID] = it.Text
	}

	r := &Report{
		SessionID:     doc.SessionID,
		StartedAt:     doc.StartedAt,
		LastUpdatedAt: doc.LastUpdatedAt,
		Total:         max(doc.TotalItems, len(doc.Items)),
		Cache:         stats,
		now:           now,
	}

	for id, p := range doc.Items {
		text := texts[id]
		if text == "" {
			text = id
		}
		row := Row{
			ItemID:    id,
			Text:      text,
			Status:    p.Status,
			Voice:     p.VoiceUsed,
			Voices:    len(p.GeneratedVoices),
			Attempts:  p.Attempts,
			LastError: p.LastError,
			Reviewed:  p.ReviewedAt != nil,
			Uploaded:  p.Uploaded,
		}
		r.Rows = append(r.Rows, row)

		switch p.Status {
		case progress.StatusCompleted:
			r.Completed++
		case progress.StatusFailed:
			r.Failed++
		case progress.StatusSkipped:
			r.Skipped++
		default:
			r.Pending++
		}
		if row.Reviewed {
			r.Reviewed++
		}
		if row.Uploaded {
			r.Uploaded++
		}
	}

	slices.SortFunc(r.Rows, func(a, b Row) int {
		return cmp.Compare(a.ItemID, b.ItemID)
	})
	return r
}

// FailedRows returns the failed items.
func (r *Report) FailedRows() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Status == progress.StatusFailed {
			out = append(out, row)
		}
	}
	return out
}

type rowSource []Row

func (s rowSource) String(i int) string { return s[i].ItemID + " " + s[i].Text }
func (s rowSource) Len() int            { return len(s) }

// Find returns the rows matching query, best match first.
func (r *Report) Find(query string) []Row {
	matches := fuzzy.FindFrom(query, rowSource(r.Rows))
	out := make([]Row, 0, len(matches))
	for _, m := range matches {
		out = append(out, r.Rows[m.Index])
	}
	return out
}

// Texts joins the rows' texts one per line.
func Texts(rows []Row) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Report) percent(n int) string {
	if r.Total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)*100/float64(r.Total))
}

func (r *Report) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, r.now, "ago", "from now")
}

// WriteText prints the summary and the per-voice cache table.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Session    %s\n", r.SessionID)
	fmt.Fprintf(&b, "Started    %s\n", r.ago(r.StartedAt))
	fmt.Fprintf(&b, "Updated    %s\n\n", r.ago(r.LastUpdatedAt))

	fmt.Fprintf(&b, "Items      %s\n", humanize.Comma(int64(r.Total)))
	fmt.Fprintf(&b, "Completed  %d (%s)\n", r.Completed, r.percent(r.Completed))
	fmt.Fprintf(&b, "Reviewed   %d (%s)\n", r.Reviewed, r.percent(r.Reviewed))
	fmt.Fprintf(&b, "Uploaded   %d (%s)\n", r.Uploaded, r.percent(r.Uploaded))
	fmt.Fprintf(&b, "Skipped    %d\n", r.Skipped)
	fmt.Fprintf(&b, "Failed     %d\n", r.Failed)
	fmt.Fprintf(&b, "Pending    %d\n\n", r.Pending)

	rows := [][]string{{"VOICE", "FILES", "SIZE", "NEWEST"}}
	for _, v := range r.Cache.Voices {
		rows = append(rows, []string{v.Voice, humanize.Comma(int64(v.Count)), humanize.Bytes(uint64(v.Bytes)), r.ago(v.Newest)})
	}
	rows = append(rows, []string{"total", humanize.Comma(int64(r.Cache.Count)), humanize.Bytes(uint64(r.Cache.Bytes)), ""})
	writeTable(&b, rows)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteRows prints rows as a table.
func WriteRows(w io.Writer, rows []Row) error {
	table := [][]string{{"ID", "TEXT", "STATUS", "VOICE", "TRIES", "ERROR"}}
	for _, row := range rows {
		table = append(table, []string{
			row.ItemID,
			runewidth.Truncate(row.Text, 32, "…"),
			string(row.Status),
			row.Voice,
			fmt.Sprint(row.Attempts),
			runewidth.Truncate(row.LastError, 48, "…"),
		})
	}

	var b strings.Builder
	writeTable(&b, table)
	_, err := io.WriteString(w, b.String())
	return err
}

// writeTable pads columns by display width so wide characters line up.
func writeTable(b *strings.Builder, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				line.WriteString(cell)
				break
			}
			line.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Campaign status\n\n")
	fmt.Fprintf(&b, "Session `%s`, started %s, updated %s.\n\n", r.SessionID, r.ago(r.StartedAt), r.ago(r.LastUpdatedAt))

	b.WriteString("| | Items | Share |\n|---|---:|---:|\n")
	for _, line := range []struct {
		name string
		n    int
	}{
		{"Completed", r.Completed},
		{"Reviewed", r.Reviewed},
		{"Uploaded", r.Uploaded},
		{"Skipped", r.Skipped},
		{"Failed", r.Failed},
		{"Pending", r.Pending},
	} {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", line.name, line.n, r.percent(line.n))
	}

	b.WriteString("\n## Cache\n\n| Voice | Files | Size |\n|---|---:|---:|\n")
	for _, v := range r.Cache.Voices {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", v.Voice, v.Count, humanize.Bytes(uint64(v.Bytes)))
	}

	if failed := r.FailedRows(); len(failed) > 0 {
		b.WriteString("\n## Failed\n\n")
		for _, row := range failed {
			fmt.Fprintf(&b, "- **%s** (%d attempts): %s\n", row.Text, row.Attempts, row.LastError)
		}
	}
	return b.String()
}
