// Package words loads the word lists that feed a generation campaign.
// Lists may be JSON, YAML, TOML or Markdown bullet lists and are reduced to the id/text pairs the
// rest of the pipeline consumes.
package words

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Common errors for word list loading
var (
	// ErrEmptyList is returned when a word list contains no entries
	ErrEmptyList = errors.New("word list is empty")

	// ErrMissingID is returned when an entry has no id
	ErrMissingID = errors.New("word has no id")

	// ErrMissingText is returned when an entry has no text
	ErrMissingText = errors.New("word has no text")

	// ErrInvalidID is returned when an id cannot be used as a file name
	ErrInvalidID = errors.New("word id contains a path separator")

	// ErrUnsupportedFormat is returned for unknown file extensions
	ErrUnsupportedFormat = errors.New("unsupported word list format")
)

// Word is a source record as produced by the extraction step.
type Word struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Text     string `json:"text" yaml:"text" toml:"text"`
	Year     int    `json:"year,omitempty" yaml:"year,omitempty" toml:"year,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
}

// Item is the unit of work of a campaign: one text to be voiced.
type Item struct {
	ID   string
	Text string
}

// Item reduces a word to the fields the pipeline needs.
func (w Word) Item() Item {
	return Item{ID: w.ID, Text: w.Text}
}

// Items converts a word list, preserving order.
func Items(words []Word) []Item {
	items := make([]Item, 0, len(words))
	for _, w := range words {
		items = append(items, w.Item())
	}
	return items
}

// listDoc is the wrapped form accepted by every format: {"words": [...]}.
type listDoc struct {
	Words []Word `json:"words" yaml:"words" toml:"words"`
}

// Load reads a word list, picking the decoder from the file extension.
func Load(path string) ([]Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read word list: %w", err)
	}

	words, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

// LoadItems is Load followed by Items.
func LoadItems(path string) ([]Item, error) {
	words, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Items(words), nil
}

// Parse decodes a word list. format is a file extension such as ".json".
func Parse(data []byte, format string) ([]Word, error) {
	var (
		words []Word
		err   error
	)

	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		words, err = parseJSON(data)
	case "yaml", "yml":
		words, err = parseYAML(data)
	case "toml":
		var doc listDoc
		err = toml.Unmarshal(data, &doc)
		words = doc.Words
	case "md", "markdown":
		words, err = parseMarkdown(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode word list: %w", err)
	}

	return clean(words)
}

func parseJSON(data []byte) ([]Word, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var words []Word
		err := json.Unmarshal(data, &words)
		return words, err
	}
	var doc listDoc
	err := json.Unmarshal(data, &doc)
	return doc.Words, err
}

func parseYAML(data []byte) ([]Word, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	if node.Content[0].Kind == yaml.SequenceNode {
		var words []Word
		err := node.Decode(&words)
		return words, err
	}
	var doc listDoc
	err := node.Decode(&doc)
	return doc.Words, err
}

// clean normalizes ids and texts and rejects unusable entries.
func clean(words []Word) ([]Word, error) {
	if len(words) == 0 {
		return nil, ErrEmptyList
	}

	out := make([]Word, 0, len(words))
	for i, w := range words {
		w.ID = normalize(w.ID)
		w.Text = normalize(w.Text)
		w.Category = normalize(w.Category)

		switch {
		case w.ID == "":
			return nil, fmt.Errorf("entry %d: %w", i, ErrMissingID)
		case strings.ContainsAny(w.ID, `/\`) || w.ID == "." || w.ID == "..":
			return nil, fmt.Errorf("entry %d (%q): %w", i, w.ID, ErrInvalidID)
		case w.Text == "":
			return nil, fmt.Errorf("entry %d (%q): %w", i, w.ID, ErrMissingText)
		}
		out = append(out, w)
	}
	return out, nil
}

func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
