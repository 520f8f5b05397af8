package words

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
	}{
		{
			name:   "json array",
			format: ".json",
			data:   `[{"id":"a","text":"apple","year":1,"category":"fruit"},{"id":"b","text":"ball"}]`,
		},
		{
			name:   "json wrapped",
			format: "json",
			data:   `{"words":[{"id":"a","text":"apple","year":1,"category":"fruit"},{"id":"b","text":"ball"}]}`,
		},
		{
			name:   "yaml list",
			format: ".yaml",
			data:   "- id: a\n  text: apple\n  year: 1\n  category: fruit\n- id: b\n  text: ball\n",
		},
		{
			name:   "yaml wrapped",
			format: ".yml",
			data:   "words:\n  - id: a\n    text: apple\n    year: 1\n    category: fruit\n  - id: b\n    text: ball\n",
		},
		{
			name:   "toml tables",
			format: ".toml",
			data:   "[[words]]\nid = \"a\"\ntext = \"apple\"\nyear = 1\ncategory = \"fruit\"\n\n[[words]]\nid = \"b\"\ntext = \"ball\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(words) != 2 {
				t.Fatalf("got %d words, want 2", len(words))
			}
			if words[0] != (Word{ID: "a", Text: "apple", Year: 1, Category: "fruit"}) {
				t.Errorf("first word = %+v", words[0])
			}
			if words[1].ID != "b" || words[1].Text != "ball" {
				t.Errorf("second word = %+v", words[1])
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty list", `[]`, ErrEmptyList},
		{"missing id", `[{"text":"apple"}]`, ErrMissingID},
		{"blank text", `[{"id":"a","text":"   "}]`, ErrMissingText},
		{"path in id", `[{"id":"../a","text":"apple"}]`, ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), ".json")
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("a,b"), ".csv"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("csv error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParse_NormalizesText(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	words, err := Parse([]byte(`[{"id":" cafe ","text":"  cafe\u0301 "}]`), ".json")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if words[0].ID != "cafe" {
		t.Errorf("id = %q, want trimmed", words[0].ID)
	}
	if words[0].Text != "caf\u00e9" {
		t.Errorf("text = %q, want NFC form", words[0].Text)
	}
}

func TestLoadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	if err := os.WriteFile(path, []byte(`[{"id":"a","text":"apple","year":3}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := LoadItems(path)
	if err != nil {
		t.Fatalf("LoadItems failed: %v", err)
	}
	if len(items) != 1 || items[0] != (Item{ID: "a", Text: "apple"}) {
		t.Errorf("items = %+v", items)
	}

	if _, err := LoadItems(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
