package words

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// parseMarkdown reads words from bullet lists. A list item that starts with
// a code span uses it as the id ("- `ice-cream` ice cream"); otherwise the
// id is derived from the text. Headings set the category of the items below
// them. Nested lists are ignored.
func parseMarkdown(data []byte) ([]Word, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(data))

	var (
		words    []Word
		category string
	)
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.Heading:
			category = inlineText(n, data)
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			block := n.FirstChild()
			if block == nil || block.FirstChild() == nil {
				return ast.WalkSkipChildren, nil
			}
			w := Word{Category: category}
			if code, ok := block.FirstChild().(*ast.CodeSpan); ok {
				w.ID = inlineText(code, data)
				w.Text = siblingText(code.NextSibling(), data)
			} else {
				w.Text = inlineText(block, data)
				w.ID = slug(w.Text)
			}
			words = append(words, w)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return words, err
}

func inlineText(n ast.Node, src []byte) string {
	return siblingText(n.FirstChild(), src)
}

func siblingText(n ast.Node, src []byte) string {
	var b strings.Builder
	for ; n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		default:
			b.WriteString(inlineText(n, src))
		}
	}
	return strings.TrimSpace(b.String())
}

// slug lowercases s and joins its words with dashes.
func slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '/' || r == '\\'
	})
	return strings.Join(fields, "-")
}
