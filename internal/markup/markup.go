// Package markup turns the small inline grammar allowed in posts into styled
// terminal text: **bold** and _italic_. Unmatched markers are kept literally.
package markup

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Span is a run of text with uniform styling.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
}

// Parse splits text into spans.
func Parse(text string) []Span {
	var (
		spans        []Span
		buf          strings.Builder
		bold, italic bool
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = append(spans, Span{Text: buf.String(), Bold: bold, Italic: italic})
		buf.Reset()
	}

	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "**") && (bold || strings.Contains(text[i+2:], "**")):
			flush()
			bold = !bold
			i += 2
		case text[i] == '_' && (italic || strings.Contains(text[i+1:], "_")):
			flush()
			italic = !italic
			i++
		default:
			buf.WriteByte(text[i])
			i++
		}
	}
	flush()
	return spans
}

// Plain returns text with markers removed.
func Plain(text string) string {
	var b strings.Builder
	for _, s := range Parse(text) {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Render styles text on top of base.
func Render(text string, base lipgloss.Style) string {
	var b strings.Builder
	for _, s := range Parse(text) {
		style := base
		if s.Bold {
			style = style.Bold(true)
		}
		if s.Italic {
			style = style.Italic(true)
		}
		b.WriteString(style.Render(s.Text))
	}
	return b.String()
}
