package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders assistant replies, rebuilding the glamour renderer when the width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func (r *markdownRenderer) render(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(max(20, width-4)),
		)
		if err != nil {
			return text
		}
		r.renderer = renderer
		r.width = width
	}

	out, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
