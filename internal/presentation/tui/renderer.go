package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer when out is a terminal and a
// pass-through renderer otherwise, so piped output stays plain markdown.
func NewRenderer(out io.Writer) Renderer {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return plain
	}

	width := 100
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
		width = w - 4
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return plain
	}
	return r.Render
}

func plain(markdown string) (string, error) {
	return markdown, nil
}
