package status

import (
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

const defaultWordWrap = 80

// RenderOptions tunes Render.
type RenderOptions struct {
	// Width is the word-wrap column; zero uses 80.
	Width int

	// Plain renders without colors, for pipes and files.
	Plain bool
}

func renderStyle(plain bool) ansi.StyleConfig {
	if plain {
		return styles.NoTTYStyleConfig
	}
	style := styles.DarkStyleConfig
	if !lipgloss.HasDarkBackground(os.Stdin, os.Stdout) {
		style = styles.LightStyleConfig
	}
	style.H2.Prefix = ""
	return style
}

// Render writes entries through glamour. If rendering fails the markdown
// source is written instead.
func Render(w io.Writer, entries []Entry, opts RenderOptions) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}

	width := opts.Width
	if width <= 0 {
		width = defaultWordWrap
	}

	markdown := RenderMarkdown(entries)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(renderStyle(opts.Plain)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		_, err = fmt.Fprint(w, markdown)
		return err
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		_, err = fmt.Fprint(w, markdown)
		return err
	}

	_, err = fmt.Fprint(w, rendered)
	return err
}
