package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/presentation/graph"
	"github.com/aretw0/loom/internal/presentation/tui"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or fallback when it is not a terminal.
func TerminalWidth(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// WriteJSON encodes v to w, indented when pretty is set.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// InspectOptions controls how Inspect renders a document.
type InspectOptions struct {
	// Markdown renders the summary table through glamour.
	Markdown bool
	// Mermaid replaces the summary and tree with a flowchart.
	Mermaid bool
	Width   int
	Profile termenv.Profile
}

// Inspect writes the record summary and the kind tree of d.
func Inspect(w io.Writer, title string, d *loom.Document, opts InspectOptions) error {
	rec, err := d.Schema()
	if err != nil {
		return err
	}
	data, err := d.ToJSON()
	if err != nil {
		return err
	}

	if opts.Mermaid {
		_, err := fmt.Fprint(w, graph.GenerateMermaid(title, rec, data, nil))
		return err
	}

	summary := tui.Summary(title, rec, data)
	if opts.Markdown {
		render, err := tui.NewRenderer(opts.Width)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		if summary, err = render(summary); err != nil {
			return fmt.Errorf("failed to render summary: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}
	_, err = fmt.Fprint(w, tui.Tree(opts.Profile, rec, data))
	return err
}
