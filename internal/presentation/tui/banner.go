package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Loom ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _                       ", "#818cf8"},
		{" | |    ___   ___  _ __ ___ ", "#a78bfa"},
		{" | |   / _ \\ / _ \\| '_ ` _ \\", "#c084fc"},
		{" | |__| (_) | (_) | | | | | |", "#e879f9"},
		{" |_____\\___/ \\___/|_| |_| |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
