package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"   __ _                   _        _",
	"  / _| | _____      _____| |_ __ _| |_ ___",
	" | |_| |/ _ \\ \\ /\\ / / __| __/ _` | __/ _ \\",
	" |  _| | (_) \\ V  V /\\__ \\ || (_| | ||  __/",
	" |_| |_|\\___/ \\_/\\_/ |___/\\__\\__,_|\\__\\___|",
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}

// PrintBanner writes the flowstate banner to w, colored when the terminal supports it.
func PrintBanner(w io.Writer, version string) {
	p := termenv.NewOutput(w).Profile
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, p.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintf(w, "  %s\n\n", p.String("v"+version).Faint())
}
