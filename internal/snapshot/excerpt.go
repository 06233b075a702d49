// ABOUTME: Display-width-aware excerpts of recent turns for snapshots
// ABOUTME: Truncation walks grapheme clusters so emoji and CJK text never split mid-character

package snapshot

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/mauromedda/pi-modes/internal/session"
)

// Excerpt defaults.
const (
	DefaultExcerptTurns = 4
	DefaultExcerptWidth = 240
)

const ellipsis = "…"

// ExcerptLine is one condensed turn.
type ExcerptLine struct {
	Role  session.Role `json:"role"`
	Text  string       `json:"text"`
	Tools []string     `json:"tools,omitempty"`
}

// Excerpt condenses the last n turns to single lines of at most width columns.
func Excerpt(turns []session.Turn, n, width int) []ExcerptLine {
	window := session.Window(turns, n)
	out := make([]ExcerptLine, 0, len(window))
	for _, t := range window {
		line := ExcerptLine{
			Role: t.Role,
			Text: Truncate(strings.Join(strings.Fields(t.Text()), " "), width),
		}
		for _, c := range t.ToolCalls {
			line.Tools = append(line.Tools, c.Name)
		}
		if line.Text == "" && len(line.Tools) == 0 {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Width returns the display width of s in terminal columns.
func Width(s string) int {
	w := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		w += clusterWidth(g.Str())
	}
	return w
}

// Truncate shortens s to at most width columns, ending in an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if Width(s) <= width {
		return s
	}
	target := width - runewidth.StringWidth(ellipsis)
	var b strings.Builder
	col := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Str()
		cw := clusterWidth(cluster)
		if col+cw > target {
			break
		}
		b.WriteString(cluster)
		col += cw
	}
	return strings.TrimRight(b.String(), " ") + ellipsis
}

// clusterWidth measures a grapheme cluster by its leading rune.
func clusterWidth(cluster string) int {
	r, _ := utf8.DecodeRuneInString(cluster)
	return runewidth.RuneWidth(r)
}
