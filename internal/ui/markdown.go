// ABOUTME: Glamour wrapper that renders markdown reports (metrics, continuity) for the terminal
// ABOUTME: Results are cached by content hash and width; render failures fall back to raw text

package ui

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// MarkdownRenderer renders markdown with glamour.
type MarkdownRenderer struct {
	style string

	mu    sync.Mutex
	cache map[string]string // "hash:width" -> rendered
}

// NewMarkdownRenderer creates a renderer. An empty style selects glamour's
// automatic dark/light detection.
func NewMarkdownRenderer(style string) *MarkdownRenderer {
	return &MarkdownRenderer{style: style, cache: make(map[string]string)}
}

// Render returns md styled for a terminal of the given width.
func (r *MarkdownRenderer) Render(md string, width int) string {
	if md == "" {
		return ""
	}
	if width <= 0 {
		width = DefaultWidth
	}

	key := cacheKey(md, width)
	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return cached
	}

	styleOpt := glamour.WithAutoStyle()
	if r.style != "" {
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	rendered = strings.TrimRight(rendered, "\n ")

	r.mu.Lock()
	r.cache[key] = rendered
	r.mu.Unlock()
	return rendered
}

func cacheKey(content string, width int) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x:%d", h[:8], width)
}
