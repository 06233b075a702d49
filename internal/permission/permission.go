// ABOUTME: Planning write guard: write tools may only touch documentation-style paths
// ABOUTME: Paths are NFC-normalised and cleaned; directory segments match only at the project root

package permission

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mauromedda/pi-modes/internal/session"
	"golang.org/x/text/unicode/norm"
)

// Verdict is the outcome of a tool-call validation. Denials are values, not errors.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Allow is the zero-reason allowed verdict.
var Allow = Verdict{Allowed: true}

// WriteGuard restricts write-type tools to allow-listed extensions or path segments.
type WriteGuard struct {
	Extensions []string // lower-case, with leading dot
	Segments   []string // slash-terminated directories relative to Root
	Root       string   // project root for absolute paths; empty means absolute paths never match a segment
}

// DefaultWriteGuard returns the guard used while planning.
func DefaultWriteGuard() WriteGuard {
	return WriteGuard{
		Extensions: []string{".md", ".mdx", ".markdown", ".txt", ".rst", ".adoc", ".org"},
		Segments:   []string{"docs/", "specs/", "plans/", ".pi-modes/plans/"},
	}
}

// WithRoot returns a copy of g anchored at the project root.
func (g WriteGuard) WithRoot(root string) WriteGuard {
	g.Root = root
	return g
}

// NormalizePath applies Unicode NFC, forward slashes and lexical cleaning.
func NormalizePath(p string) string {
	p = norm.NFC.String(strings.TrimSpace(p))
	p = filepath.ToSlash(p)
	return path.Clean(p)
}

// Check validates a tool call. Non-write tools are always allowed.
func (g WriteGuard) Check(tool string, args map[string]any) Verdict {
	if !session.IsWriteTool(tool) {
		return Allow
	}
	raw := session.PathArg(args)
	if raw == "" {
		return Verdict{Reason: fmt.Sprintf("%s blocked while planning: no file path argument", tool)}
	}
	p := NormalizePath(raw)
	if g.allowedSegment(p) {
		return Allow
	}
	ext := strings.ToLower(path.Ext(p))
	if ext != "" && slices.Contains(g.Extensions, ext) {
		return Allow
	}

	offending := fmt.Sprintf("extension %q", ext)
	if ext == "" {
		offending = "no file extension"
	}
	return Verdict{Reason: fmt.Sprintf(
		"%s to %q blocked while planning: %s is not allowed; planning may write %s files or paths under %s",
		tool, p, offending, strings.Join(g.Extensions, " "), strings.Join(g.Segments, " "))}
}

func (g WriteGuard) allowedSegment(p string) bool {
	rel, ok := g.relative(p)
	if !ok {
		return false
	}
	for _, seg := range g.Segments {
		if strings.HasPrefix(rel, seg) {
			return true
		}
	}
	return false
}

// relative returns the cleaned p relative to the project root. Paths that
// leave the root do not resolve.
func (g WriteGuard) relative(p string) (string, bool) {
	if path.IsAbs(p) {
		if g.Root == "" {
			return "", false
		}
		root := strings.TrimSuffix(NormalizePath(g.Root), "/") + "/"
		if !strings.HasPrefix(p, root) {
			return "", false
		}
		p = strings.TrimPrefix(p, root)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}
