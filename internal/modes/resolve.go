// ABOUTME: Resolves user-typed mode names ("debug", "Code Reviewer", "debuger") to ids
// ABOUTME: ResolveExact matches id, alias and name; Resolve adds a prefix-anchored sahilm/fuzzy fallback

package modes

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// minFuzzyLen is both the shortest input considered for fuzzy matching and
// the number of leading runes a fuzzy candidate must share with the input.
const minFuzzyLen = 3

// nameSource adapts registry names to fuzzy.Source.
type nameSource struct {
	names []string
	ids   []ID
}

func (s nameSource) String(i int) string { return s.names[i] }
func (s nameSource) Len() int            { return len(s.names) }

// ResolveExact maps a name to a mode id by id, display name or alias only.
// Text that merely resembles a mode name does not resolve.
func (r *Registry) ResolveExact(name string) (ID, bool) {
	n := normalizeName(name)
	if n == "" {
		return "", false
	}
	if r.Has(ID(n)) {
		return ID(n), true
	}
	for _, id := range r.order {
		m := r.byID[id]
		if strings.EqualFold(m.Name, n) {
			return id, true
		}
		for _, a := range m.Aliases {
			if strings.EqualFold(a, n) {
				return id, true
			}
		}
	}
	return "", false
}

// Resolve maps a free-form name to a mode id. After the exact lookup it
// tolerates typos ("debuger"), but a fuzzy candidate must start with the
// same minFuzzyLen runes as the input.
func (r *Registry) Resolve(name string) (ID, bool) {
	if id, ok := r.ResolveExact(name); ok {
		return id, true
	}
	n := []rune(normalizeName(name))
	if len(n) < minFuzzyLen {
		return "", false
	}
	prefix := string(n[:minFuzzyLen])
	src := r.names()
	for _, match := range fuzzy.FindFrom(string(n), src) {
		if strings.HasPrefix(match.Str, prefix) {
			return src.ids[match.Index], true
		}
	}
	return "", false
}

func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(strings.TrimSuffix(n, " mode"))
}

func (r *Registry) names() nameSource {
	var src nameSource
	for _, id := range r.order {
		m := r.byID[id]
		src.names = append(src.names, string(id))
		src.ids = append(src.ids, id)
		for _, a := range m.Aliases {
			src.names = append(src.names, strings.ToLower(a))
			src.ids = append(src.ids, id)
		}
	}
	return src
}
