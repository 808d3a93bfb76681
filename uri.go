package restx

import (
	"strings"

	"github.com/kcmvp/restx/validator"
)

// target is a resource split into its path, literal query and fragment. The query
// and fragment keep their leading '?' and '#'.
type target struct {
	path     string
	query    string
	fragment string
}

func splitTarget(s string) target {
	var t target
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s, t.fragment = s[:i], s[i:]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s, t.query = s[:i], s[i:]
	}
	t.path = s
	return t
}

// mergeURI joins base and a resolved resource. An absolute resource, one with a
// recognized scheme or any scheme followed by "//", is returned as is. Otherwise
// the two paths are joined with exactly one '/', so a rooted resource stays below
// the base path. Dot segments are not normalized. An empty resource path yields
// the base itself.
func mergeURI(base, resolved string, schemes validator.Schemes) string {
	if base == "" || validator.IsAbsolute(resolved, schemes) || validator.HasAuthority(resolved) {
		return resolved
	}
	t := splitTarget(resolved)
	rest := t.query + t.fragment
	p := strings.TrimLeft(t.path, "/")
	if p == "" {
		return base + rest
	}
	return strings.TrimRight(base, "/") + "/" + p + rest
}
