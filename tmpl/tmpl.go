// Package tmpl parses resource templates such as "users/{id}/orders?since={since}"
// into literal and placeholder segments and resolves placeholders against
// path-segment parameters.
package tmpl

import (
	"strings"

	"github.com/kcmvp/restx/encoder"
	"github.com/kcmvp/restx/param"
	"github.com/samber/lo"
)

type SegmentKind int

const (
	Literal SegmentKind = iota
	Placeholder
)

// Segment is one token of a template. For a Placeholder, Text is the bare name.
// InQuery is set on placeholders that follow the template's first literal '?'.
type Segment struct {
	Kind    SegmentKind
	Text    string
	InQuery bool
}

// Template is a parsed resource template. Parsing never fails: anything that
// is not a well formed `{name}` token is kept as literal text.
type Template struct {
	raw      string
	segments []Segment
}

// Parse tokenizes raw. A '{' without a later '}' is literal, so is "{}", and a
// '{' followed by another '{' before any '}' is literal as well.
func Parse(raw string) Template {
	t := Template{raw: raw}
	var lit strings.Builder
	inQuery := false
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, Segment{Kind: Literal, Text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '{' {
			inQuery = inQuery || c == '?'
			lit.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(raw[i+1:], '}')
		if end < 0 {
			lit.WriteString(raw[i:])
			break
		}
		name := raw[i+1 : i+1+end]
		if name == "" || strings.IndexByte(name, '{') >= 0 {
			lit.WriteByte(c)
			i++
			continue
		}
		flush()
		t.segments = append(t.segments, Segment{Kind: Placeholder, Text: name, InQuery: inQuery})
		i += end + 2
	}
	flush()
	return t
}

func (t Template) String() string {
	return t.raw
}

func (t Template) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Names returns the distinct placeholder names in order of first appearance.
func (t Template) Names() []string {
	return lo.Uniq(lo.FilterMap(t.segments, func(s Segment, _ int) (string, bool) {
		return s.Text, s.Kind == Placeholder
	}))
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Path string
	// Consumed holds the names of the parameters that were substituted.
	Consumed map[string]struct{}
	// Unresolved lists placeholders left verbatim because nothing matched them.
	Unresolved []string
}

// Resolve substitutes every placeholder the lookup knows. Values are escaped as a
// path segment, or as a query component for placeholders in the query part, unless
// the parameter disables encoding. Unknown placeholders stay in the output as
// written; that is reported in Unresolved, never as an error.
func (t Template) Resolve(lookup param.Lookup, enc *encoder.Encoder) Resolution {
	if enc == nil {
		enc = encoder.UTF8
	}
	res := Resolution{Consumed: map[string]struct{}{}}
	var b strings.Builder
	b.Grow(len(t.raw))
	for _, s := range t.segments {
		if s.Kind == Literal {
			b.WriteString(s.Text)
			continue
		}
		p, ok := lookup(s.Text).Get()
		if !ok {
			b.WriteString("{" + s.Text + "}")
			res.Unresolved = append(res.Unresolved, s.Text)
			continue
		}
		value := p.Text()
		if p.Encode {
			value = lo.Ternary(s.InQuery, enc.QueryEscape(value), enc.PathEscape(value))
		}
		b.WriteString(value)
		res.Consumed[s.Text] = struct{}{}
	}
	res.Path = b.String()
	res.Unresolved = lo.Uniq(res.Unresolved)
	return res
}
