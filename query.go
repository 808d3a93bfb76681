package restx

import (
	"strings"

	"github.com/kcmvp/restx/encoder"
	"github.com/kcmvp/restx/param"
	"github.com/samber/lo"
)

// composeQuery appends params to uri as name=value pairs joined by '&'. Pairs
// already present in the literal query of uri come first. Names and values are
// escaped with enc unless the parameter opts out; an absent value gives "name=".
// The fragment of uri, if any, stays last.
func composeQuery(uri string, params []param.Parameter, enc *encoder.Encoder) string {
	if len(params) == 0 {
		return uri
	}
	pairs := lo.Map(params, func(p param.Parameter, _ int) string {
		if !p.Encode {
			return p.Name + "=" + p.Text()
		}
		return enc.QueryEscape(p.Name) + "=" + enc.QueryEscape(p.Text())
	})
	head, fragment := uri, ""
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		head, fragment = uri[:i], uri[i:]
	}
	sep := "?"
	if strings.Contains(head, "?") {
		sep = lo.Ternary(strings.HasSuffix(head, "?") || strings.HasSuffix(head, "&"), "", "&")
	}
	return head + sep + strings.Join(pairs, "&") + fragment
}
