package param

import (
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Lookup finds a parameter by name.
type Lookup func(name string) mo.Option[Parameter]

// SegmentLookup resolves PathSegment parameters, checking the request collection
// before the defaults so that the request level value wins.
func SegmentLookup(request, defaults *Collection) Lookup {
	return func(name string) mo.Option[Parameter] {
		if p := request.Find(name, PathSegment); p.IsPresent() {
			return p
		}
		return defaults.Find(name, PathSegment)
	}
}

// Merge returns the effective parameters of the given kinds: every request entry in
// insertion order, then each default entry whose name the request does not carry.
// Default entries marked Multi are always appended. Kinds passed together share a
// name space, so a request GetOrPost "page" hides a default QueryString "page".
func Merge(request, defaults *Collection, kinds ...Kind) []Parameter {
	own := request.OfKind(kinds...)
	taken := lo.SliceToMap(own, func(p Parameter) (string, struct{}) {
		return p.Name, struct{}{}
	})
	inherited := lo.Filter(defaults.OfKind(kinds...), func(p Parameter, _ int) bool {
		_, hidden := taken[p.Name]
		return p.Multi || !hidden
	})
	return append(own, inherited...)
}

// MergeQuery is Merge over the kinds written to the query string.
func MergeQuery(request, defaults *Collection) []Parameter {
	return Merge(request, defaults, QueryString, GetOrPost)
}
