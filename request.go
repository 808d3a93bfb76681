package restx

import (
	"io"
	"net/http"
	"strings"

	"github.com/kcmvp/restx/constraint"
	"github.com/kcmvp/restx/param"
	"github.com/samber/lo"
)

// Request carries a resource template, an HTTP method and the request level
// parameters of one call. Its Add methods never fail; insertion errors are
// collected and returned by Err and by every build call.
//
// A Request is not safe for concurrent mutation.
type Request struct {
	resource string
	method   string
	params   *param.Collection
	errs     requestError
}

// NewRequest creates a request for resource. The method defaults to GET.
func NewRequest(resource string, method ...string) *Request {
	m := strings.ToUpper(strings.TrimSpace(lo.FirstOr(method, http.MethodGet)))
	return &Request{
		resource: resource,
		method:   lo.Ternary(m == "", http.MethodGet, m),
		params:   param.NewCollection(),
	}
}

// Resource returns the resource template as given.
func (r *Request) Resource() string {
	return r.resource
}

// Method returns the upper cased HTTP method.
func (r *Request) Method() string {
	return r.method
}

// Parameters returns a copy of the request level parameters in insertion order.
func (r *Request) Parameters() []param.Parameter {
	return r.params.All()
}

// Err returns the collected insertion errors, or nil.
func (r *Request) Err() error {
	return r.errs.Err()
}

// Add appends p. A repeated single-valued (name, kind) is recorded as an error.
func (r *Request) Add(p param.Parameter) *Request {
	r.errs.Add(p.Name, r.params.Add(p))
	return r
}

// AddOrUpdate replaces the first parameter with the same name and kind, or appends p.
func (r *Request) AddOrUpdate(p param.Parameter) *Request {
	r.errs.Add(p.Name, r.params.AddOrUpdate(p))
	return r
}

// Remove deletes every parameter with the given name and kind.
func (r *Request) Remove(name string, kind param.Kind) *Request {
	r.params.Remove(name, kind)
	return r
}

// AddURLSegment sets the value of the `{name}` placeholder of the resource.
func (r *Request) AddURLSegment(name, value string, vfs ...constraint.ValidateFunc) *Request {
	return r.Add(param.Segment(name, value, vfs...))
}

// AddQueryParameter adds a QueryString parameter. Repeating a name adds another value.
func (r *Request) AddQueryParameter(name, value string, vfs ...constraint.ValidateFunc) *Request {
	return r.Add(param.Query(name, value, vfs...))
}

// AddParameter adds a GetOrPost parameter. It is always written to the query string.
func (r *Request) AddParameter(name, value string, vfs ...constraint.ValidateFunc) *Request {
	return r.Add(param.GetPost(name, value, vfs...))
}

// AddHeader adds a header. It replaces a default header of the same name.
func (r *Request) AddHeader(name, value string) *Request {
	return r.Add(param.HeaderOf(name, value))
}

// AddCookie adds a cookie. It replaces a default cookie of the same name.
func (r *Request) AddCookie(name, value string) *Request {
	return r.Add(param.CookieOf(name, value))
}

// AddBody sets the request body. A second body is an error.
func (r *Request) AddBody(content, contentType string) *Request {
	return r.Add(param.Body(content, contentType))
}

func (r *Request) body() (io.Reader, string) {
	bodies := r.params.OfKind(param.RequestBody)
	if len(bodies) == 0 {
		return nil, ""
	}
	return strings.NewReader(bodies[0].Text()), bodies[0].ContentType
}
