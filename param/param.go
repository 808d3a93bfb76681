package param

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kcmvp/restx/constraint"
	"github.com/kcmvp/restx/validator"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Kind tells where a parameter ends up in the outgoing request.
type Kind int

const (
	PathSegment Kind = iota
	QueryString
	GetOrPost
	RequestBody
	Header
	Cookie
)

var (
	ErrDuplicate   = errors.New("duplicate parameter")
	ErrBodyDefault = errors.New("request body can not be a default parameter")
	ErrUnknownKind = errors.New("unknown parameter kind")
)

var kindNames = map[Kind][]string{
	PathSegment: {"path", "segment", "url_segment"},
	QueryString: {"query", "query_string"},
	GetOrPost:   {"get_or_post", "form"},
	RequestBody: {"body", "request_body"},
	Header:      {"header"},
	Cookie:      {"cookie"},
}

func (k Kind) String() string {
	if names, ok := kindNames[k]; ok {
		return names[0]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a configuration name such as "query" or "url_segment" to a Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, names := range kindNames {
		if lo.Contains(names, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %w %q", validator.ErrConfiguration, ErrUnknownKind, name)
}

// InQuery reports whether parameters of this kind are written to the query string.
func (k Kind) InQuery() bool {
	return k == QueryString || k == GetOrPost
}

// Parameter is a single named value tagged with its Kind. Value is optional;
// an absent value is written as an empty one.
type Parameter struct {
	Name  string
	Value mo.Option[string]
	Kind  Kind
	// Encode controls percent-encoding of name and value. Set it to false for
	// values that are already encoded.
	Encode bool
	// Multi marks a parameter that may repeat within a collection and that is
	// appended to, rather than overridden by, request level values.
	Multi       bool
	ContentType string

	validators []constraint.Validator
}

// New creates an encoded parameter with a present value. The optional constraints
// run when the parameter is added to a collection.
func New(kind Kind, name, value string, vfs ...constraint.ValidateFunc) Parameter {
	return Parameter{
		Name:       name,
		Value:      mo.Some(value),
		Kind:       kind,
		Encode:     true,
		validators: validators(name, vfs),
	}
}

// Absent creates an encoded parameter without a value.
func Absent(kind Kind, name string) Parameter {
	return Parameter{Name: name, Value: mo.None[string](), Kind: kind, Encode: true}
}

func Segment(name, value string, vfs ...constraint.ValidateFunc) Parameter {
	return New(PathSegment, name, value, vfs...)
}

func Query(name, value string, vfs ...constraint.ValidateFunc) Parameter {
	return New(QueryString, name, value, vfs...)
}

func GetPost(name, value string, vfs ...constraint.ValidateFunc) Parameter {
	return New(GetOrPost, name, value, vfs...)
}

func HeaderOf(name, value string) Parameter {
	return New(Header, name, value)
}

func CookieOf(name, value string) Parameter {
	return New(Cookie, name, value)
}

// Body creates the request body parameter.
func Body(content, contentType string) Parameter {
	p := New(RequestBody, "body", content)
	p.ContentType = contentType
	return p
}

// Raw disables percent-encoding.
func (p Parameter) Raw() Parameter {
	p.Encode = false
	return p
}

// Multiple marks the parameter as multi-valued.
func (p Parameter) Multiple() Parameter {
	p.Multi = true
	return p
}

// Text returns the value, or an empty string when it is absent.
func (p Parameter) Text() string {
	return p.Value.OrEmpty()
}

// Validate checks the name against the kind and runs the attached constraints.
func (p Parameter) Validate() error {
	check := lo.Ternary(p.Kind == PathSegment, validator.SegmentName, validator.Name)
	if err := check(p.Name); err != nil {
		return err
	}
	if _, ok := kindNames[p.Kind]; !ok {
		return fmt.Errorf("%w: %w %d", validator.ErrConfiguration, ErrUnknownKind, int(p.Kind))
	}
	value, present := p.Value.Get()
	if !present {
		return nil
	}
	for _, v := range p.validators {
		if err := v(value); err != nil {
			return fmt.Errorf("parameter '%s': %w", p.Name, err)
		}
	}
	return nil
}

func validators(name string, vfs []constraint.ValidateFunc) []constraint.Validator {
	names := make(map[string]struct{})
	var vs []constraint.Validator
	for _, vf := range vfs {
		n, v := vf()
		if _, exists := names[n]; exists {
			panic(fmt.Sprintf("restx: duplicate validator '%s' for parameter '%s'", n, name))
		}
		names[n] = struct{}{}
		vs = append(vs, v)
	}
	return vs
}
