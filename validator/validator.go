package validator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

var (
	// ErrConfiguration marks every caller-fixable setup mistake. It is raised before
	// any composition work and is never retried.
	ErrConfiguration   = errors.New("configuration error")
	ErrNotAbsolute     = errors.New("resource is not an absolute uri")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrInvalidName     = errors.New("invalid parameter name")
)

// Schemes is a set of recognized URI schemes, stored lower case.
type Schemes []string

// DefaultSchemes are recognized when a client does not configure its own.
var DefaultSchemes = Schemes{"http", "https", "ws", "wss", "ftp", "ftps", "file"}

// NewSchemes normalizes the given schemes. Blank entries and duplicates are dropped.
func NewSchemes(schemes ...string) Schemes {
	return lo.Uniq(lo.FilterMap(schemes, func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}))
}

// Recognized reports whether scheme is in the set, ignoring case.
func (s Schemes) Recognized(scheme string) bool {
	return lo.Contains(s, strings.ToLower(scheme))
}

// Scheme extracts the scheme of raw following RFC 3986:
// ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ) ":".
func Scheme(raw string) (string, bool) {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return "", false
			}
		case c == ':':
			return raw[:i], i > 0
		default:
			return "", false
		}
	}
	return "", false
}

// IsAbsolute reports whether raw starts with a recognized scheme.
func IsAbsolute(raw string, schemes Schemes) bool {
	scheme, ok := Scheme(strings.TrimSpace(raw))
	return ok && schemes.Recognized(scheme)
}

// HasAuthority reports whether raw starts with any syntactically valid scheme
// followed by "//", such as "custom+api://host". A bare "users:42" does not.
func HasAuthority(raw string) bool {
	raw = strings.TrimSpace(raw)
	scheme, ok := Scheme(raw)
	return ok && strings.HasPrefix(raw[len(scheme)+1:], "//")
}

// Resource fails when there is no endpoint to resolve resource against and
// resource is not absolute on its own.
func Resource(endpoint mo.Option[*url.URL], resource string, schemes Schemes) error {
	if endpoint.IsPresent() || IsAbsolute(resource, schemes) {
		return nil
	}
	return fmt.Errorf("%w: %w: %q and no endpoint is configured", ErrConfiguration, ErrNotAbsolute, resource)
}

// Endpoint parses raw as a client endpoint. It must be absolute, carry a host
// (except for file URIs) and have neither query nor fragment.
func Endpoint(raw string, schemes Schemes) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	invalid := func(reason string) error {
		return fmt.Errorf("%w: %w %q: %s", ErrConfiguration, ErrInvalidEndpoint, raw, reason)
	}
	if !IsAbsolute(raw, schemes) {
		return nil, invalid("scheme is missing or not recognized")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalid(err.Error())
	}
	switch {
	case u.Opaque != "":
		return nil, invalid("opaque uri")
	case u.Host == "" && !strings.EqualFold(u.Scheme, "file"):
		return nil, invalid("host is required")
	case u.RawQuery != "" || u.ForceQuery:
		return nil, invalid("query is not allowed, use default parameters")
	case u.Fragment != "" || strings.ContainsRune(raw, '#'):
		return nil, invalid("fragment is not allowed")
	}
	return u, nil
}

// Name rejects blank parameter names.
func Name(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %w: name is blank", ErrConfiguration, ErrInvalidName)
	}
	return nil
}

// SegmentName additionally rejects names that could never match a `{name}` token.
func SegmentName(name string) error {
	if err := Name(name); err != nil {
		return err
	}
	if strings.ContainsAny(name, "{}") {
		return fmt.Errorf("%w: %w: %q contains braces", ErrConfiguration, ErrInvalidName, name)
	}
	return nil
}
