// Package encoder percent-encodes URI path segments and query components after
// transcoding them into a configured character encoding.
package encoder

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	DefaultEncoding = "UTF-8"
	upperHex        = "0123456789ABCDEF"
)

var (
	ErrUnsupportedEncoding = errors.New("unsupported character encoding")
	ErrInvalidEscape       = errors.New("invalid percent escape")
)

// Encoder is immutable and safe for concurrent use.
type Encoder struct {
	name string
	// nil means UTF-8, which needs no transcoding.
	enc encoding.Encoding
}

// UTF8 is the default encoder.
var UTF8 = &Encoder{name: DefaultEncoding}

// New returns an encoder for an IANA charset name such as "utf-8" or "ISO-8859-1".
// A blank name selects UTF-8.
func New(name string) (*Encoder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	if strings.EqualFold(canonical, DefaultEncoding) {
		return UTF8, nil
	}
	return &Encoder{name: canonical, enc: enc}, nil
}

// Name returns the canonical IANA name of the charset.
func (e *Encoder) Name() string {
	return e.name
}

// PathEscape encodes s for use as a single path segment. Unreserved characters,
// sub-delims, ':' and '@' are kept; '/', '?', '#' and everything else is escaped.
func (e *Encoder) PathEscape(s string) string {
	return escape(e.transcode(s), keepInSegment)
}

// QueryEscape encodes s for use as a query name or value. Only unreserved
// characters are kept and a space becomes "%20".
func (e *Encoder) QueryEscape(s string) string {
	return escape(e.transcode(s), unreserved)
}

// Unescape reverses PathEscape and QueryEscape.
func (e *Encoder) Unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
			return "", fmt.Errorf("%w at offset %d in %q", ErrInvalidEscape, i, s)
		}
		b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
		i += 2
	}
	if e.enc == nil {
		return b.String(), nil
	}
	return e.enc.NewDecoder().String(b.String())
}

// transcode never fails: runes the charset can not represent are replaced by
// the charset's substitution byte.
func (e *Encoder) transcode(s string) string {
	if e == nil || e.enc == nil {
		return s
	}
	out, err := encoding.ReplaceUnsupported(e.enc.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	return out
}

func escape(s string, keep func(byte) bool) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !keep(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}

func keepInSegment(c byte) bool {
	if unreserved(c) {
		return true
	}
	return strings.IndexByte("!$&'()*+,;=:@", c) >= 0
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
