package constraint

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/tidwall/match"
)

type charSet int

// Validator checks a single parameter value.
type Validator func(v string) error

// ValidateFunc produces a named Validator. The name is used to reject the same
// constraint being attached twice to one parameter.
type ValidateFunc func() (string, Validator)

const (
	LowerCaseChar charSet = iota
	UpperCaseChar
	NumberChar
	SpecialChar
)

var (
	LowerCaseCharSet = string(lo.LowerCaseLettersCharset)
	UpperCaseCharSet = string(lo.UpperCaseLettersCharset)
	NumberCharSet    = string(lo.NumbersCharset)
	SpecialCharSet   = string(lo.SpecialCharset)
)

var (
	ErrLengthMin     = errors.New("length must be at least")
	ErrLengthMax     = errors.New("length must be at most")
	ErrLengthBetween = errors.New("length must be between")

	ErrCharSetOnly = errors.New("can only contain characters from")
	ErrCharSetAny  = errors.New("must contain at least one character from")
	ErrCharSetNo   = errors.New("must not contain any characters from")
	ErrNotMatch    = errors.New("not match pattern")
	ErrNotValidURL = errors.New("not valid url")
	ErrNotOneOf    = errors.New("value must be one of")
	ErrNotInteger  = errors.New("must be an integer")
	ErrMustBetween = errors.New("must be between")
)

func (set charSet) value() (chars string, name string) {
	switch set {
	case LowerCaseChar:
		return LowerCaseCharSet, "lower case letters"
	case UpperCaseChar:
		return UpperCaseCharSet, "upper case letters"
	case NumberChar:
		return NumberCharSet, "numbers"
	case SpecialChar:
		return SpecialCharSet, "special characters"
	default:
		panic("unhandled default case in charSet.value()")
	}
}

func describe(charSets []charSet) (string, string) {
	var allChars strings.Builder
	names := make([]string, 0, len(charSets))
	for _, set := range charSets {
		chars, name := set.value()
		allChars.WriteString(chars)
		names = append(names, name)
	}
	return allChars.String(), strings.Join(names, ", ")
}

// MinLength validates that a value is at least min bytes long.
func MinLength(min int) ValidateFunc {
	return func() (string, Validator) {
		return "min_length", func(str string) error {
			return lo.Ternary(len(str) < min, fmt.Errorf("%w %d", ErrLengthMin, min), nil)
		}
	}
}

// MaxLength validates that a value is at most max bytes long.
func MaxLength(max int) ValidateFunc {
	return func() (string, Validator) {
		return "max_length", func(str string) error {
			return lo.Ternary(len(str) > max, fmt.Errorf("%w %d", ErrLengthMax, max), nil)
		}
	}
}

// LengthBetween validates that a value's length is within [min, max].
func LengthBetween(min, max int) ValidateFunc {
	return func() (string, Validator) {
		return "length_between", func(str string) error {
			length := len(str)
			return lo.Ternary(length < min || length > max, fmt.Errorf("%w %d and %d characters", ErrLengthBetween, min, max), nil)
		}
	}
}

// CharSetOnly validates that a value only contains characters from the given sets.
func CharSetOnly(charSets ...charSet) ValidateFunc {
	return func() (string, Validator) {
		return "only_contains", func(str string) error {
			chars, names := describe(charSets)
			_, found := lo.Find([]rune(str), func(r rune) bool {
				return !strings.ContainsRune(chars, r)
			})
			return lo.Ternary(found, fmt.Errorf("%w: %s", ErrCharSetOnly, names), nil)
		}
	}
}

// CharSetAny validates that a value contains at least one character from the given sets.
func CharSetAny(charSets ...charSet) ValidateFunc {
	return func() (string, Validator) {
		return "contains_any", func(str string) error {
			chars, names := describe(charSets)
			return lo.Ternary(!strings.ContainsAny(str, chars), fmt.Errorf("%w: %s", ErrCharSetAny, names), nil)
		}
	}
}

// CharSetNo validates that a value contains no character from the given sets.
func CharSetNo(charSets ...charSet) ValidateFunc {
	return func() (string, Validator) {
		return "not_contains", func(str string) error {
			for _, set := range charSets {
				chars, name := set.value()
				if strings.ContainsAny(str, chars) {
					return fmt.Errorf("%w: %s", ErrCharSetNo, name)
				}
			}
			return nil
		}
	}
}

// Match validates that a value matches a wildcard pattern.
//   - `*`: matches any sequence of characters.
//   - `?`: matches any single character.
func Match(pattern string) ValidateFunc {
	lo.Assertf(match.IsPattern(pattern), "invalid pattern `%s`: `?` stands for one character, `*` stands for any number of characters", pattern)
	return func() (string, Validator) {
		return "match", func(str string) error {
			return lo.Ternary(!match.Match(str, pattern), fmt.Errorf("%w %s", ErrNotMatch, pattern), nil)
		}
	}
}

// URL validates that a value is an absolute URL, e.g. a callback address.
func URL() ValidateFunc {
	return func() (string, Validator) {
		return "url", func(str string) error {
			rs := mo.TupleToResult[*url.URL](url.Parse(str))
			errRs := rs.IsError() || rs.MustGet().Scheme == "" || rs.MustGet().Host == ""
			return lo.Ternary(errRs, fmt.Errorf("%w: %s", ErrNotValidURL, str), nil)
		}
	}
}

// OneOf validates that a value is one of the allowed values.
func OneOf(allowed ...string) ValidateFunc {
	return func() (string, Validator) {
		return "one_of", func(val string) error {
			return lo.Ternary(!lo.Contains(allowed, val), fmt.Errorf("%w: %v", ErrNotOneOf, allowed), nil)
		}
	}
}

// Integer validates that a value is a base-10 integer, e.g. a page number.
func Integer() ValidateFunc {
	return func() (string, Validator) {
		return "integer", func(val string) error {
			_, err := strconv.ParseInt(val, 10, 64)
			return lo.Ternary(err != nil, fmt.Errorf("%w: %q", ErrNotInteger, val), nil)
		}
	}
}

// IntBetween validates that a value is an integer within [min, max].
func IntBetween(min, max int64) ValidateFunc {
	return func() (string, Validator) {
		return "int_between", func(val string) error {
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrNotInteger, val)
			}
			return lo.Ternary(n < min || n > max, fmt.Errorf("%w %d and %d", ErrMustBetween, min, max), nil)
		}
	}
}
