package restx

import (
	"fmt"
	"strings"

	"github.com/kcmvp/restx/validator"
)

// ErrConfiguration marks every caller-fixable setup mistake: a bad endpoint, an
// unsupported encoding, a relative resource without an endpoint, an invalid or
// duplicated parameter. Use errors.Is to test for it.
var ErrConfiguration = validator.ErrConfiguration

// requestError collects the insertion errors of a Request, keeping only the first
// error per parameter name.
type requestError struct {
	names  []string
	errors map[string]error
}

func (e *requestError) Error() string {
	if e == nil || len(e.errors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("invalid request parameters:")
	for _, name := range e.names {
		b.WriteString(fmt.Sprintf(" [%s] %s;", name, e.errors[name].Error()))
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Add records err for name unless name already failed.
func (e *requestError) Add(name string, err error) {
	if err == nil {
		return
	}
	if e.errors == nil {
		e.errors = make(map[string]error)
	}
	if _, ok := e.errors[name]; ok {
		return
	}
	e.names = append(e.names, name)
	e.errors[name] = err
}

func (e *requestError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, len(e.names))
	for _, name := range e.names {
		errs = append(errs, e.errors[name])
	}
	return errs
}

// Err returns e as an error when it holds anything.
func (e *requestError) Err() error {
	if e == nil || len(e.errors) == 0 {
		return nil
	}
	return e
}
