package param

import (
	"fmt"

	"github.com/kcmvp/restx/validator"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Collection is an ordered, multi-valued parameter store. Insertion order is kept
// for query emission; lookups are by exact (name, kind).
//
// A Collection is not safe for concurrent mutation. Reads of a nil *Collection
// behave as reads of an empty one.
type Collection struct {
	items    []Parameter
	defaults bool
}

// NewCollection returns an empty request level collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Defaults returns an empty client level collection. It refuses request bodies and
// repeated single-valued names of any kind.
func Defaults() *Collection {
	return &Collection{defaults: true}
}

// Add appends p after validating it. A repeated (name, kind) is legal for query
// kinds of a request collection and for parameters marked Multi.
func (c *Collection) Add(p Parameter) error {
	if err := c.admit(p); err != nil {
		return err
	}
	if c.Find(p.Name, p.Kind).IsPresent() && !c.repeatable(p) {
		return fmt.Errorf("%w: %w '%s' of kind %s", validator.ErrConfiguration, ErrDuplicate, p.Name, p.Kind)
	}
	c.items = append(c.items, p)
	return nil
}

// AddOrUpdate replaces the first parameter with the same (name, kind), or appends p.
func (c *Collection) AddOrUpdate(p Parameter) error {
	if err := c.admit(p); err != nil {
		return err
	}
	_, idx, found := lo.FindIndexOf(c.items, same(p.Name, p.Kind))
	if found {
		c.items[idx] = p
		return nil
	}
	c.items = append(c.items, p)
	return nil
}

// Remove deletes every parameter with the given (name, kind) and returns how many went.
func (c *Collection) Remove(name string, kind Kind) int {
	if c == nil {
		return 0
	}
	before := len(c.items)
	c.items = lo.Reject(c.items, func(p Parameter, _ int) bool {
		return same(name, kind)(p)
	})
	return before - len(c.items)
}

// Find returns the first parameter with the given (name, kind).
func (c *Collection) Find(name string, kind Kind) mo.Option[Parameter] {
	if c == nil {
		return mo.None[Parameter]()
	}
	p, ok := lo.Find(c.items, same(name, kind))
	return lo.Ternary(ok, mo.Some(p), mo.None[Parameter]())
}

// OfKind returns the parameters of the given kinds in insertion order.
func (c *Collection) OfKind(kinds ...Kind) []Parameter {
	if c == nil {
		return nil
	}
	return lo.Filter(c.items, func(p Parameter, _ int) bool {
		return lo.Contains(kinds, p.Kind)
	})
}

// All returns a copy of every parameter in insertion order.
func (c *Collection) All() []Parameter {
	if c == nil {
		return nil
	}
	return append([]Parameter(nil), c.items...)
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Clone returns an independent copy carrying the same admission rules.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return NewCollection()
	}
	return &Collection{items: c.All(), defaults: c.defaults}
}

func (c *Collection) admit(p Parameter) error {
	if c.defaults && p.Kind == RequestBody {
		return fmt.Errorf("%w: %w: '%s'", validator.ErrConfiguration, ErrBodyDefault, p.Name)
	}
	return p.Validate()
}

func (c *Collection) repeatable(p Parameter) bool {
	return p.Multi || (!c.defaults && p.Kind.InQuery())
}

func same(name string, kind Kind) func(Parameter) bool {
	return func(p Parameter) bool {
		return p.Name == name && p.Kind == kind
	}
}
