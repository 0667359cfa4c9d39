package graph

import (
	"fmt"
	"strings"
)

// Well-known property names.
const (
	UUIDProperty            = "dna:uuid"
	PrimaryTypeProperty     = "jcr:primaryType"
	TimeToCacheProperty     = "dna:timeToCache"
	TimeToExpireProperty    = "dna:timeToExpire"
	ProjectionRulesProperty = "dna:projectionRules"
)

// Property is a named, ordered list of values.
type Property struct {
	Name   string
	Values []any
}

// NewProperty copies values into a new property.
func NewProperty(name string, values ...any) Property {
	v := make([]any, len(values))
	copy(v, values)
	return Property{Name: name, Values: v}
}

// IsEmpty reports whether the property carries no values.
func (p Property) IsEmpty() bool { return len(p.Values) == 0 }

// IsMultiple reports whether the property has more than one value.
func (p Property) IsMultiple() bool { return len(p.Values) > 1 }

// First returns the first value, or nil.
func (p Property) First() any {
	if len(p.Values) == 0 {
		return nil
	}
	return p.Values[0]
}

// Strings renders every value with fmt.
func (p Property) Strings() []string {
	out := make([]string, len(p.Values))
	for i, v := range p.Values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// Equal compares name and values using fmt rendering for the values, which
// keeps comparisons stable across sources that decode numbers differently.
func (p Property) Equal(o Property) bool {
	if p.Name != o.Name || len(p.Values) != len(o.Values) {
		return false
	}
	for i := range p.Values {
		if fmt.Sprint(p.Values[i]) != fmt.Sprint(o.Values[i]) {
			return false
		}
	}
	return true
}

func (p Property) String() string {
	return p.Name + "=" + strings.Join(p.Strings(), ",")
}

// Clone returns a deep copy of the values slice.
func (p Property) Clone() Property {
	return NewProperty(p.Name, p.Values...)
}

// Properties is an ordered property bag. Names are unique; Set replaces in
// place and keeps the original position.
type Properties struct {
	list  []Property
	index map[string]int
}

// NewProperties builds a bag from props, later duplicates replacing earlier.
func NewProperties(props ...Property) *Properties {
	b := &Properties{index: make(map[string]int, len(props))}
	for _, p := range props {
		b.Set(p)
	}
	return b
}

// Set adds or replaces a property.
func (b *Properties) Set(p Property) {
	if b.index == nil {
		b.index = map[string]int{}
	}
	if i, ok := b.index[p.Name]; ok {
		b.list[i] = p.Clone()
		return
	}
	b.index[p.Name] = len(b.list)
	b.list = append(b.list, p.Clone())
}

// Remove deletes a property by name, reporting whether it existed.
func (b *Properties) Remove(name string) bool {
	i, ok := b.index[name]
	if !ok {
		return false
	}
	b.list = append(b.list[:i], b.list[i+1:]...)
	delete(b.index, name)
	for j := i; j < len(b.list); j++ {
		b.index[b.list[j].Name] = j
	}
	return true
}

// Get returns a property by name.
func (b *Properties) Get(name string) (Property, bool) {
	if b == nil {
		return Property{}, false
	}
	i, ok := b.index[name]
	if !ok {
		return Property{}, false
	}
	return b.list[i], true
}

// Len is the number of properties.
func (b *Properties) Len() int {
	if b == nil {
		return 0
	}
	return len(b.list)
}

// List returns the properties in order. The slice is a copy.
func (b *Properties) List() []Property {
	if b == nil {
		return nil
	}
	out := make([]Property, len(b.list))
	for i, p := range b.list {
		out[i] = p.Clone()
	}
	return out
}

// Names returns property names in order.
func (b *Properties) Names() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.list))
	for i, p := range b.list {
		out[i] = p.Name
	}
	return out
}

// Merge sets every property of other into b, in other's order.
func (b *Properties) Merge(other *Properties) {
	if other == nil {
		return
	}
	for _, p := range other.list {
		b.Set(p)
	}
}

// Clone returns an independent copy.
func (b *Properties) Clone() *Properties {
	if b == nil {
		return NewProperties()
	}
	return NewProperties(b.list...)
}
