// Package schema defines the field registry that tells the parser and the
// diff generator how a field's raw text is shaped.
package schema

import "strings"

const (
	DefaultFieldSeparator    = "|"
	DefaultSubFieldSeparator = "@"
)

// Kind names a shape for logs, events and config files.
type Kind string

const (
	KindScalar     Kind = "scalar"
	KindNumeric    Kind = "numeric"
	KindArray      Kind = "array"
	KindObjectList Kind = "object-list"
)

// Shape is the declared value structure of a field. It is a closed set:
// Scalar, Numeric, Array and ObjectList are the only implementations.
type Shape interface {
	Kind() Kind
	sealed()
}

// Scalar is a single text value.
type Scalar struct{}

// Numeric is a number with named sub-fields such as current, max, change
// and reason, stored positionally.
type Numeric struct {
	Parts []SubField
}

// Array is a delimited list of opaque strings.
type Array struct{}

// ObjectList is a list of composite objects whose parts follow Fields.
type ObjectList struct {
	Fields []SubField
}

func (Scalar) Kind() Kind     { return KindScalar }
func (Numeric) Kind() Kind    { return KindNumeric }
func (Array) Kind() Kind      { return KindArray }
func (ObjectList) Kind() Kind { return KindObjectList }

func (Scalar) sealed()     {}
func (Numeric) sealed()    {}
func (Array) sealed()      {}
func (ObjectList) sealed() {}

// SubField is one named position inside a numeric value or an object.
type SubField struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Index returns the position of the first part whose name matches one of
// names, ignoring case, or -1.
func (n Numeric) Index(names ...string) int {
	for i, p := range n.Parts {
		for _, name := range names {
			if strings.EqualFold(p.Name, name) {
				return i
			}
		}
	}
	return -1
}

// Field is a registry entry.
type Field struct {
	Key               string
	Shape             Shape
	FieldSeparator    string
	SubFieldSeparator string
}

// Separators returns the field's separators with defaults applied.
func (f Field) Separators() (field, sub string) {
	field, sub = f.FieldSeparator, f.SubFieldSeparator
	if field == "" {
		field = DefaultFieldSeparator
	}
	if sub == "" {
		sub = DefaultSubFieldSeparator
	}
	return field, sub
}

// Registry maps field keys to their schema. A Registry is read-only once
// built; callers swap whole registries between sync cycles.
type Registry struct {
	fields map[string]Field
	order  []string
}

// NewRegistry builds a registry. Later fields with the same key replace
// earlier ones. An ObjectList without fields degrades to Array so each
// element is kept as an opaque string.
func NewRegistry(fields ...Field) *Registry {
	r := &Registry{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		if f.Shape == nil {
			f.Shape = Scalar{}
		}
		if ol, ok := f.Shape.(ObjectList); ok && len(ol.Fields) == 0 {
			f.Shape = Array{}
		}
		if _, exists := r.fields[f.Key]; !exists {
			r.order = append(r.order, f.Key)
		}
		r.fields[f.Key] = f
	}
	return r
}

// Lookup returns the schema for key. A nil Registry has no entries.
func (r *Registry) Lookup(key string) (Field, bool) {
	if r == nil {
		return Field{}, false
	}
	f, ok := r.fields[key]
	return f, ok
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

// Fields returns all entries in registration order.
func (r *Registry) Fields() []Field {
	if r == nil {
		return nil
	}
	out := make([]Field, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.fields[k])
	}
	return out
}
