package model

import "strings"

// DeletionSentinel is the value text that asks the merge to remove a field.
const DeletionSentinel = "nil"

// Values is the parsed payload of a field. Object-list fields use Entries;
// every other shape uses Strings.
type Values struct {
	Strings []string `json:"strings,omitempty"`
	Entries []Entry  `json:"entries,omitempty"`
}

// Strs builds a string-list Values.
func Strs(s ...string) Values {
	return Values{Strings: s}
}

// Deletion returns the deletion sentinel.
func Deletion() Values {
	return Values{Strings: []string{DeletionSentinel}}
}

// IsDeletion reports whether v is exactly the deletion sentinel.
func (v Values) IsDeletion() bool {
	return len(v.Entries) == 0 && len(v.Strings) == 1 && v.Strings[0] == DeletionSentinel
}

// IsObjects reports whether v holds composite entries.
func (v Values) IsObjects() bool {
	return len(v.Entries) > 0
}

// Len returns the number of elements.
func (v Values) Len() int {
	if v.IsObjects() {
		return len(v.Entries)
	}
	return len(v.Strings)
}

// First returns the first element rendered as text.
func (v Values) First() (string, bool) {
	switch {
	case len(v.Entries) > 0:
		return v.Entries[0].String(), true
	case len(v.Strings) > 0:
		return v.Strings[0], true
	}
	return "", false
}

// At returns the i-th string element.
func (v Values) At(i int) (string, bool) {
	if i < 0 || i >= len(v.Strings) {
		return "", false
	}
	return v.Strings[i], true
}

// Elements renders every element as text, in order.
func (v Values) Elements() []string {
	if v.IsObjects() {
		out := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			out[i] = e.String()
		}
		return out
	}
	return append([]string(nil), v.Strings...)
}

// Equal compares element by element.
func (v Values) Equal(o Values) bool {
	if len(v.Strings) != len(o.Strings) || len(v.Entries) != len(o.Entries) {
		return false
	}
	for i := range v.Strings {
		if v.Strings[i] != o.Strings[i] {
			return false
		}
	}
	for i := range v.Entries {
		if !v.Entries[i].Equal(o.Entries[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	out := Values{}
	if v.Strings != nil {
		out.Strings = append([]string(nil), v.Strings...)
	}
	if v.Entries != nil {
		out.Entries = make([]Entry, len(v.Entries))
		for i, e := range v.Entries {
			out.Entries[i] = e.Clone()
		}
	}
	return out
}

// String joins the elements with "|".
func (v Values) String() string {
	return strings.Join(v.Elements(), "|")
}

// Entry is one object of an object-list field. Fields follow the schema's
// sub-field order. Parts beyond the declared fields are preserved verbatim
// in Extra.
type Entry struct {
	Fields []EntryField `json:"fields"`
	Extra  []string     `json:"extra,omitempty"`
}

// EntryField is a named part of an Entry.
type EntryField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Get returns the value of the named field.
func (e Entry) Get(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Equal compares fields and extras in order.
func (e Entry) Equal(o Entry) bool {
	if len(e.Fields) != len(o.Fields) || len(e.Extra) != len(o.Extra) {
		return false
	}
	for i := range e.Fields {
		if e.Fields[i] != o.Fields[i] {
			return false
		}
	}
	for i := range e.Extra {
		if e.Extra[i] != o.Extra[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	out := Entry{Fields: append([]EntryField(nil), e.Fields...)}
	if e.Extra != nil {
		out.Extra = append([]string(nil), e.Extra...)
	}
	return out
}

// String renders non-empty parts joined by "@".
func (e Entry) String() string {
	parts := make([]string, 0, len(e.Fields)+len(e.Extra))
	for _, f := range e.Fields {
		if f.Value != "" {
			parts = append(parts, f.Value)
		}
	}
	parts = append(parts, e.Extra...)
	return strings.Join(parts, "@")
}
