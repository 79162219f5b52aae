package model

// Scope says who owns a record. An empty Actor is the shared partition; a
// non-empty Actor is the raw character token as written in the text, not
// yet resolved to an id.
type Scope struct {
	Actor string `json:"actor,omitempty"`
}

// Shared reports whether the scope is the shared partition.
func (s Scope) Shared() bool { return s.Actor == "" }

// Record is one parsed tag. Records live for a single merge.
type Record struct {
	Key            string `json:"key"`
	Category       string `json:"category"`
	Scope          Scope  `json:"scope"`
	Values         Values `json:"values"`
	SourceSequence int64  `json:"source_sequence"`
	RawLine        string `json:"raw_line"`
}

// PresenceField is the canonical directive field for character presence.
const PresenceField = "isPresent"

// Directive is a boolean meta instruction for a character.
type Directive struct {
	Actor string `json:"actor"`
	Field string `json:"field"`
	Value bool   `json:"value"`
}

// Batch is everything parsed from one chat turn, in text order.
type Batch struct {
	Records    []Record    `json:"records"`
	Directives []Directive `json:"directives,omitempty"`
}

// Shared returns the shared-scope records.
func (b Batch) Shared() []Record {
	var out []Record
	for _, r := range b.Records {
		if r.Scope.Shared() {
			out = append(out, r)
		}
	}
	return out
}

// Actors returns the distinct raw actor tokens of records and directives in
// order of first appearance.
func (b Batch) Actors() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, r := range b.Records {
		add(r.Scope.Actor)
	}
	for _, d := range b.Directives {
		add(d.Actor)
	}
	return out
}

// ForActor returns the records written for actor.
func (b Batch) ForActor(actor string) []Record {
	var out []Record
	for _, r := range b.Records {
		if r.Scope.Actor == actor && actor != "" {
			out = append(out, r)
		}
	}
	return out
}

// Empty reports whether nothing was parsed.
func (b Batch) Empty() bool {
	return len(b.Records) == 0 && len(b.Directives) == 0
}
