package model

import (
	"sort"
	"time"
)

const (
	// UserID is the reserved character id of the human operator.
	UserID = "user"
	// UserName is the fixed display name of UserID.
	UserName = "User"
)

// Item is a persisted field of a shared or character partition.
type Item struct {
	Key            string `json:"key"`
	Category       string `json:"category"`
	Values         Values `json:"values"`
	SourceSequence int64  `json:"source_sequence"`
	UserLocked     bool   `json:"user_locked,omitempty"`
	UniqueID       string `json:"unique_id"`
	RawLine        string `json:"raw_line,omitempty"`
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	it.Values = it.Values.Clone()
	return it
}

// Partition maps a category to its ordered item list. Keys are unique
// within one list.
type Partition map[string][]Item

// Find returns the index of key in category, or -1.
func (p Partition) Find(category, key string) int {
	for i, it := range p[category] {
		if it.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the item stored under category/key.
func (p Partition) Get(category, key string) (Item, bool) {
	if i := p.Find(category, key); i >= 0 {
		return p[category][i], true
	}
	return Item{}, false
}

// Categories returns the category names in sorted order.
func (p Partition) Categories() []string {
	out := make([]string, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (p Partition) Clone() Partition {
	if p == nil {
		return nil
	}
	out := make(Partition, len(p))
	for c, items := range p {
		cp := make([]Item, len(items))
		for i, it := range items {
			cp[i] = it.Clone()
		}
		out[c] = cp
	}
	return out
}

// CharacterMeta is structural state of a character.
type CharacterMeta struct {
	IsPresent bool `json:"is_present"`
}

// Meta tracks the timeline of the tree.
type Meta struct {
	MessageCount int64     `json:"message_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Tree is the world state. Engine functions treat a Tree as an immutable
// value: they clone before writing and return the new tree.
type Tree struct {
	Shared        Partition                `json:"shared"`
	Characters    map[string]Partition     `json:"characters"`
	IDMap         map[string]string        `json:"id_map"`
	CharacterMeta map[string]CharacterMeta `json:"character_meta"`
	Meta          Meta                     `json:"meta"`
}

// NewTree returns an empty tree with the operator registered.
func NewTree() Tree {
	return Tree{
		Shared:        Partition{},
		Characters:    map[string]Partition{},
		IDMap:         map[string]string{UserID: UserName},
		CharacterMeta: map[string]CharacterMeta{},
	}
}

// Clone returns a deep copy with every map allocated.
func (t Tree) Clone() Tree {
	out := Tree{
		Shared:        t.Shared.Clone(),
		Characters:    make(map[string]Partition, len(t.Characters)),
		IDMap:         make(map[string]string, len(t.IDMap)),
		CharacterMeta: make(map[string]CharacterMeta, len(t.CharacterMeta)),
		Meta:          t.Meta,
	}
	if out.Shared == nil {
		out.Shared = Partition{}
	}
	for id, p := range t.Characters {
		out.Characters[id] = p.Clone()
	}
	for id, name := range t.IDMap {
		out.IDMap[id] = name
	}
	for id, m := range t.CharacterMeta {
		out.CharacterMeta[id] = m
	}
	return out
}

// CharacterIDs returns the ids that own a partition or meta entry, sorted.
func (t Tree) CharacterIDs() []string {
	seen := make(map[string]bool)
	for id := range t.Characters {
		seen[id] = true
	}
	for id := range t.CharacterMeta {
		seen[id] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Present reports effective presence: a character is present unless its
// meta explicitly says otherwise.
func (t Tree) Present(id string) bool {
	m, ok := t.CharacterMeta[id]
	return !ok || m.IsPresent
}

// Name returns the display name of id, falling back to the id itself.
func (t Tree) Name(id string) string {
	if n, ok := t.IDMap[id]; ok && n != "" {
		return n
	}
	return id
}

// Partition returns the partition for scope, or nil if none exists yet.
// The returned map aliases the tree.
func (t Tree) Partition(characterID string) Partition {
	if characterID == "" {
		return t.Shared
	}
	return t.Characters[characterID]
}

// Walk calls fn for every item, shared partition first, then characters in
// id order, categories sorted. Returning false stops the walk.
func (t Tree) Walk(fn func(characterID string, it Item) bool) {
	visit := func(id string, p Partition) bool {
		for _, c := range p.Categories() {
			for _, it := range p[c] {
				if !fn(id, it) {
					return false
				}
			}
		}
		return true
	}
	if !visit("", t.Shared) {
		return
	}
	ids := make([]string, 0, len(t.Characters))
	for id := range t.Characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !visit(id, t.Characters[id]) {
			return
		}
	}
}
