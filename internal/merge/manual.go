package merge

import (
	"fmt"

	"github.com/rcliao/worldstate/internal/identity"
	"github.com/rcliao/worldstate/internal/model"
)

// Target addresses one field. An empty Character is the shared partition;
// otherwise it is resolved like a tag's actor token.
type Target struct {
	Character string
	Category  string
	Key       string
}

func (t Target) String() string {
	owner := t.Character
	if owner == "" {
		owner = "shared"
	}
	return owner + "/" + t.Category + "/" + t.Key
}

// SetItem writes values as a human edit: the item is created if missing,
// stamped with the tree's current turn, and locked against AI writes until
// AdvanceTurn. Presence is re-synced afterwards.
func (e *Engine) SetItem(prev model.Tree, t Target, values model.Values) (model.Tree, []string) {
	tree := prev.Clone()
	var logs []string

	id := ""
	if t.Character != "" {
		res := identity.Resolve(tree.IDMap, t.Character)
		tree.IDMap = res.IDMap
		id = res.ID
		if tree.Characters[id] == nil {
			tree.Characters[id] = model.Partition{}
		}
	}
	p := tree.Partition(id)

	if i := p.Find(t.Category, t.Key); i >= 0 {
		it := &p[t.Category][i]
		it.Values = values.Clone()
		it.SourceSequence = tree.Meta.MessageCount
		it.UserLocked = true
		logs = append(logs, fmt.Sprintf("user set %s = %s", t, values))
	} else {
		p[t.Category] = append(p[t.Category], model.Item{
			Key:            t.Key,
			Category:       t.Category,
			Values:         values.Clone(),
			SourceSequence: tree.Meta.MessageCount,
			UserLocked:     true,
			UniqueID:       e.ids.NewID(),
		})
		logs = append(logs, fmt.Sprintf("user added %s = %s", t, values))
	}

	if id != "" {
		r := &Result{}
		tree.IDMap = e.applyNames(tree.IDMap, id, p, []model.Record{{Category: t.Category, Key: t.Key}}, r)
		logs = append(logs, r.Logs...)
	}
	logs = append(logs, syncMeta(&tree)...)
	return tree, logs
}

// DeleteItem removes a field regardless of its lock. It reports whether
// anything was removed.
func (e *Engine) DeleteItem(prev model.Tree, t Target) (model.Tree, bool) {
	tree := prev.Clone()
	id := ""
	if t.Character != "" {
		if _, ok := tree.IDMap[t.Character]; ok {
			id = t.Character
		} else if byName, ok := identity.ByName(tree.IDMap, t.Character); ok {
			id = byName
		} else {
			return prev, false
		}
	}
	p := tree.Partition(id)
	i := p.Find(t.Category, t.Key)
	if i < 0 {
		return prev, false
	}
	p[t.Category] = append(p[t.Category][:i:i], p[t.Category][i+1:]...)
	if len(p[t.Category]) == 0 {
		delete(p, t.Category)
	}
	return tree, true
}

// SetPresence sets a character's structural presence directly.
func (e *Engine) SetPresence(prev model.Tree, character string, present bool) model.Tree {
	tree := prev.Clone()
	res := identity.Resolve(tree.IDMap, character)
	tree.IDMap = res.IDMap
	tree.CharacterMeta[res.ID] = model.CharacterMeta{IsPresent: present}
	return tree
}

// AdvanceTurn clears every user lock so the next AI turn may write those
// fields again. It returns the number of items unlocked.
func (e *Engine) AdvanceTurn(prev model.Tree) (model.Tree, int) {
	tree := prev.Clone()
	n := 0
	unlock := func(p model.Partition) {
		for _, items := range p {
			for i := range items {
				if items[i].UserLocked {
					items[i].UserLocked = false
					n++
				}
			}
		}
	}
	unlock(tree.Shared)
	for _, p := range tree.Characters {
		unlock(p)
	}
	return tree, n
}
