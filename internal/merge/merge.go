// Package merge reconciles parsed records against the persisted world
// state under ordering, locking and deletion rules.
package merge

import (
	"fmt"
	"time"

	"github.com/rcliao/worldstate/internal/identity"
	"github.com/rcliao/worldstate/internal/keyword"
	"github.com/rcliao/worldstate/internal/model"
)

// DefaultNameKeys are the field keys whose value becomes a character's
// display name.
var DefaultNameKeys = []string{"Name", "姓名", "名前"}

// Options configures an Engine. Zero values get defaults.
type Options struct {
	IDs      IDSource
	Now      func() time.Time
	NameKeys []string
}

// Engine merges batches into trees. It keeps no state between calls other
// than its id source.
type Engine struct {
	ids      IDSource
	now      func() time.Time
	nameKeys []string
}

// New returns an Engine.
func New(opts Options) *Engine {
	e := &Engine{ids: opts.IDs, now: opts.Now, nameKeys: opts.NameKeys}
	if e.ids == nil {
		e.ids = NewULIDSource()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if len(e.nameKeys) == 0 {
		e.nameKeys = DefaultNameKeys
	}
	return e
}

// Result is the outcome of a merge.
type Result struct {
	Tree model.Tree
	// Warnings are batch-level problems for the operator.
	Warnings []string
	// Logs record every field-level decision.
	Logs []string
	// NewIDs lists character ids registered by this merge.
	NewIDs []string
	// Rejected is true when the whole batch was refused.
	Rejected bool
}

func (r *Result) logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// Merge applies batch, produced by turn seq, to prev and returns a new tree.
// prev is not modified. A seq older than the tree's message count rejects
// the batch as a whole and returns prev unchanged.
func (e *Engine) Merge(prev model.Tree, batch model.Batch, seq int64) Result {
	if seq < prev.Meta.MessageCount {
		return Result{
			Tree:     prev,
			Rejected: true,
			Warnings: []string{fmt.Sprintf(
				"rejected batch from turn %d: state is already at turn %d", seq, prev.Meta.MessageCount)},
		}
	}

	tree := prev.Clone()
	tree.IDMap[model.UserID] = model.UserName
	tree.Meta.MessageCount = seq
	tree.Meta.LastUpdated = e.now().UTC()

	r := &Result{}
	m := &pass{engine: e, result: r, touched: make(map[string]bool)}

	m.reconcile(tree.Shared, "shared", batch.Shared())

	for _, actor := range batch.Actors() {
		res := identity.Resolve(tree.IDMap, actor)
		tree.IDMap = res.IDMap
		if res.IsNew {
			r.NewIDs = append(r.NewIDs, res.ID)
			r.logf("registered character %q", res.ID)
		}
		records := batch.ForActor(actor)
		if len(records) == 0 {
			continue
		}
		p := tree.Characters[res.ID]
		if p == nil {
			p = model.Partition{}
			tree.Characters[res.ID] = p
		}
		m.reconcile(p, res.ID, records)
		tree.IDMap = e.applyNames(tree.IDMap, res.ID, p, records, r)
	}

	for _, d := range batch.Directives {
		res := identity.Resolve(tree.IDMap, d.Actor)
		tree.IDMap = res.IDMap
		if d.Field != model.PresenceField {
			r.logf("ignored meta directive %s for %q", d.Field, res.ID)
			continue
		}
		cur, ok := tree.CharacterMeta[res.ID]
		if ok && cur.IsPresent == d.Value {
			continue
		}
		tree.CharacterMeta[res.ID] = model.CharacterMeta{IsPresent: d.Value}
		r.logf("presence of %q set to %t", res.ID, d.Value)
	}

	r.Logs = append(r.Logs, syncMeta(&tree)...)
	r.Tree = tree
	return *r
}

// pass carries the per-merge bookkeeping.
type pass struct {
	engine *Engine
	result *Result
	// touched holds the unique ids written during this merge, so a later
	// line of the same batch can still correct an earlier one.
	touched map[string]bool
}

func (m *pass) reconcile(p model.Partition, owner string, records []model.Record) {
	for _, rec := range records {
		ref := owner + "/" + rec.Category + "/" + rec.Key
		i := p.Find(rec.Category, rec.Key)

		if i < 0 {
			if rec.Values.IsDeletion() {
				m.result.logf("skip %s: delete of missing field", ref)
				continue
			}
			id := m.engine.ids.NewID()
			p[rec.Category] = append(p[rec.Category], model.Item{
				Key:            rec.Key,
				Category:       rec.Category,
				Values:         rec.Values.Clone(),
				SourceSequence: rec.SourceSequence,
				UniqueID:       id,
				RawLine:        rec.RawLine,
			})
			m.touched[id] = true
			m.result.logf("add %s = %s", ref, rec.Values)
			continue
		}

		it := &p[rec.Category][i]
		switch {
		case it.UserLocked:
			m.result.logf("skip %s: locked by user", ref)
		case rec.SourceSequence < it.SourceSequence:
			m.result.logf("skip %s: turn %d is older than stored turn %d", ref, rec.SourceSequence, it.SourceSequence)
		case rec.Values.IsDeletion():
			p[rec.Category] = append(p[rec.Category][:i:i], p[rec.Category][i+1:]...)
			if len(p[rec.Category]) == 0 {
				delete(p, rec.Category)
			}
			m.result.logf("delete %s", ref)
		case rec.SourceSequence == it.SourceSequence && !m.touched[it.UniqueID]:
			m.result.logf("skip %s: turn %d is not newer", ref, rec.SourceSequence)
		default:
			it.Values = rec.Values.Clone()
			it.SourceSequence = rec.SourceSequence
			it.RawLine = rec.RawLine
			m.touched[it.UniqueID] = true
			m.result.logf("update %s = %s", ref, rec.Values)
		}
	}
}

// applyNames adopts a display name from any name-key field the records
// touched.
func (e *Engine) applyNames(idMap map[string]string, id string, p model.Partition, records []model.Record, r *Result) map[string]string {
	for _, rec := range records {
		if !keyword.In(rec.Key, e.nameKeys...) {
			continue
		}
		it, ok := p.Get(rec.Category, rec.Key)
		if !ok {
			continue
		}
		name, ok := it.Values.First()
		if !ok {
			continue
		}
		var changed bool
		idMap, changed = identity.Rename(idMap, id, name)
		if changed {
			r.logf("renamed %q to %q", id, name)
		}
	}
	return idMap
}

// SyncMeta makes each character's presence agree with a present/visible
// field in its meta or system category. It is idempotent and may be run at
// any time, for example after a manual edit. tree is not modified.
func SyncMeta(tree model.Tree) (model.Tree, []string) {
	out := tree.Clone()
	logs := syncMeta(&out)
	return out, logs
}

func syncMeta(tree *model.Tree) []string {
	var logs []string
	for _, id := range tree.CharacterIDs() {
		if _, ok := tree.IDMap[id]; !ok {
			tree.IDMap[id] = id
		}
		p := tree.Characters[id]
		for _, cat := range p.Categories() {
			if !keyword.IsMetaCategory(cat) {
				continue
			}
			for _, it := range p[cat] {
				if !keyword.IsPresenceField(it.Key) {
					continue
				}
				first, ok := it.Values.First()
				if !ok {
					continue
				}
				v, ok := keyword.ParseBool(first)
				if !ok {
					continue
				}
				cur, exists := tree.CharacterMeta[id]
				if exists && cur.IsPresent == v {
					continue
				}
				tree.CharacterMeta[id] = model.CharacterMeta{IsPresent: v}
				logs = append(logs, fmt.Sprintf("presence of %q synced to %t from %s/%s", id, v, cat, it.Key))
			}
		}
	}
	return logs
}
