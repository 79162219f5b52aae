package merge

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/parser"
	"github.com/rcliao/worldstate/internal/schema"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(Options{IDs: &seqIDs{}, Now: func() time.Time { return fixedNow }})
}

func hpRegistry() *schema.Registry {
	return schema.NewRegistry(schema.Field{Key: "体力", Shape: schema.Numeric{Parts: []schema.SubField{
		{Name: "current"}, {Name: "max"}, {Name: "change"}, {Name: "reason"},
	}}})
}

func treeWithHP(seq int64, locked bool) model.Tree {
	tree := model.NewTree()
	tree.IDMap["Eria"] = "Eria"
	tree.Characters["Eria"] = model.Partition{"CV": {{
		Key:            "体力",
		Category:       "CV",
		Values:         model.Strs("100", "100"),
		SourceSequence: seq,
		UserLocked:     locked,
		UniqueID:       "hp",
	}}}
	tree.Meta.MessageCount = seq
	return tree
}

func TestMergeOverwritesNewerValue(t *testing.T) {
	e := newTestEngine()
	prev := treeWithHP(5, false)
	batch := parser.Parse("[Eria^CV|体力::80|100|-5|中毒]", hpRegistry(), 6)

	res := e.Merge(prev, batch, 6)
	require.False(t, res.Rejected)
	require.Empty(t, res.Warnings)

	it, ok := res.Tree.Characters["Eria"].Get("CV", "体力")
	require.True(t, ok)
	assert.Equal(t, model.Strs("80", "100", "-5", "中毒"), it.Values)
	assert.Equal(t, int64(6), it.SourceSequence)
	assert.Equal(t, "hp", it.UniqueID, "identity survives overwrite")
	assert.Contains(t, res.Logs, "update Eria/CV/体力 = 80|100|-5|中毒")

	assert.Equal(t, int64(6), res.Tree.Meta.MessageCount)
	assert.Equal(t, fixedNow, res.Tree.Meta.LastUpdated)

	old, _ := prev.Characters["Eria"].Get("CV", "体力")
	assert.Equal(t, model.Strs("100", "100"), old.Values, "previous tree untouched")
}

func TestMergeRejectsTimelineContraction(t *testing.T) {
	e := newTestEngine()
	prev := treeWithHP(6, false)
	batch := parser.Parse("[Eria^CV|体力::1|100]\n[World|Weather::sun]", hpRegistry(), 4)

	res := e.Merge(prev, batch, 4)
	assert.True(t, res.Rejected)
	assert.Len(t, res.Warnings, 1)
	assert.Empty(t, res.Logs)
	if diff := cmp.Diff(prev, res.Tree); diff != "" {
		t.Errorf("tree changed on rejection (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdempotentForSameTurn(t *testing.T) {
	e := newTestEngine()
	text := `[World|Weather::rain]
[Eria^CV|体力::90|100]
[Bob^CV|Mood::calm]
[World|Gone::nil]`
	batch := parser.Parse(text, hpRegistry(), 7)

	first := e.Merge(treeWithHP(5, false), batch, 7)
	second := e.Merge(first.Tree, batch, 7)

	if diff := cmp.Diff(first.Tree, second.Tree); diff != "" {
		t.Errorf("second merge changed the tree (-first +second):\n%s", diff)
	}
	assert.Empty(t, second.NewIDs)
	for _, l := range second.Logs {
		assert.NotContains(t, l, "update")
		assert.NotContains(t, l, "add ")
	}
}

func TestMergeLaterLineInSameBatchWins(t *testing.T) {
	e := newTestEngine()
	batch := parser.Parse("[World|Weather::rain]\n[World|Weather::snow]", nil, 3)
	res := e.Merge(model.NewTree(), batch, 3)
	it, ok := res.Tree.Shared.Get("World", "Weather")
	require.True(t, ok)
	assert.Equal(t, model.Strs("snow"), it.Values)
}

func TestMergeNeverOverridesLockedItem(t *testing.T) {
	e := newTestEngine()
	prev := treeWithHP(5, true)
	for _, seq := range []int64{5, 6, 100} {
		batch := parser.Parse("[Eria^CV|体力::1|100]\n[Eria^CV|体力::nil]", hpRegistry(), seq)
		res := e.Merge(prev, batch, seq)
		it, ok := res.Tree.Characters["Eria"].Get("CV", "体力")
		require.True(t, ok, "seq %d", seq)
		assert.Equal(t, model.Strs("100", "100"), it.Values, "seq %d", seq)
		assert.Contains(t, res.Logs, "skip Eria/CV/体力: locked by user")
	}
}

func TestMergeDropsStaleRecord(t *testing.T) {
	e := newTestEngine()
	prev := treeWithHP(8, false)
	prev.Meta.MessageCount = 5

	batch := parser.Parse("[Eria^CV|体力::1|100]", hpRegistry(), 6)
	res := e.Merge(prev, batch, 6)
	it, _ := res.Tree.Characters["Eria"].Get("CV", "体力")
	assert.Equal(t, model.Strs("100", "100"), it.Values)
	assert.Equal(t, int64(8), it.SourceSequence)
}

func TestMergeDeletion(t *testing.T) {
	e := newTestEngine()
	for _, seq := range []int64{5, 6} {
		t.Run(fmt.Sprintf("seq %d", seq), func(t *testing.T) {
			prev := treeWithHP(5, false)
			batch := parser.Parse("[Eria^CV|体力::nil]", hpRegistry(), seq)
			res := e.Merge(prev, batch, seq)
			_, ok := res.Tree.Characters["Eria"].Get("CV", "体力")
			assert.False(t, ok)
			assert.NotContains(t, res.Tree.Characters["Eria"], "CV", "empty category dropped")
			assert.Contains(t, res.Logs, "delete Eria/CV/体力")
		})
	}
}

func TestMergeDeletionOfMissingKeyIsSkipped(t *testing.T) {
	e := newTestEngine()
	res := e.Merge(model.NewTree(), parser.Parse("[World|Weather::nil]", nil, 1), 1)
	assert.Empty(t, res.Tree.Shared)
	assert.Contains(t, res.Logs, "skip shared/World/Weather: delete of missing field")
}

func TestMergeRegistersCharactersAndKeepsOrder(t *testing.T) {
	e := newTestEngine()
	tree := model.NewTree()
	tree.IDMap["c1"] = "Eria"
	tree.Characters["c1"] = model.Partition{"Bag": {
		{Key: "a", Category: "Bag", Values: model.Strs("1"), SourceSequence: 1, UniqueID: "a"},
		{Key: "b", Category: "Bag", Values: model.Strs("2"), SourceSequence: 1, UniqueID: "b"},
	}}
	text := `[Eria^Bag|b::20]
[Eria^Bag|c::3]
[Eria^Bag|a::10]
[Nova^Bag|x::1]
[{{user}}^Bag|gold::5]`
	res := e.Merge(tree, parser.Parse(text, nil, 2), 2)

	assert.Equal(t, []string{"Nova"}, res.NewIDs)
	assert.Contains(t, res.Logs, `registered character "Nova"`)
	assert.Equal(t, "Nova", res.Tree.IDMap["Nova"])
	assert.Equal(t, model.UserName, res.Tree.IDMap[model.UserID])

	var keys []string
	for _, it := range res.Tree.Characters["c1"]["Bag"] {
		keys = append(keys, it.Key+"="+it.Values.String())
	}
	assert.Equal(t, []string{"a=10", "b=20", "c=3"}, keys)

	gold, ok := res.Tree.Characters[model.UserID].Get("Bag", "gold")
	require.True(t, ok)
	assert.Equal(t, "id-003", gold.UniqueID)
	assert.NotContains(t, res.Tree.Characters, "{{user}}")
}

func TestMergeProfileNameRenames(t *testing.T) {
	e := newTestEngine()
	res := e.Merge(model.NewTree(), parser.Parse("[c7^Profile|name::Eria Moon]", nil, 1), 1)
	assert.Equal(t, "Eria Moon", res.Tree.IDMap["c7"])

	next := e.Merge(res.Tree, parser.Parse("[Eria Moon^CV|HP::3]", nil, 2), 2)
	_, ok := next.Tree.Characters["c7"].Get("CV", "HP")
	assert.True(t, ok, "display name resolves to the renamed id")
	assert.Empty(t, next.NewIDs)
}

func TestMergePresenceDirectives(t *testing.T) {
	e := newTestEngine()
	res := e.Merge(model.NewTree(), parser.Parse("[Eria^Meta|Present::no]\n[Eria^Meta|Mood::yes]", nil, 1), 1)
	assert.Equal(t, model.CharacterMeta{IsPresent: false}, res.Tree.CharacterMeta["Eria"])
	assert.Equal(t, "Eria", res.Tree.IDMap["Eria"])
	assert.NotContains(t, res.Tree.Characters, "Eria", "directives do not create fields")
	assert.Contains(t, res.Logs, `presence of "Eria" set to false`)
	assert.Contains(t, res.Logs, `ignored meta directive mood for "Eria"`)
}

func TestSyncMetaAdoptsMetaField(t *testing.T) {
	tree := model.NewTree()
	tree.IDMap["Eria"] = "Eria"
	tree.Characters["Eria"] = model.Partition{"System": {{Key: "Visible", Values: model.Strs("off")}}}

	out, logs := SyncMeta(tree)
	assert.False(t, out.Present("Eria"))
	require.Len(t, logs, 1)
	assert.True(t, tree.Present("Eria"), "input untouched")

	again, logs := SyncMeta(out)
	assert.Empty(t, logs, "idempotent")
	if diff := cmp.Diff(out, again); diff != "" {
		t.Errorf("second sync changed the tree:\n%s", diff)
	}
}

func TestSyncMetaIgnoresUnparseable(t *testing.T) {
	tree := model.NewTree()
	tree.Characters["ghost"] = model.Partition{"Meta": {{Key: "present", Values: model.Strs("sort of")}}}
	out, logs := SyncMeta(tree)
	assert.Empty(t, logs)
	assert.True(t, out.Present("ghost"))
	assert.Equal(t, "ghost", out.IDMap["ghost"], "id map invariant restored")
}
