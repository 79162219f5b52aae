package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/parser"
)

func TestSetItemLocksUntilAdvanceTurn(t *testing.T) {
	e := newTestEngine()
	prev := treeWithHP(5, false)

	edited, logs := e.SetItem(prev, Target{Character: "Eria", Category: "CV", Key: "体力"}, model.Strs("50", "100"))
	require.NotEmpty(t, logs)
	it, _ := edited.Characters["Eria"].Get("CV", "体力")
	assert.True(t, it.UserLocked)
	assert.Equal(t, int64(5), it.SourceSequence)

	res := e.Merge(edited, parser.Parse("[Eria^CV|体力::1|100]", hpRegistry(), 6), 6)
	it, _ = res.Tree.Characters["Eria"].Get("CV", "体力")
	assert.Equal(t, model.Strs("50", "100"), it.Values, "lock holds against newer turns")

	unlocked, n := e.AdvanceTurn(res.Tree)
	assert.Equal(t, 1, n)
	res = e.Merge(unlocked, parser.Parse("[Eria^CV|体力::1|100]", hpRegistry(), 7), 7)
	it, _ = res.Tree.Characters["Eria"].Get("CV", "体力")
	assert.Equal(t, model.Strs("1", "100"), it.Values)
}

func TestSetItemCreatesSharedAndCharacterFields(t *testing.T) {
	e := newTestEngine()
	tree := model.NewTree()
	tree.Meta.MessageCount = 3

	tree, _ = e.SetItem(tree, Target{Category: "World", Key: "Weather"}, model.Strs("fog"))
	w, ok := tree.Shared.Get("World", "Weather")
	require.True(t, ok)
	assert.True(t, w.UserLocked)
	assert.Equal(t, "id-001", w.UniqueID)

	tree, logs := e.SetItem(tree, Target{Character: "Nova", Category: "Meta", Key: "present"}, model.Strs("false"))
	assert.False(t, tree.Present("Nova"), "meta edit syncs presence")
	assert.Equal(t, "Nova", tree.IDMap["Nova"])
	assert.Contains(t, logs[len(logs)-1], "synced to false")

	tree, _ = e.SetItem(tree, Target{Character: "Nova", Category: "Profile", Key: "Name"}, model.Strs("Nova Star"))
	assert.Equal(t, "Nova Star", tree.IDMap["Nova"])
}

func TestDeleteItem(t *testing.T) {
	e := newTestEngine()
	prev := treeWithHP(5, true)

	out, ok := e.DeleteItem(prev, Target{Character: "Eria", Category: "CV", Key: "体力"})
	assert.True(t, ok, "manual delete ignores the lock")
	_, found := out.Characters["Eria"].Get("CV", "体力")
	assert.False(t, found)
	_, found = prev.Characters["Eria"].Get("CV", "体力")
	assert.True(t, found)

	_, ok = e.DeleteItem(prev, Target{Character: "Nobody", Category: "CV", Key: "体力"})
	assert.False(t, ok)
	_, ok = e.DeleteItem(prev, Target{Category: "World", Key: "Weather"})
	assert.False(t, ok)
}

func TestSetPresence(t *testing.T) {
	e := newTestEngine()
	tree := e.SetPresence(model.NewTree(), "Eria", false)
	assert.False(t, tree.Present("Eria"))
	assert.Equal(t, "Eria", tree.IDMap["Eria"])
}
