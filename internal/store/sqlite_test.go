package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/worldstate/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTree(turn int64) model.Tree {
	tree := model.NewTree()
	tree.IDMap["eria"] = "Eria"
	tree.Characters["eria"] = model.Partition{
		"CV": {{Key: "体力", Category: "CV", Values: model.Strs("80", "100"), SourceSequence: turn, UniqueID: "01A"}},
		"Relations": {{Key: "Relations", Category: "Relations", UniqueID: "01B", Values: model.Values{Entries: []model.Entry{
			{Fields: []model.EntryField{{Name: "target", Value: "Bob"}, {Name: "attitude", Value: "wary"}}, Extra: []string{"since turn 2"}},
		}}}},
	}
	tree.CharacterMeta["eria"] = model.CharacterMeta{IsPresent: false}
	tree.Meta.MessageCount = turn
	return tree
}

func TestLoadStateOfNewChat(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.LoadState(ctx, GetStateParams{Chat: "new"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Version != 0 {
		t.Errorf("expected version 0, got %d", st.Version)
	}
	if st.Tree == nil || st.Tree.Name(model.UserID) != model.UserName {
		t.Error("expected an empty tree with the user registered")
	}
}

func TestSaveAndLoadState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SaveState(ctx, SaveStateParams{Chat: "c1", Tree: sampleTree(6)})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1, got %d", saved.Version)
	}
	if saved.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := s.LoadState(ctx, GetStateParams{Chat: "c1"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MessageCount != 6 {
		t.Errorf("expected message_count 6, got %d", got.MessageCount)
	}
	item, ok := got.Tree.Characters["eria"].Get("CV", "体力")
	if !ok {
		t.Fatal("expected 体力 to round-trip")
	}
	if item.Values.String() != "80|100" || item.SourceSequence != 6 || item.UniqueID != "01A" {
		t.Errorf("unexpected item %+v", item)
	}
	rel, _ := got.Tree.Characters["eria"].Get("Relations", "Relations")
	want := sampleTree(6).Characters["eria"]["Relations"][0].Values
	if !rel.Values.Equal(want) {
		t.Errorf("expected %v, got %v", want, rel.Values)
	}
	if got.Tree.Present("eria") {
		t.Error("expected presence to round-trip")
	}
	if got.Tree.Name("eria") != "Eria" {
		t.Errorf("expected name Eria, got %q", got.Tree.Name("eria"))
	}
}

func TestStateVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveState(ctx, SaveStateParams{Chat: "c1", Tree: sampleTree(1)})
	s.SaveState(ctx, SaveStateParams{Chat: "c1", Tree: sampleTree(2)})
	s.SaveState(ctx, SaveStateParams{Chat: "other", Tree: sampleTree(9)})

	latest, _ := s.LoadState(ctx, GetStateParams{Chat: "c1"})
	if latest.Version != 2 || latest.MessageCount != 2 {
		t.Errorf("expected version 2 at turn 2, got version %d at turn %d", latest.Version, latest.MessageCount)
	}

	v1, err := s.LoadState(ctx, GetStateParams{Chat: "c1", Version: 1})
	if err != nil {
		t.Fatalf("load v1: %v", err)
	}
	if v1.Tree.Meta.MessageCount != 1 {
		t.Errorf("expected turn 1, got %d", v1.Tree.Meta.MessageCount)
	}

	_, err = s.LoadState(ctx, GetStateParams{Chat: "c1", Version: 7})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	hist, err := s.StateHistory(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(hist))
	}
	if hist[0].Version != 2 || hist[1].Version != 1 {
		t.Errorf("expected newest first, got %d then %d", hist[0].Version, hist[1].Version)
	}
	if hist[0].Tree != nil {
		t.Error("history should not carry trees")
	}
}

func TestSaveStateRequiresChat(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveState(context.Background(), SaveStateParams{Tree: model.NewTree()}); err == nil {
		t.Error("expected error for empty chat")
	}
}

func TestAppendAndListNarratives(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.AppendNarrative(ctx, NarrativeParams{Chat: "c1", Seq: 1, Content: "  Eria enters the scene.\n"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n.Content != "Eria enters the scene." {
		t.Errorf("expected trimmed content, got %q", n.Content)
	}
	s.AppendNarrative(ctx, NarrativeParams{Chat: "c1", Seq: 2, Content: "Eria's 体力 fell from 100 to 80 (-20)."})
	s.AppendNarrative(ctx, NarrativeParams{Chat: "c2", Seq: 1, Content: "Bob leaves the scene."})

	blank, err := s.AppendNarrative(ctx, NarrativeParams{Chat: "c1", Seq: 3, Content: " \n "})
	if err != nil || blank != nil {
		t.Errorf("expected blank narrative to be skipped, got %v, %v", blank, err)
	}

	list, err := s.ListNarratives(ctx, ListParams{Chat: "c1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
	if list[0].Seq != 2 {
		t.Errorf("expected newest first, got seq %d", list[0].Seq)
	}

	limited, _ := s.ListNarratives(ctx, ListParams{Chat: "c1", Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}

func TestDeleteChat(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveState(ctx, SaveStateParams{Chat: "c1", Tree: sampleTree(1)})
	s.AppendNarrative(ctx, NarrativeParams{Chat: "c1", Seq: 1, Content: "Eria enters the scene."})
	s.SaveState(ctx, SaveStateParams{Chat: "c2", Tree: sampleTree(1)})

	if err := s.DeleteChat(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st, _ := s.LoadState(ctx, GetStateParams{Chat: "c1"})
	if st.Version != 0 {
		t.Errorf("expected empty state after delete, got version %d", st.Version)
	}
	list, _ := s.ListNarratives(ctx, ListParams{Chat: "c1"})
	if len(list) != 0 {
		t.Errorf("expected no narratives, got %d", len(list))
	}

	var chunks int
	s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks)
	if chunks != 0 {
		t.Errorf("expected chunks to cascade, got %d", chunks)
	}

	if err := s.DeleteChat(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if st, _ := s.LoadState(ctx, GetStateParams{Chat: "c2"}); st.Version != 1 {
		t.Error("other chat should be untouched")
	}
}

func TestStatsAndChats(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "stats.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.SaveState(ctx, SaveStateParams{Chat: "c1", Tree: sampleTree(1)})
	s.SaveState(ctx, SaveStateParams{Chat: "c1", Tree: sampleTree(4)})
	s.AppendNarrative(ctx, NarrativeParams{Chat: "c1", Seq: 4, Content: "Eria enters the scene."})
	s.SaveState(ctx, SaveStateParams{Chat: "c2", Tree: sampleTree(2)})

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalStates != 3 || st.TotalNarratives != 1 || st.TotalChunks != 1 {
		t.Errorf("unexpected totals %+v", st)
	}
	if st.DBPath != dbPath {
		t.Errorf("expected db path %q, got %q", dbPath, st.DBPath)
	}
	if len(st.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(st.Chats))
	}
	if st.Chats[0].Chat != "c2" {
		t.Errorf("expected most recently updated chat first, got %q", st.Chats[0].Chat)
	}
	c1 := st.Chats[1]
	if c1.Versions != 2 || c1.MessageCount != 4 || c1.Narratives != 1 {
		t.Errorf("unexpected c1 summary %+v", c1)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
