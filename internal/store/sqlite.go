package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/worldstate/internal/chunker"
	"github.com/rcliao/worldstate/internal/model"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS states (
		id            TEXT PRIMARY KEY,
		chat          TEXT NOT NULL,
		version       INTEGER NOT NULL,
		tree          TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		UNIQUE (chat, version)
	);
	CREATE INDEX IF NOT EXISTS idx_states_chat ON states(chat, version DESC);

	CREATE TABLE IF NOT EXISTS narratives (
		id          TEXT PRIMARY KEY,
		chat        TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_narratives_chat ON narratives(chat, seq DESC);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		narrative_id TEXT NOT NULL REFERENCES narratives(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		text         TEXT NOT NULL,
		start_line   INTEGER,
		end_line     INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_narrative ON chunks(narrative_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) SaveState(ctx context.Context, p SaveStateParams) (*model.StateVersion, error) {
	if p.Chat == "" {
		return nil, errors.New("chat is required")
	}
	now := time.Now().UTC()
	id := s.newID()

	b, err := json.Marshal(p.Tree)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM states WHERE chat = ?`, p.Chat).Scan(&prevVersion)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	version := prevVersion + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO states (id, chat, version, tree, message_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.Chat, version, string(b), p.Tree.Meta.MessageCount, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	tree := p.Tree.Clone()
	return &model.StateVersion{
		ID:           id,
		Chat:         p.Chat,
		Version:      version,
		MessageCount: p.Tree.Meta.MessageCount,
		CreatedAt:    now,
		Tree:         &tree,
	}, nil
}

func (s *SQLiteStore) LoadState(ctx context.Context, p GetStateParams) (*model.StateVersion, error) {
	var row *sql.Row
	if p.Version > 0 {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, chat, version, tree, message_count, created_at
			 FROM states WHERE chat = ? AND version = ?`, p.Chat, p.Version)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, chat, version, tree, message_count, created_at
			 FROM states WHERE chat = ? ORDER BY version DESC LIMIT 1`, p.Chat)
	}

	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		if p.Version > 0 {
			return nil, fmt.Errorf("state %s@%d: %w", p.Chat, p.Version, ErrNotFound)
		}
		tree := model.NewTree()
		return &model.StateVersion{Chat: p.Chat, Tree: &tree}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) StateHistory(ctx context.Context, chat string, limit int) ([]model.StateVersion, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat, version, message_count, created_at
		 FROM states WHERE chat = ? ORDER BY version DESC LIMIT ?`, chat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []model.StateVersion
	for rows.Next() {
		var v model.StateVersion
		var createdAt string
		if err := rows.Scan(&v.ID, &v.Chat, &v.Version, &v.MessageCount, &createdAt); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStore) AppendNarrative(ctx context.Context, p NarrativeParams) (*model.Narrative, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return nil, nil
	}
	now := time.Now().UTC()
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO narratives (id, chat, seq, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, p.Chat, p.Seq, content, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert narrative: %w", err)
	}

	for i, c := range chunker.Chunk(content, chunker.DefaultOptions()) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, narrative_id, seq, text, start_line, end_line)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.newID(), id, i, c.Text, c.StartLine, c.EndLine)
		if err != nil {
			return nil, fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &model.Narrative{ID: id, Chat: p.Chat, Seq: p.Seq, Content: content, CreatedAt: now}, nil
}

func (s *SQLiteStore) ListNarratives(ctx context.Context, p ListParams) ([]model.Narrative, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat, seq, content, created_at FROM narratives
		 WHERE chat = ? ORDER BY seq DESC, id DESC LIMIT ?`, p.Chat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var narratives []model.Narrative
	for rows.Next() {
		n, err := scanNarrative(rows)
		if err != nil {
			return nil, err
		}
		narratives = append(narratives, n)
	}
	return narratives, rows.Err()
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, chat string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM states WHERE chat = ?`, chat)
	if err != nil {
		return fmt.Errorf("delete states: %w", err)
	}
	states, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM narratives WHERE chat = ?`, chat)
	if err != nil {
		return fmt.Errorf("delete narratives: %w", err)
	}
	narratives, _ := res.RowsAffected()

	if states == 0 && narratives == 0 {
		return fmt.Errorf("chat %s: %w", chat, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row scanner) (model.StateVersion, error) {
	var st model.StateVersion
	var tree, createdAt string

	err := row.Scan(&st.ID, &st.Chat, &st.Version, &tree, &st.MessageCount, &createdAt)
	if err != nil {
		return st, err
	}
	st.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	t, err := decodeTree([]byte(tree))
	if err != nil {
		return st, fmt.Errorf("state %s@%d: %w", st.Chat, st.Version, err)
	}
	st.Tree = &t
	return st, nil
}

// decodeTree reads a stored tree and fills in maps that were saved empty.
func decodeTree(b []byte) (model.Tree, error) {
	t := model.NewTree()
	if err := json.Unmarshal(b, &t); err != nil {
		return model.Tree{}, fmt.Errorf("decode tree: %w", err)
	}
	if t.Shared == nil {
		t.Shared = model.Partition{}
	}
	if t.Characters == nil {
		t.Characters = map[string]model.Partition{}
	}
	if t.IDMap == nil {
		t.IDMap = map[string]string{}
	}
	if _, ok := t.IDMap[model.UserID]; !ok {
		t.IDMap[model.UserID] = model.UserName
	}
	if t.CharacterMeta == nil {
		t.CharacterMeta = map[string]model.CharacterMeta{}
	}
	return t, nil
}

func scanNarrative(row scanner) (model.Narrative, error) {
	var n model.Narrative
	var createdAt string
	if err := row.Scan(&n.ID, &n.Chat, &n.Seq, &n.Content, &createdAt); err != nil {
		return n, err
	}
	n.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return n, nil
}
