package store

import (
	"context"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string        `json:"db_path"`
	DBSizeBytes     int64         `json:"db_size_bytes"`
	TotalStates     int           `json:"total_states"`
	TotalNarratives int           `json:"total_narratives"`
	TotalChunks     int           `json:"total_chunks"`
	Chats           []ChatSummary `json:"chats"`
}

// ChatSummary holds per-chat counts.
type ChatSummary struct {
	Chat         string    `json:"chat"`
	Versions     int       `json:"versions"`
	MessageCount int64     `json:"message_count"`
	Narratives   int       `json:"narratives"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM states`).Scan(&st.TotalStates)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM narratives`).Scan(&st.TotalNarratives)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.TotalChunks)

	chats, err := s.ListChats(ctx)
	if err != nil {
		return st, err
	}
	st.Chats = chats
	return st, nil
}

// ListChats summarizes every chat with a saved state, most recently
// updated first.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]ChatSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.chat, COUNT(*), MAX(s.message_count), MAX(s.created_at),
		       (SELECT COUNT(*) FROM narratives n WHERE n.chat = s.chat)
		FROM states s
		GROUP BY s.chat
		ORDER BY MAX(s.created_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var c ChatSummary
		var updatedAt string
		if err := rows.Scan(&c.Chat, &c.Versions, &c.MessageCount, &updatedAt, &c.Narratives); err != nil {
			return nil, err
		}
		c.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
