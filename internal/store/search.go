package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rcliao/worldstate/internal/model"
)

// SearchParams holds parameters for searching narratives.
type SearchParams struct {
	Chat  string // empty searches every chat
	Query string
	Limit int
}

// SearchResult wraps a narrative with the first chunk that matched.
type SearchResult struct {
	model.Narrative
	MatchChunk *model.Chunk `json:"match_chunk,omitempty"`
}

// Search finds narratives whose text contains the query substring, newest
// first. Matching follows SQLite LIKE, so only ASCII letters fold case.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + escapeLike(p.Query) + "%"

	where := []string{`n.content LIKE ? ESCAPE '\'`}
	args := []interface{}{query, query}
	if p.Chat != "" {
		where = append(where, "n.chat = ?")
		args = append(args, p.Chat)
	}

	// A match that spans two chunks leaves the narrative without a chunk
	// row; the LEFT JOIN keeps it.
	sqlText := `
		SELECT n.id, n.chat, n.seq, n.content, n.created_at,
		       c.id, c.seq, c.text, c.start_line, c.end_line
		FROM narratives n
		LEFT JOIN chunks c ON c.narrative_id = n.id AND c.text LIKE ? ESCAPE '\'
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY n.seq DESC, n.id DESC, c.seq ASC`

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	seen := map[string]bool{}
	for rows.Next() {
		var r SearchResult
		var createdAt string
		var chunkID, chunkText sql.NullString
		var chunkSeq, startLine, endLine sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Chat, &r.Seq, &r.Content, &createdAt,
			&chunkID, &chunkSeq, &chunkText, &startLine, &endLine); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if chunkID.Valid {
			r.MatchChunk = &model.Chunk{
				ID:          chunkID.String,
				NarrativeID: r.ID,
				Seq:         int(chunkSeq.Int64),
				Text:        chunkText.String,
				StartLine:   int(startLine.Int64),
				EndLine:     int(endLine.Int64),
			}
		}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
