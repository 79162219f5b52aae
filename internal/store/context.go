package store

import (
	"context"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/rcliao/worldstate/internal/model"
)

// RecallParams holds parameters for recall assembly.
type RecallParams struct {
	Chat   string
	Query  string // optional; matching narratives score higher
	Budget int    // max tokens in output (rough proxy: 1 token ≈ 4 chars)
}

// RecallNarrative is a scored narrative in a recall result.
type RecallNarrative struct {
	Seq     int64   `json:"seq"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Excerpt bool    `json:"excerpt,omitempty"`
}

// RecallResult is the assembled long-term memory for a prompt, oldest
// turn first.
type RecallResult struct {
	Budget     int               `json:"budget"`
	Used       int               `json:"used"`
	Narratives []RecallNarrative `json:"narratives"`
}

const recallCandidates = 50

// Recall picks a chat's narratives that fit a token budget, preferring
// recent turns and, when a query is given, narratives that mention it.
func (s *SQLiteStore) Recall(ctx context.Context, p RecallParams) (*RecallResult, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = 1000
	}
	charBudget := budget * 4

	recent, err := s.ListNarratives(ctx, ListParams{Chat: p.Chat, Limit: recallCandidates})
	if err != nil {
		return nil, err
	}
	matched := map[string]bool{}
	if p.Query != "" {
		hits, err := s.Search(ctx, SearchParams{Chat: p.Chat, Query: p.Query, Limit: recallCandidates})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if !matched[h.ID] {
				matched[h.ID] = true
				recent = append(recent, h.Narrative)
			}
		}
	}

	result := &RecallResult{Budget: budget, Narratives: []RecallNarrative{}}
	if len(recent) == 0 {
		return result, nil
	}

	var latest int64
	for _, n := range recent {
		if n.Seq > latest {
			latest = n.Seq
		}
	}

	type scored struct {
		narrative model.Narrative
		score     float64
	}
	var candidates []scored
	seen := map[string]bool{}
	for _, n := range recent {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		// Recency decays per turn behind the latest one.
		recency := math.Exp(-0.1 * float64(latest-n.Seq))
		relevance := 0.0
		if matched[n.ID] {
			relevance = 1.0
		}
		score := relevance*0.6 + recency*0.4
		if p.Query == "" {
			score = recency
		}
		candidates = append(candidates, scored{narrative: n, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].narrative.Seq > candidates[j].narrative.Seq
	})

	used := 0
	for _, c := range candidates {
		contentLen := len(c.narrative.Content)
		if used+contentLen <= charBudget {
			result.Narratives = append(result.Narratives, RecallNarrative{
				Seq:     c.narrative.Seq,
				Content: c.narrative.Content,
				Score:   math.Round(c.score*100) / 100,
			})
			used += contentLen
			continue
		}
		if remaining := charBudget - used; remaining >= 100 {
			excerpt := truncate(c.narrative.Content, remaining) + "..."
			result.Narratives = append(result.Narratives, RecallNarrative{
				Seq:     c.narrative.Seq,
				Content: excerpt,
				Score:   math.Round(c.score*100) / 100,
				Excerpt: true,
			})
			used += len(excerpt)
		}
		break
	}

	sort.SliceStable(result.Narratives, func(i, j int) bool {
		return result.Narratives[i].Seq < result.Narratives[j].Seq
	})
	result.Used = used / 4

	return result, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
