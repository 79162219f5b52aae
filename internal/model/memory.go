// Package model defines the world-state data types shared by the parser,
// the merge engine, the narrative generator and the store.
package model

import "time"

// Narrative is a rendered change summary appended to a chat's long-term
// memory.
type Narrative struct {
	ID        string    `json:"id"`
	Chat      string    `json:"chat"`
	Seq       int64     `json:"seq"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// StateVersion is one persisted snapshot of a chat's tree.
type StateVersion struct {
	ID           string    `json:"id"`
	Chat         string    `json:"chat"`
	Version      int       `json:"version"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	Tree         *Tree     `json:"tree,omitempty"`
}

// Chunk is a searchable slice of a narrative.
type Chunk struct {
	ID          string `json:"id"`
	NarrativeID string `json:"narrative_id"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
}
