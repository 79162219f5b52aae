// Package narrative compares two world-state trees and renders the
// differences as prose through a swappable template set.
package narrative

import (
	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/schema"
)

// ChangeType classifies an Event.
type ChangeType string

const (
	ItemAdded               ChangeType = "item_added"
	ItemRemoved             ChangeType = "item_removed"
	NumericDramaticIncrease ChangeType = "numeric_dramatic_increase"
	NumericDramaticDecrease ChangeType = "numeric_dramatic_decrease"
	NumericSubtleIncrease   ChangeType = "numeric_subtle_increase"
	NumericSubtleDecrease   ChangeType = "numeric_subtle_decrease"
	ArrayItemsAdded         ChangeType = "array_items_added"
	ArrayItemsRemoved       ChangeType = "array_items_removed"
	ArrayItemsReplaced      ChangeType = "array_items_replaced"
	TextChange              ChangeType = "text_change"
	CharacterEnters         ChangeType = "character_enters"
	CharacterLeaves         ChangeType = "character_leaves"
)

// Source says who caused a change.
type Source string

const (
	SourceAI   Source = "ai"
	SourceUser Source = "user"
)

// Event is one classified difference between two trees.
type Event struct {
	Source      Source `json:"source"`
	CharacterID string `json:"character_id,omitempty"`
	// Character is the display name; empty for the shared partition.
	Character string       `json:"character,omitempty"`
	Category  string       `json:"category,omitempty"`
	Key       string       `json:"key,omitempty"`
	Change    ChangeType   `json:"change"`
	Shape     schema.Kind  `json:"shape,omitempty"`
	Previous  model.Values `json:"previous"`
	Current   model.Values `json:"current"`
	Details   Details      `json:"details"`
}

// Details holds the specifics templates draw on.
type Details struct {
	Old    float64 `json:"old,omitempty"`
	New    float64 `json:"new,omitempty"`
	Diff   float64 `json:"diff,omitempty"`
	Max    float64 `json:"max,omitempty"`
	HasMax bool    `json:"has_max,omitempty"`
	Ratio  float64 `json:"ratio,omitempty"`
	Change string  `json:"change,omitempty"`
	Reason string  `json:"reason,omitempty"`

	OldText string `json:"old_text,omitempty"`
	NewText string `json:"new_text,omitempty"`

	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}
