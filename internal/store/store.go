// Package store persists world-state snapshots and narrative memories.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/worldstate/internal/model"
)

// ErrNotFound is returned when a requested chat or version does not exist.
var ErrNotFound = errors.New("not found")

// SaveStateParams holds parameters for saving a state snapshot.
type SaveStateParams struct {
	Chat string
	Tree model.Tree
}

// GetStateParams holds parameters for loading a state snapshot.
type GetStateParams struct {
	Chat    string
	Version int // 0 means latest
}

// NarrativeParams holds parameters for appending a narrative.
type NarrativeParams struct {
	Chat    string
	Seq     int64
	Content string
}

// ListParams holds parameters for listing narratives.
type ListParams struct {
	Chat  string
	Limit int
}

// Store defines the persistence interface used by the sync pipeline and
// the CLI.
type Store interface {
	// SaveState appends a new snapshot version for the chat.
	SaveState(ctx context.Context, p SaveStateParams) (*model.StateVersion, error)

	// LoadState returns a snapshot. The latest snapshot of a chat that has
	// none is an empty tree at version 0.
	LoadState(ctx context.Context, p GetStateParams) (*model.StateVersion, error)

	// StateHistory lists snapshot versions newest first, without trees.
	StateHistory(ctx context.Context, chat string, limit int) ([]model.StateVersion, error)

	// AppendNarrative stores a narrative. Blank content is not stored and
	// returns nil.
	AppendNarrative(ctx context.Context, p NarrativeParams) (*model.Narrative, error)

	// ListNarratives lists a chat's narratives newest first.
	ListNarratives(ctx context.Context, p ListParams) ([]model.Narrative, error)

	// DeleteChat removes every snapshot and narrative of a chat.
	DeleteChat(ctx context.Context, chat string) error

	// Close closes the store.
	Close() error
}
