// Package pipeline runs sync cycles: a turn's text is parsed, merged into
// the previous tree and described as a narrative, then persisted.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/worldstate/internal/config"
	"github.com/rcliao/worldstate/internal/merge"
	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/narrative"
	"github.com/rcliao/worldstate/internal/parser"
	"github.com/rcliao/worldstate/internal/store"
)

// Snapshotter supplies the schema and templates for a cycle.
type Snapshotter interface {
	Current() config.Snapshot
}

// StateStore is the persistence a Service needs.
type StateStore interface {
	LoadState(ctx context.Context, p store.GetStateParams) (*model.StateVersion, error)
	SaveState(ctx context.Context, p store.SaveStateParams) (*model.StateVersion, error)
	AppendNarrative(ctx context.Context, p store.NarrativeParams) (*model.Narrative, error)
}

// Service runs cycles against a configuration source.
type Service struct {
	source Snapshotter
	engine *merge.Engine
	logger *zap.Logger
	detect narrative.Options
}

// New returns a Service. A nil engine or logger gets a default.
func New(source Snapshotter, engine *merge.Engine, logger *zap.Logger) *Service {
	if engine == nil {
		engine = merge.New(merge.Options{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, engine: engine, logger: logger}
}

// WithDetectOptions sets the narrative threshold and structure categories.
func (s *Service) WithDetectOptions(opts narrative.Options) *Service {
	s.detect = opts
	return s
}

// Engine returns the merge engine, for manual edits.
func (s *Service) Engine() *merge.Engine {
	return s.engine
}

// Outcome is everything one cycle produced.
type Outcome struct {
	Seq       int64             `json:"seq"`
	Tree      model.Tree        `json:"-"`
	Batch     model.Batch       `json:"batch"`
	Events    []narrative.Event `json:"events"`
	Narrative string            `json:"narrative"`
	Warnings  []string          `json:"warnings,omitempty"`
	Logs      []string          `json:"logs,omitempty"`
	NewIDs    []string          `json:"new_ids,omitempty"`
	Rejected  bool              `json:"rejected,omitempty"`
}

// Cycle parses text as turn seq, merges it into prev and renders the
// difference. The configuration snapshot is read once, so a reload during
// the cycle takes effect on the next one. prev is not modified.
func (s *Service) Cycle(prev model.Tree, text string, seq int64) Outcome {
	snap := s.source.Current()

	batch := parser.New(snap.Registry).Parse(text, seq)
	res := s.engine.Merge(prev, batch, seq)

	out := Outcome{
		Seq:      seq,
		Tree:     res.Tree,
		Batch:    batch,
		Warnings: res.Warnings,
		Logs:     res.Logs,
		NewIDs:   res.NewIDs,
		Rejected: res.Rejected,
	}
	if res.Rejected {
		return out
	}

	out.Events = narrative.NewDetector(snap.Registry, s.detect).Detect(prev, res.Tree)
	out.Narrative = narrative.Render(out.Events, snap.Templates)
	return out
}

// Result is a persisted cycle.
type Result struct {
	Outcome
	State  *model.StateVersion `json:"state,omitempty"`
	Memory *model.Narrative    `json:"memory,omitempty"`
}

// Sync runs a cycle for chat against its latest stored state and saves the
// new state and narrative. A seq of zero or less means the turn after the
// stored one. A rejected batch saves nothing and is not an error.
func (s *Service) Sync(ctx context.Context, st StateStore, chat, text string, seq int64) (*Result, error) {
	prev, err := st.LoadState(ctx, store.GetStateParams{Chat: chat})
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if seq <= 0 {
		seq = prev.Tree.Meta.MessageCount + 1
	}

	log := s.logger.With(zap.String("chat", chat), zap.Int64("seq", seq))
	log.Debug("cycle start", zap.Int("version", prev.Version))

	out := s.Cycle(*prev.Tree, text, seq)
	s.report(log, out.Logs, out.Warnings)
	if out.Rejected {
		return &Result{Outcome: out}, nil
	}

	return s.persist(ctx, st, log, chat, out)
}

// Edit is a manual change to a tree. It returns the new tree and log lines.
type Edit func(prev model.Tree) (model.Tree, []string, error)

// Apply runs a manual edit against chat's latest state, saves the result
// and records the user-sourced narrative of the change.
func (s *Service) Apply(ctx context.Context, st StateStore, chat string, edit Edit) (*Result, error) {
	prev, err := st.LoadState(ctx, store.GetStateParams{Chat: chat})
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	seq := prev.Tree.Meta.MessageCount
	log := s.logger.With(zap.String("chat", chat), zap.Int64("seq", seq))

	tree, logs, err := edit(*prev.Tree)
	if err != nil {
		return nil, err
	}
	s.report(log, logs, nil)

	snap := s.source.Current()
	out := Outcome{Seq: seq, Tree: tree, Logs: logs}
	out.Events = narrative.NewDetector(snap.Registry, s.detect).Detect(*prev.Tree, tree)
	// Every difference here came from the edit, removals included.
	for i := range out.Events {
		out.Events[i].Source = narrative.SourceUser
	}
	out.Narrative = narrative.Render(out.Events, snap.Templates)

	return s.persist(ctx, st, log, chat, out)
}

func (s *Service) persist(ctx context.Context, st StateStore, log *zap.Logger, chat string, out Outcome) (*Result, error) {
	saved, err := st.SaveState(ctx, store.SaveStateParams{Chat: chat, Tree: out.Tree})
	if err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	mem, err := st.AppendNarrative(ctx, store.NarrativeParams{Chat: chat, Seq: out.Seq, Content: out.Narrative})
	if err != nil {
		return nil, fmt.Errorf("append narrative: %w", err)
	}

	log.Info("state saved",
		zap.Int("version", saved.Version),
		zap.Int("records", len(out.Batch.Records)),
		zap.Int("events", len(out.Events)),
		zap.Bool("narrative", mem != nil))
	return &Result{Outcome: out, State: saved, Memory: mem}, nil
}

func (s *Service) report(log *zap.Logger, logs, warnings []string) {
	for _, w := range warnings {
		log.Warn(w)
	}
	for _, l := range logs {
		log.Debug(l)
	}
}
