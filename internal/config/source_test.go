package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/worldstate/internal/narrative"
	"github.com/rcliao/worldstate/internal/schema"
)

const hpSchema = `
fields:
  - key: 体力
    type: numeric
    parts: [{name: current}, {name: max}]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewSourceDefaults(t *testing.T) {
	src, err := NewSource("", "", nil)
	require.NoError(t, err)

	snap := src.Current()
	assert.Equal(t, 0, snap.Registry.Len())
	assert.Equal(t, narrative.DefaultTemplateSet(), snap.Templates)
}

func TestNewSourceLoadsFiles(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	tmplPath := filepath.Join(dir, "templates.yaml")
	writeFile(t, schemaPath, hpSchema)
	writeFile(t, tmplPath, "version: 2\ntemplates:\n  text_change: \"{old} -> {new}\"\n")

	src, err := NewSource(schemaPath, tmplPath, nil)
	require.NoError(t, err)

	f, ok := src.Current().Registry.Lookup("体力")
	require.True(t, ok)
	assert.Equal(t, schema.KindNumeric, f.Shape.Kind())
	assert.Equal(t, "{old} -> {new}", src.Current().Templates.Templates["text_change"])
}

func TestNewSourceErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewSource(filepath.Join(dir, "missing.yaml"), "", nil)
	assert.Error(t, err)

	_, err = NewSource(dir, "", nil)
	assert.ErrorIs(t, err, schema.ErrNoFields)

	bad := filepath.Join(dir, "templates.yaml")
	writeFile(t, bad, "version: 9\n")
	_, err = NewSource("", bad, nil)
	assert.Error(t, err)
}

func TestReloadKeepsSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeFile(t, path, hpSchema)
	src, err := NewSource(path, "", nil)
	require.NoError(t, err)

	before := src.Current()
	writeFile(t, path, "fields: [unclosed")
	assert.Error(t, src.Reload())
	assert.Same(t, before.Registry, src.Current().Registry)

	writeFile(t, path, "fields:\n  - key: Mood\n")
	require.NoError(t, src.Reload())
	_, ok := src.Current().Registry.Lookup("Mood")
	assert.True(t, ok)

	_, ok = before.Registry.Lookup("Mood")
	assert.False(t, ok, "a snapshot already handed out does not change")
}

func TestStaticSource(t *testing.T) {
	snap := Snapshot{Registry: schema.NewRegistry(schema.Field{Key: "HP"}), Templates: narrative.TemplateSet{}}
	src := StaticSource(snap)
	require.NoError(t, src.Reload())
	assert.Same(t, snap.Registry, src.Current().Registry)
}

func TestWatchNothing(t *testing.T) {
	src := StaticSource(DefaultSnapshot())
	assert.True(t, errors.Is(src.Watch(context.Background()), ErrNothingToWatch))
}

func TestWatchReloadsSchemaDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.yaml"), hpSchema)

	src, err := NewSource(dir, "", nil)
	require.NoError(t, err)
	src.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// The watcher registers asynchronously; keep touching the file until
	// the reload is observed.
	require.Eventually(t, func() bool {
		writeFile(t, filepath.Join(dir, "chars", "extra.yml"), "fields:\n  - key: Mood\n")
		_, ok := src.Current().Registry.Lookup("Mood")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	_, ok := src.Current().Registry.Lookup("体力")
	assert.True(t, ok)
}

func TestRelevant(t *testing.T) {
	src := &Source{schemaPath: "/cfg/schema", templatesPath: "/cfg/templates.yaml"}
	assert.True(t, src.relevant("/cfg/templates.yaml"))
	assert.True(t, src.relevant("/cfg/schema/a.yaml"))
	assert.True(t, src.relevant("/cfg/schema/deep/b.yml"))
	assert.False(t, src.relevant("/cfg/schema/notes.txt"))
	assert.False(t, src.relevant("/cfg/other.yaml"))
	assert.False(t, src.relevant("/cfg/schema-old/a.yaml"))
}
