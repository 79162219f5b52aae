package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FilePattern selects schema files when a directory is loaded.
const FilePattern = "**/*.{yaml,yml}"

// ErrNoFields is returned when a directory holds no schema files.
var ErrNoFields = errors.New("no schema files found")

type fileDoc struct {
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Key          string     `yaml:"key"`
	Type         string     `yaml:"type"`
	Separator    string     `yaml:"separator"`
	SubSeparator string     `yaml:"sub_separator"`
	Parts        []SubField `yaml:"parts"`
}

// Parse decodes one YAML schema document. Unknown shape types are kept as
// scalars rather than rejected.
func Parse(data []byte) ([]Field, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	fields := make([]Field, 0, len(doc.Fields))
	for _, d := range doc.Fields {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			continue
		}
		fields = append(fields, Field{
			Key:               key,
			Shape:             shapeFor(d.Type, d.Parts),
			FieldSeparator:    d.Separator,
			SubFieldSeparator: d.SubSeparator,
		})
	}
	return fields, nil
}

func shapeFor(typ string, parts []SubField) Shape {
	switch Kind(strings.ToLower(strings.TrimSpace(typ))) {
	case KindNumeric, "number":
		return Numeric{Parts: parts}
	case KindArray, "list":
		return Array{}
	case KindObjectList, "objectlist", "object_list":
		return ObjectList{Fields: parts}
	default:
		return Scalar{}
	}
}

// Load reads a schema file, or every schema file under a directory.
func Load(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat schema: %w", err)
	}
	if info.IsDir() {
		return LoadFS(os.DirFS(path), FilePattern)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	fields, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewRegistry(fields...), nil
}

// LoadFS merges every file matching pattern in lexical order, so a later
// file overrides an earlier one for the same key.
func LoadFS(fsys fs.FS, pattern string) (*Registry, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob schema: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoFields
	}
	sort.Strings(matches)

	var all []Field
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", m, err)
		}
		fields, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		all = append(all, fields...)
	}
	return NewRegistry(all...), nil
}
