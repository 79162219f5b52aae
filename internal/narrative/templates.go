package narrative

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CurrentTemplateVersion is the template file layout LoadTemplateSet
// produces.
const CurrentTemplateVersion = 2

// TemplateSet is the configuration the renderer reads. Keys are
// "<change>_<source>" or "<change>"; values contain {placeholder} tokens.
type TemplateSet struct {
	Version      int               `yaml:"version"`
	Templates    map[string]string `yaml:"templates"`
	ExcludedKeys []string          `yaml:"excluded_keys"`
	// Prefix renders {prefix} for character events; it may use {name}.
	Prefix string `yaml:"prefix"`
	// ListSeparator joins list placeholders such as {added}.
	ListSeparator string `yaml:"list_separator"`
}

// DefaultExcludedKeys are transient fields that never reach the narrative.
var DefaultExcludedKeys = []string{"suggestions", "options", "选项"}

// DefaultTemplateSet returns the built-in English templates.
func DefaultTemplateSet() TemplateSet {
	return TemplateSet{
		Version:       CurrentTemplateVersion,
		ExcludedKeys:  append([]string(nil), DefaultExcludedKeys...),
		Prefix:        "{name}'s ",
		ListSeparator: ", ",
		Templates: map[string]string{
			string(ItemAdded):                         "{prefix}{key} is now {new}.",
			string(ItemAdded) + "_user":               "{prefix}{key} was set to {new}.",
			string(ItemRemoved):                       "{prefix}{key} is gone (was {old}).",
			string(ItemRemoved) + "_user":             "{prefix}{key} was removed by hand (was {old}).",
			string(NumericDramaticIncrease):           "{prefix}{key} surged from {old} to {new} ({diff}).",
			string(NumericDramaticDecrease):           "{prefix}{key} plummeted from {old} to {new} ({diff}).",
			string(NumericSubtleIncrease):             "{prefix}{key} rose from {old} to {new} ({diff}).",
			string(NumericSubtleDecrease):             "{prefix}{key} fell from {old} to {new} ({diff}).",
			string(ArrayItemsAdded):                   "{prefix}{key} gained {added}.",
			string(ArrayItemsRemoved):                 "{prefix}{key} lost {removed}.",
			string(ArrayItemsReplaced):                "{prefix}{key} lost {removed} and gained {added}.",
			string(TextChange):                        "{prefix}{key} changed from {old} to {new}.",
			string(TextChange) + "_user":              "{prefix}{key} was changed to {new}.",
			string(CharacterEnters):                   "{name} enters the scene.",
			string(CharacterLeaves):                   "{name} leaves the scene.",
			string(NumericDramaticDecrease) + "_user": "{prefix}{key} was set to {new}.",
			string(NumericDramaticIncrease) + "_user": "{prefix}{key} was set to {new}.",
		},
	}
}

// legacyKeys renames template keys of version 1 files.
var legacyKeys = map[string]string{
	"text_changed":    string(TextChange),
	"character_enter": string(CharacterEnters),
	"character_leave": string(CharacterLeaves),
	"array_change":    string(ArrayItemsReplaced),
}

// ParseTemplateSet decodes a template file and migrates it to the current
// version. Version 1 files are a flat key: template map; version 2 files
// carry the TemplateSet layout. Missing prefix and separator fall back to
// the defaults.
func ParseTemplateSet(data []byte) (TemplateSet, error) {
	var probe struct {
		Version int `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return TemplateSet{}, fmt.Errorf("decode templates: %w", err)
	}

	var ts TemplateSet
	switch probe.Version {
	case 0, 1:
		var flat map[string]string
		if err := yaml.Unmarshal(data, &flat); err != nil {
			return TemplateSet{}, fmt.Errorf("decode v1 templates: %w", err)
		}
		ts = migrateV1(flat)
	case CurrentTemplateVersion:
		if err := yaml.Unmarshal(data, &ts); err != nil {
			return TemplateSet{}, fmt.Errorf("decode v2 templates: %w", err)
		}
	default:
		return TemplateSet{}, fmt.Errorf("unsupported template version %d", probe.Version)
	}

	def := DefaultTemplateSet()
	if ts.Templates == nil {
		ts.Templates = map[string]string{}
	}
	if ts.ExcludedKeys == nil {
		ts.ExcludedKeys = def.ExcludedKeys
	}
	if ts.Prefix == "" {
		ts.Prefix = def.Prefix
	}
	if ts.ListSeparator == "" {
		ts.ListSeparator = def.ListSeparator
	}
	ts.Version = CurrentTemplateVersion
	return ts, nil
}

func migrateV1(flat map[string]string) TemplateSet {
	ts := TemplateSet{Templates: make(map[string]string, len(flat))}
	for k, v := range flat {
		if k == "version" {
			continue
		}
		if renamed, ok := legacyKeys[k]; ok {
			k = renamed
		}
		ts.Templates[k] = v
	}
	return ts
}

// LoadTemplateSet reads and migrates a template file.
func LoadTemplateSet(path string) (TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TemplateSet{}, fmt.Errorf("read templates: %w", err)
	}
	ts, err := ParseTemplateSet(data)
	if err != nil {
		return TemplateSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}
