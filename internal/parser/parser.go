// Package parser extracts typed records from the bracket tags an LLM writes
// into chat text.
package parser

import (
	"strings"

	"github.com/rcliao/worldstate/internal/keyword"
	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/schema"
)

// Parser splits tag values according to a schema registry snapshot.
type Parser struct {
	reg *schema.Registry
}

// New returns a parser bound to reg. A nil registry treats every key as
// unknown.
func New(reg *schema.Registry) *Parser {
	return &Parser{reg: reg}
}

// Parse is shorthand for New(reg).Parse(text, seq).
func Parse(text string, reg *schema.Registry, seq int64) model.Batch {
	return New(reg).Parse(text, seq)
}

// Parse scans each line of text for embedded tags. Text that does not match
// the tag grammar, tags with an empty value, and meta tags with an
// unrecognised boolean are dropped without error. Every record carries seq
// as its source sequence.
func (p *Parser) Parse(text string, seq int64) model.Batch {
	var b model.Batch
	for _, line := range strings.Split(text, "\n") {
		for _, tag := range Tokenize(line) {
			p.add(&b, tag, seq)
		}
	}
	return b
}

func (p *Parser) add(b *model.Batch, tag Tag, seq int64) {
	value := strings.TrimSpace(tag.Value)
	if value == "" {
		return
	}

	if keyword.IsMetaCategory(tag.Category) {
		if d, ok := directive(tag, value); ok {
			b.Directives = append(b.Directives, d)
		}
		return
	}

	b.Records = append(b.Records, model.Record{
		Key:            tag.Key,
		Category:       tag.Category,
		Scope:          model.Scope{Actor: tag.Actor},
		Values:         p.Values(tag.Key, value),
		SourceSequence: seq,
		RawLine:        tag.Line,
	})
}

func directive(tag Tag, value string) (model.Directive, bool) {
	v, ok := keyword.ParseBool(value)
	if !ok || !tag.Scoped() {
		return model.Directive{}, false
	}
	field := keyword.Fold(tag.Key)
	if keyword.IsPresenceField(tag.Key) {
		field = model.PresenceField
	}
	return model.Directive{Actor: tag.Actor, Field: field, Value: v}, true
}

// Values splits a tag's value text using the key's declared shape.
func (p *Parser) Values(key, value string) model.Values {
	if value == model.DeletionSentinel {
		return model.Deletion()
	}
	field, ok := p.reg.Lookup(key)
	if !ok {
		return model.Strs(splitTrim(value, schema.DefaultFieldSeparator)...)
	}
	sep, sub := field.Separators()

	switch shape := field.Shape.(type) {
	case schema.ObjectList:
		return model.Values{Entries: splitEntries(value, sep, sub, shape.Fields)}
	case schema.Numeric, schema.Array, schema.Scalar:
		return model.Strs(splitTrim(value, sep)...)
	default:
		return model.Strs(splitTrim(value, sep)...)
	}
}

func splitEntries(value, sep, sub string, fields []schema.SubField) []model.Entry {
	var entries []model.Entry
	for _, inst := range strings.Split(value, sep) {
		if strings.TrimSpace(inst) == "" {
			continue
		}
		parts := splitTrim(inst, sub)
		e := model.Entry{Fields: make([]model.EntryField, len(fields))}
		for i, f := range fields {
			e.Fields[i].Name = f.Name
			if i < len(parts) {
				e.Fields[i].Value = parts[i]
			}
		}
		if len(parts) > len(fields) {
			e.Extra = parts[len(fields):]
		}
		entries = append(entries, e)
	}
	return entries
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
