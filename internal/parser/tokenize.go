package parser

import "strings"

// CommentPrefix marks a line the parser skips.
const CommentPrefix = "#"

// Tag is one tokenized assignment, before schema-directed splitting.
type Tag struct {
	// Actor is the raw character token; empty for the legacy unscoped form.
	Actor    string
	Category string
	Key      string
	// Value is the untrimmed text after "::".
	Value string
	// Line is the bracketed tag as written.
	Line string
}

// Scoped reports whether the tag used the character-scoped grammar.
func (t Tag) Scoped() bool { return t.Actor != "" }

// Tokenize returns every tag embedded in a line, in order. A tag is the
// innermost bracket span matching one of the two grammars:
//
//	[<actor>^<category>|<key>::<value>]
//	[<category>|<key>::<value>]
//
// A value ends at the first closing bracket. Comment lines yield nothing,
// and spans that match neither form are skipped.
func Tokenize(line string) []Tag {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, CommentPrefix) {
		return nil
	}

	var tags []Tag
	for {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return tags
		}
		if start := strings.LastIndexByte(s[:end], '['); start >= 0 {
			if tag, ok := tokenizeSpan(s[start : end+1]); ok {
				tags = append(tags, tag)
			}
		}
		s = s[end+1:]
	}
}

// tokenizeSpan matches a single "[...]" span.
func tokenizeSpan(span string) (Tag, bool) {
	body := span[1 : len(span)-1]

	head, value, ok := strings.Cut(body, "::")
	if !ok {
		return Tag{}, false
	}
	left, key, ok := strings.Cut(head, "|")
	if !ok {
		return Tag{}, false
	}

	tag := Tag{Key: strings.TrimSpace(key), Value: value, Line: span}
	if actor, category, scoped := strings.Cut(left, "^"); scoped {
		tag.Actor = strings.TrimSpace(actor)
		tag.Category = strings.TrimSpace(category)
		if tag.Actor == "" {
			return Tag{}, false
		}
	} else {
		tag.Category = strings.TrimSpace(left)
	}

	if tag.Category == "" || tag.Key == "" {
		return Tag{}, false
	}
	return tag, true
}
