// Package chunker groups narrative lines into chunks for search indexing.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures chunking behavior. Sizes are in bytes.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// ChunkResult is a chunk with its 1-based line span in the original text.
type ChunkResult struct {
	Text      string
	StartLine int
	EndLine   int
}

// Chunk groups whole lines into chunks of about TargetSize bytes. Text no
// longer than MaxSize is a single chunk. A line longer than MaxSize is
// split on word boundaries, or on character boundaries when it has no
// spaces.
func Chunk(text string, opts Options) []ChunkResult {
	if opts.TargetSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.MaxSize < opts.TargetSize {
		opts.MaxSize = opts.TargetSize
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		lines := strings.Count(text, "\n")
		return []ChunkResult{{Text: text, StartLine: 1, EndLine: lines + 1}}
	}

	var results []ChunkResult
	var current []string
	start, end, size := 0, 0, 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		results = append(results, ChunkResult{Text: strings.Join(current, "\n"), StartLine: start, EndLine: end})
		current, size = nil, 0
	}

	for i, line := range strings.Split(text, "\n") {
		lineNum := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if len(line) > opts.MaxSize {
			flush()
			for _, piece := range splitLine(line, opts.MaxSize) {
				results = append(results, ChunkResult{Text: piece, StartLine: lineNum, EndLine: lineNum})
			}
			continue
		}

		if size > 0 && size+1+len(line) > opts.TargetSize {
			flush()
		}
		if len(current) == 0 {
			start = lineNum
		}
		current = append(current, line)
		end = lineNum
		if size > 0 {
			size++
		}
		size += len(line)
	}
	flush()

	return results
}

// splitLine cuts s into pieces of at most max bytes.
func splitLine(s string, max int) []string {
	var pieces []string
	for len(s) > max {
		cut := strings.LastIndexByte(s[:max], ' ')
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		if piece := strings.TrimSpace(s[:cut]); piece != "" {
			pieces = append(pieces, piece)
		}
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}
