package narrative

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rcliao/worldstate/internal/keyword"
	"github.com/rcliao/worldstate/internal/schema"
)

// Render turns events into newline-joined prose. An event without a
// template, or whose key is excluded, is left out. Placeholders that cannot
// be resolved stay in the output as literal {name} text.
func Render(events []Event, ts TemplateSet) string {
	var lines []string
	for _, ev := range events {
		if ev.Key != "" && keyword.In(ev.Key, ts.ExcludedKeys...) {
			continue
		}
		tmpl, ok := lookupTemplate(ts, ev)
		if !ok {
			continue
		}
		line := strings.TrimSpace(Expand(tmpl, placeholders(ev, ts)))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func lookupTemplate(ts TemplateSet, ev Event) (string, bool) {
	if t, ok := ts.Templates[string(ev.Change)+"_"+string(ev.Source)]; ok {
		return t, true
	}
	t, ok := ts.Templates[string(ev.Change)]
	return t, ok
}

// placeholders builds the lookup table for one event. Every event gets
// name, key, category, source and prefix; the rest depends on the shape.
func placeholders(ev Event, ts TemplateSet) map[string]string {
	vals := map[string]string{
		"name":     ev.Character,
		"key":      ev.Key,
		"category": ev.Category,
		"source":   string(ev.Source),
		"prefix":   "",
	}
	if ev.Character != "" {
		vals["prefix"] = Expand(ts.Prefix, map[string]string{"name": ev.Character})
	}
	sep := ts.ListSeparator

	switch ev.Change {
	case ItemAdded:
		vals["new"] = strings.Join(ev.Current.Elements(), sep)
		vals["value"] = vals["new"]
		return vals
	case ItemRemoved:
		vals["old"] = strings.Join(ev.Previous.Elements(), sep)
		vals["value"] = vals["old"]
		return vals
	case CharacterEnters, CharacterLeaves:
		return vals
	}

	switch ev.Shape {
	case schema.KindNumeric:
		d := ev.Details
		vals["old"] = formatNumber(d.Old)
		vals["new"] = formatNumber(d.New)
		vals["diff"] = signed(d.Diff)
		vals["abs_diff"] = formatNumber(abs(d.Diff))
		vals["percent"] = strconv.Itoa(int(d.Ratio*100 + 0.5))
		if d.HasMax {
			vals["max"] = formatNumber(d.Max)
		}
		if d.Change != "" {
			vals["change"] = d.Change
		}
		if d.Reason != "" {
			vals["reason"] = d.Reason
		}
	case schema.KindArray, schema.KindObjectList:
		vals["added"] = strings.Join(ev.Details.Added, sep)
		vals["removed"] = strings.Join(ev.Details.Removed, sep)
		vals["old_list"] = strings.Join(ev.Previous.Elements(), sep)
		vals["new_list"] = strings.Join(ev.Current.Elements(), sep)
		vals["old"] = vals["old_list"]
		vals["new"] = vals["new_list"]
	case schema.KindScalar:
		vals["old"] = ev.Details.OldText
		vals["new"] = ev.Details.NewText
	}
	return vals
}

// Expand replaces {identifier} tokens using vals. Identifiers are runs of
// Unicode letters, digits and underscores. Unknown identifiers and braces
// that do not enclose an identifier are copied through unchanged.
func Expand(tmpl string, vals map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '{' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i+1:], '}')
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		ident := tmpl[i+1 : i+1+end]
		if v, ok := vals[ident]; ok && isIdentifier(ident) {
			b.WriteString(v)
			i += end + 2
			continue
		}
		if isIdentifier(ident) {
			b.WriteString(tmpl[i : i+end+2])
			i += end + 2
			continue
		}
		b.WriteByte('{')
		i++
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
		i += size
	}
	return true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func signed(f float64) string {
	if f > 0 {
		return "+" + formatNumber(f)
	}
	return formatNumber(f)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
