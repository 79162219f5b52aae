package narrative

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rcliao/worldstate/internal/keyword"
	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/schema"
)

// DefaultThreshold is the relative change at or above which a numeric
// change is dramatic.
const DefaultThreshold = 0.30

// ratioEpsilon absorbs float rounding so a decimal change of exactly the
// threshold, like 0.7 to 0.4 of 1, still counts as reaching it.
const ratioEpsilon = 1e-9

// DefaultStructureCategories hold list-like fields even when a value has a
// single element.
var DefaultStructureCategories = []string{"INV", "SK", "RL", "Inventory", "Skills", "Relations"}

// Options tunes a Detector.
type Options struct {
	Threshold           float64
	StructureCategories []string
}

// Detector classifies differences between two trees. It is pure: the same
// inputs always yield the same events in the same order.
type Detector struct {
	reg  *schema.Registry
	opts Options
}

// NewDetector returns a Detector reading shapes from reg.
func NewDetector(reg *schema.Registry, opts Options) *Detector {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.StructureCategories == nil {
		opts.StructureCategories = DefaultStructureCategories
	}
	return &Detector{reg: reg, opts: opts}
}

// Detect is shorthand for NewDetector(reg, Options{}).Detect(old, cur).
func Detect(old, cur model.Tree, reg *schema.Registry) []Event {
	return NewDetector(reg, Options{}).Detect(old, cur)
}

// Detect returns the changes from old to cur: shared fields first, then
// each character in id order with its presence change ahead of its field
// changes. Within a partition categories are sorted and items keep list
// order, with removals after the surviving items.
func (d *Detector) Detect(old, cur model.Tree) []Event {
	events := d.partition(old.Shared, cur.Shared, eventBase{})

	for _, id := range characterIDs(old, cur) {
		base := eventBase{id: id, name: cur.Name(id)}
		if _, ok := cur.IDMap[id]; !ok {
			base.name = old.Name(id)
		}

		was, is := old.Present(id), cur.Present(id)
		switch {
		case !was && is:
			events = append(events, base.event(CharacterEnters))
		case was && !is:
			events = append(events, base.event(CharacterLeaves))
		}

		events = append(events, d.partition(old.Characters[id], cur.Characters[id], base)...)
	}
	return events
}

type eventBase struct {
	id, name string
}

func (b eventBase) event(change ChangeType) Event {
	return Event{Source: SourceAI, CharacterID: b.id, Character: b.name, Change: change}
}

func characterIDs(old, cur model.Tree) []string {
	seen := make(map[string]bool)
	for _, t := range []model.Tree{old, cur} {
		for _, id := range t.CharacterIDs() {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Detector) partition(old, cur model.Partition, base eventBase) []Event {
	cats := make(map[string]bool)
	for c := range old {
		cats[c] = true
	}
	for c := range cur {
		cats[c] = true
	}
	sorted := make([]string, 0, len(cats))
	for c := range cats {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	var events []Event
	for _, cat := range sorted {
		for _, it := range cur[cat] {
			prev, ok := old.Get(cat, it.Key)
			if !ok {
				ev := d.itemEvent(base, cat, it, ItemAdded)
				ev.Current = it.Values
				events = append(events, ev)
				continue
			}
			if ev, ok := d.compare(base, cat, prev, it); ok {
				events = append(events, ev)
			}
		}
		for _, it := range old[cat] {
			if _, ok := cur.Get(cat, it.Key); ok {
				continue
			}
			ev := d.itemEvent(base, cat, it, ItemRemoved)
			ev.Source = SourceAI
			ev.Previous = it.Values
			events = append(events, ev)
		}
	}
	return events
}

func (d *Detector) itemEvent(base eventBase, category string, it model.Item, change ChangeType) Event {
	ev := base.event(change)
	ev.Category = category
	ev.Key = it.Key
	ev.Shape = d.shapeOf(category, it.Key, it.Values)
	if it.UserLocked {
		ev.Source = SourceUser
	}
	return ev
}

func (d *Detector) compare(base eventBase, category string, prev, cur model.Item) (Event, bool) {
	ev := d.itemEvent(base, category, cur, "")
	ev.Previous, ev.Current = prev.Values, cur.Values

	var ok bool
	switch ev.Shape {
	case schema.KindNumeric:
		ok = d.numeric(&ev, cur.Key)
	case schema.KindArray, schema.KindObjectList:
		ok = arrayChange(&ev)
	case schema.KindScalar:
		ok = textChange(&ev)
	}
	return ev, ok
}

// shapeOf prefers the registry and otherwise guesses from the value.
func (d *Detector) shapeOf(category, key string, v model.Values) schema.Kind {
	if f, ok := d.reg.Lookup(key); ok {
		return f.Shape.Kind()
	}
	if v.IsObjects() {
		return schema.KindObjectList
	}
	if len(v.Strings) > 1 {
		if _, ok := leadingNumber(v.Strings[0]); ok {
			return schema.KindNumeric
		}
	}
	if keyword.In(category, d.opts.StructureCategories...) || len(v.Strings) > 1 {
		return schema.KindArray
	}
	return schema.KindScalar
}

// numericLayout returns the positions of the current, max, change and
// reason parts. Unregistered numeric values use current|max.
func (d *Detector) numericLayout(key string) (cur, max, change, reason int) {
	f, ok := d.reg.Lookup(key)
	num, isNum := f.Shape.(schema.Numeric)
	if !ok || !isNum || len(num.Parts) == 0 {
		return 0, 1, -1, -1
	}
	cur = num.Index("current", "value")
	if cur < 0 {
		cur = 0
	}
	return cur, num.Index("max"), num.Index("change"), num.Index("reason")
}

func (d *Detector) numeric(ev *Event, key string) bool {
	curIdx, maxIdx, changeIdx, reasonIdx := d.numericLayout(key)

	oldV, ok1 := numberAt(ev.Previous, curIdx)
	newV, ok2 := numberAt(ev.Current, curIdx)
	if !ok1 || !ok2 || oldV == newV {
		return false
	}
	diff := newV - oldV

	maxV, hasMax := numberAt(ev.Current, maxIdx)
	if !hasMax {
		maxV, hasMax = numberAt(ev.Previous, maxIdx)
	}
	scale := maxV
	if !hasMax {
		scale = fallbackScale(oldV, newV)
	}
	ref := math.Abs(oldV)
	if ref == 0 {
		ref = 1
	}
	base := math.Max(scale, ref)
	ratio := math.Abs(diff) / base

	ev.Details = Details{Old: oldV, New: newV, Diff: diff, Max: maxV, HasMax: hasMax, Ratio: ratio}
	ev.Details.Change, _ = ev.Current.At(changeIdx)
	ev.Details.Reason, _ = ev.Current.At(reasonIdx)

	dramatic := ratio >= d.opts.Threshold-ratioEpsilon
	switch {
	case dramatic && diff > 0:
		ev.Change = NumericDramaticIncrease
	case dramatic:
		ev.Change = NumericDramaticDecrease
	case diff > 0:
		ev.Change = NumericSubtleIncrease
	default:
		ev.Change = NumericSubtleDecrease
	}
	return true
}

// fallbackScale is the magnitude used when a value has no max: any change
// away from zero counts against 1, everything else against 100.
func fallbackScale(oldV, newV float64) float64 {
	if oldV == 0 && newV != 0 {
		return 1
	}
	return 100
}

var numberPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// leadingNumber parses the number at the start of s, so "80%" reads as 80.
func leadingNumber(s string) (float64, bool) {
	m := numberPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func numberAt(v model.Values, i int) (float64, bool) {
	s, ok := v.At(i)
	if !ok {
		return 0, false
	}
	return leadingNumber(s)
}

type element struct {
	key, text string
}

func elements(v model.Values) []element {
	if v.IsObjects() {
		out := make([]element, len(v.Entries))
		for i, e := range v.Entries {
			var b strings.Builder
			for _, f := range e.Fields {
				b.WriteString(f.Name)
				b.WriteByte('=')
				b.WriteString(f.Value)
				b.WriteByte(0x1f)
			}
			for _, x := range e.Extra {
				b.WriteString(x)
				b.WriteByte(0x1e)
			}
			out[i] = element{key: b.String(), text: e.String()}
		}
		return out
	}
	out := make([]element, len(v.Strings))
	for i, s := range v.Strings {
		out[i] = element{key: s, text: s}
	}
	return out
}

// arrayChange compares element multisets, ignoring order.
func arrayChange(ev *Event) bool {
	oldEls, newEls := elements(ev.Previous), elements(ev.Current)

	remaining := make(map[string]int, len(oldEls))
	for _, e := range oldEls {
		remaining[e.key]++
	}
	var added []string
	for _, e := range newEls {
		if remaining[e.key] > 0 {
			remaining[e.key]--
			continue
		}
		added = append(added, e.text)
	}
	var removed []string
	for _, e := range oldEls {
		if remaining[e.key] > 0 {
			remaining[e.key]--
			removed = append(removed, e.text)
		}
	}

	switch {
	case len(added) > 0 && len(removed) > 0:
		ev.Change = ArrayItemsReplaced
	case len(added) > 0:
		ev.Change = ArrayItemsAdded
	case len(removed) > 0:
		ev.Change = ArrayItemsRemoved
	default:
		return false
	}
	ev.Details.Added, ev.Details.Removed = added, removed
	return true
}

func textChange(ev *Event) bool {
	oldT, _ := ev.Previous.First()
	newT, _ := ev.Current.First()
	if oldT == newT {
		return false
	}
	ev.Change = TextChange
	ev.Details.OldText, ev.Details.NewText = oldT, newT
	return true
}
