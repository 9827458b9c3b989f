// Package diff computes the minimal structural difference between two entity
// snapshots. Output order is deterministic: map keys are visited in sorted
// order and list items by position, so identical inputs always yield the same
// change list.
package diff

import (
	"sort"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
)

// Differ compares a previous snapshot (nil when the entity was never synced)
// against the current one.
type Differ interface {
	Diff(previous *snapshot.Value, current snapshot.Value, rules Rules) []Change
}

// StructuralDiffer is the default Differ. It holds no state.
type StructuralDiffer struct{}

// NewStructuralDiffer creates a StructuralDiffer.
func NewStructuralDiffer() *StructuralDiffer {
	return &StructuralDiffer{}
}

// Diff implements Differ. Ignored fields are left out of the comparison only;
// every current value carried by a change is taken from the unstripped
// snapshot, so whole sub-tree writes keep their ignored fields.
func (d *StructuralDiffer) Diff(previous *snapshot.Value, current snapshot.Value, rules Rules) []Change {
	curr := strip(nil, current, rules)

	if previous == nil {
		return initialChanges(curr, current)
	}

	w := &walker{rules: rules}
	w.walk(nil, strip(nil, *previous, rules), curr, current)
	return w.changes
}

// initialChanges reports every compared top-level field of a first-seen
// snapshot as changed from null.
func initialChanges(curr, raw snapshot.Value) []Change {
	if curr.Kind() != snapshot.KindMap {
		return []Change{ValueChanged{Path: nil, Old: snapshot.Null(), New: raw}}
	}
	var changes []Change
	for _, k := range curr.Keys() {
		v, _ := raw.Field(k)
		changes = append(changes, ValueChanged{Path: Path{Key(k)}, Old: snapshot.Null(), New: v})
	}
	return changes
}

type walker struct {
	rules   Rules
	changes []Change
}

func (w *walker) emit(c Change) {
	w.changes = append(w.changes, c)
}

// walk compares prev with curr, both stripped. raw is curr before stripping;
// it always has the same shape except for the ignored map keys.
func (w *walker) walk(path Path, prev, curr, raw snapshot.Value) {
	if prev.Kind() != curr.Kind() {
		w.emit(ValueChanged{Path: path, Old: prev, New: raw})
		return
	}

	switch curr.Kind() {
	case snapshot.KindMap:
		w.walkMap(path, prev, curr, raw)
	case snapshot.KindList:
		if rule, ok := w.rules.collection(path); ok {
			w.walkUnordered(path, rule, prev, curr, raw)
			return
		}
		w.walkOrdered(path, prev, curr, raw)
	default:
		if !prev.Equal(curr) {
			w.emit(ValueChanged{Path: path, Old: prev, New: raw})
		}
	}
}

func (w *walker) walkMap(path Path, prev, curr, raw snapshot.Value) {
	for _, k := range unionKeys(prev, curr) {
		child := path.Append(Key(k))
		p, inPrev := prev.Field(k)
		c, inCurr := curr.Field(k)
		r, _ := raw.Field(k)

		switch {
		case inPrev && !inCurr:
			w.emit(KeyRemoved{Path: child, Old: p})
		case !inPrev && inCurr:
			w.emit(KeyAdded{Path: child, New: r})
		default:
			w.walk(child, p, c, r)
		}
	}
}

func (w *walker) walkOrdered(path Path, prev, curr, raw snapshot.Value) {
	prevItems := prev.Items()
	currItems := curr.Items()
	rawItems := raw.Items()

	common := len(prevItems)
	if len(currItems) < common {
		common = len(currItems)
	}
	for i := 0; i < common; i++ {
		w.walk(path.Append(Index(i)), prevItems[i], currItems[i], rawItems[i])
	}
	for i := common; i < len(prevItems); i++ {
		w.emit(ItemRemoved{Collection: path, Index: i, Item: prevItems[i], Final: raw})
	}
	for i := common; i < len(currItems); i++ {
		w.emit(ItemAdded{Collection: path, Index: i, Item: rawItems[i], Final: raw})
	}
}

// walkUnordered compares two lists as multisets. Removed items are reported
// before added ones, each in their own list order.
func (w *walker) walkUnordered(path Path, rule CollectionRule, prev, curr, raw snapshot.Value) {
	remaining := make(map[string]int, prev.Len())
	for _, item := range prev.Items() {
		remaining[item.CanonicalKey()]++
	}

	rawItems := raw.Items()
	var added []snapshot.Value
	for i, item := range curr.Items() {
		key := item.CanonicalKey()
		if remaining[key] > 0 {
			remaining[key]--
			continue
		}
		added = append(added, rawItems[i])
	}

	var removed []snapshot.Value
	for _, item := range prev.Items() {
		key := item.CanonicalKey()
		if remaining[key] > 0 {
			remaining[key]--
			removed = append(removed, item)
		}
	}

	if len(added) == 0 && len(removed) == 0 {
		if rule.OrderSensitive && !prev.Equal(curr) {
			w.emit(ValueChanged{Path: path, Old: prev, New: raw})
		}
		return
	}

	for _, item := range removed {
		w.emit(ItemRemoved{Collection: path, Index: -1, Item: item, Final: raw})
	}
	for _, item := range added {
		w.emit(ItemAdded{Collection: path, Index: -1, Item: item, Final: raw})
	}
}

func unionKeys(a, b snapshot.Value) []string {
	keys := a.Keys()
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range b.Keys() {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// strip removes ignored fields from v, recursively.
func strip(path Path, v snapshot.Value, rules Rules) snapshot.Value {
	if len(rules.IgnorePaths) == 0 {
		return v
	}
	switch v.Kind() {
	case snapshot.KindMap:
		fields := make(map[string]snapshot.Value, v.Len())
		for _, k := range v.Keys() {
			child := path.Append(Key(k))
			if rules.ignored(child) {
				continue
			}
			f, _ := v.Field(k)
			fields[k] = strip(child, f, rules)
		}
		return snapshot.Map(fields)
	case snapshot.KindList:
		items := v.Items()
		for i, item := range items {
			items[i] = strip(path.Append(Index(i)), item, rules)
		}
		return snapshot.List(items...)
	default:
		return v
	}
}
