package diff

import "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"

// Change is one atomic structural difference between two snapshots. The set
// of implementations is closed: ValueChanged, KeyAdded, KeyRemoved, ItemAdded
// and ItemRemoved.
type Change interface {
	// Target is the path the change applies to. For item changes in
	// unordered collections this is the collection itself.
	Target() Path
	isChange()
}

// ValueChanged reports a leaf (or a whole sub-tree of a different kind) whose
// value differs. New may be Null, which is distinct from KeyRemoved.
type ValueChanged struct {
	Path Path
	Old  snapshot.Value
	New  snapshot.Value
}

// KeyAdded reports a map key present only in the current snapshot.
type KeyAdded struct {
	Path Path
	New  snapshot.Value
}

// KeyRemoved reports a map key present only in the previous snapshot.
type KeyRemoved struct {
	Path Path
	Old  snapshot.Value
}

// ItemAdded reports a list item present only in the current snapshot. Index is
// -1 for unordered collections. Final is the complete current collection.
type ItemAdded struct {
	Collection Path
	Index      int
	Item       snapshot.Value
	Final      snapshot.Value
}

// ItemRemoved reports a list item present only in the previous snapshot.
type ItemRemoved struct {
	Collection Path
	Index      int
	Item       snapshot.Value
	Final      snapshot.Value
}

func (c ValueChanged) Target() Path { return c.Path }
func (c KeyAdded) Target() Path     { return c.Path }
func (c KeyRemoved) Target() Path   { return c.Path }
func (c ItemAdded) Target() Path    { return itemTarget(c.Collection, c.Index) }
func (c ItemRemoved) Target() Path  { return itemTarget(c.Collection, c.Index) }

func (ValueChanged) isChange() {}
func (KeyAdded) isChange()     {}
func (KeyRemoved) isChange()   {}
func (ItemAdded) isChange()    {}
func (ItemRemoved) isChange()  {}

func itemTarget(collection Path, index int) Path {
	if index < 0 {
		return collection
	}
	return collection.Append(Index(index))
}
