// Package patch compiles structural diffs into DynamoDB update instructions.
package patch

import (
	"fmt"
	"strings"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
)

// Compiler turns a change list into a PatchSet. It is stateless; every call to
// Compile uses its own alias table.
type Compiler struct {
	replaceable []string
}

// NewCompiler creates a compiler. Item changes under collections matching one
// of the replaceable patterns (dot-separated keys, "*" wildcard) rewrite the
// whole collection. Unordered collections are always rewritten whole since
// their items have no stable position.
func NewCompiler(replaceable ...string) *Compiler {
	patterns := make([]string, len(replaceable))
	copy(patterns, replaceable)
	return &Compiler{replaceable: patterns}
}

type replacement struct {
	path    diff.Path
	final   snapshot.Value
	emitted bool
}

// Compile implements the diff-to-patch rules. Instructions are emitted in
// change order; a replaced collection is assigned once, at the first change
// touching it, and nothing nested under it is emitted.
func (c *Compiler) Compile(changes []diff.Change) (*PatchSet, error) {
	ps := newPatchSet()
	if len(changes) == 0 {
		return ps, nil
	}

	replaced := c.collectReplacements(changes)

	for _, change := range changes {
		target := change.Target()

		if r := covering(replaced, target); r != nil {
			if r.emitted {
				continue
			}
			r.emitted = true
			if err := ps.assign(r.path, r.final); err != nil {
				return nil, err
			}
			continue
		}

		var err error
		switch ch := change.(type) {
		case diff.ValueChanged:
			err = ps.assign(ch.Path, ch.New)
		case diff.KeyAdded:
			err = ps.assign(ch.Path, ch.New)
		case diff.KeyRemoved:
			err = ps.remove(ch.Path)
		case diff.ItemAdded:
			err = ps.assign(target, ch.Item)
		case diff.ItemRemoved:
			err = ps.remove(target)
		default:
			err = dserrors.Internal(dserrors.CodePatchUnsupported, "unsupported change").
				WithDetails(fmt.Sprintf("%T", change)).
				WithOperation("CompilePatch").
				Build()
		}
		if err != nil {
			return nil, err
		}
	}

	return ps, nil
}

// collectReplacements finds every collection to rewrite whole. A collection
// nested under another replaced collection is dropped; the outer one wins.
func (c *Compiler) collectReplacements(changes []diff.Change) []*replacement {
	var found []*replacement
	for _, change := range changes {
		var path diff.Path
		var final snapshot.Value
		var index int
		switch ch := change.(type) {
		case diff.ItemAdded:
			path, final, index = ch.Collection, ch.Final, ch.Index
		case diff.ItemRemoved:
			path, final, index = ch.Collection, ch.Final, ch.Index
		default:
			continue
		}
		if index >= 0 && !c.isReplaceable(path) {
			continue
		}
		if covering(found, path) != nil {
			continue
		}

		kept := found[:0]
		for _, r := range found {
			if !r.path.HasPrefix(path) {
				kept = append(kept, r)
			}
		}
		found = append(kept, &replacement{path: path, final: final})
	}
	return found
}

func (c *Compiler) isReplaceable(path diff.Path) bool {
	keys := strings.Join(path.Keys(), ".")
	for _, pattern := range c.replaceable {
		if matchKeys(pattern, keys) {
			return true
		}
	}
	return false
}

func covering(replaced []*replacement, target diff.Path) *replacement {
	for _, r := range replaced {
		if target.HasPrefix(r.path) {
			return r
		}
	}
	return nil
}

func matchKeys(pattern, keys string) bool {
	ps := strings.Split(pattern, ".")
	ks := strings.Split(keys, ".")
	if len(ps) != len(ks) {
		return false
	}
	for i := range ps {
		if ps[i] != "*" && ps[i] != ks[i] {
			return false
		}
	}
	return true
}
