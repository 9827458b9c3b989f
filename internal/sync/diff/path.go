package diff

import (
	"strconv"
	"strings"
)

// Element is one step of a Path: either a map key or a list index.
type Element struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a map-key element.
func Key(k string) Element { return Element{key: k} }

// Index returns a list-index element.
func Index(i int) Element { return Element{index: i, isIndex: true} }

// IsIndex reports whether e addresses a list position.
func (e Element) IsIndex() bool { return e.isIndex }

// KeyName returns the map key of e.
func (e Element) KeyName() string { return e.key }

// Position returns the list index of e.
func (e Element) Position() int { return e.index }

// Path addresses a node inside a snapshot, starting at the entity root.
type Path []Element

// ParsePath parses "a.b[2].c" into a Path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	var p Path
	for _, part := range strings.Split(s, ".") {
		name := part
		var indices []int
		for {
			open := strings.LastIndexByte(name, '[')
			if open < 0 || !strings.HasSuffix(name, "]") {
				break
			}
			n, err := strconv.Atoi(name[open+1 : len(name)-1])
			if err != nil {
				break
			}
			indices = append([]int{n}, indices...)
			name = name[:open]
		}
		if name != "" {
			p = append(p, Key(name))
		}
		for _, n := range indices {
			p = append(p, Index(n))
		}
	}
	return p
}

// Append returns a new path with e added; the receiver is not modified.
func (p Path) Append(e Element) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, e)
}

// IsRoot reports whether p addresses the entity itself.
func (p Path) IsRoot() bool { return len(p) == 0 }

// HasPrefix reports whether prefix equals p or is an ancestor of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports element-wise equality.
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// Keys returns the key names of p with list indices dropped. Rule patterns are
// matched against this form so they apply to every item of a list.
func (p Path) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, e := range p {
		if !e.isIndex {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (p Path) String() string {
	var b strings.Builder
	for i, e := range p {
		if e.isIndex {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(e.index))
			b.WriteString("]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(e.key)
	}
	return b.String()
}
