package patch

import (
	"strconv"
	"strings"
)

// AliasTable maps attribute names to expression aliases for one compilation.
// Each distinct name gets exactly one alias; reserved words are prefixed with
// "attr_" so that "#attr_name" reads unambiguously in logs.
type AliasTable struct {
	byName  map[string]string
	byAlias map[string]string
}

// NewAliasTable creates an empty table.
func NewAliasTable() *AliasTable {
	return &AliasTable{
		byName:  make(map[string]string),
		byAlias: make(map[string]string),
	}
}

// Alias returns the alias for name, registering it on first use.
func (t *AliasTable) Alias(name string) string {
	if alias, ok := t.byName[name]; ok {
		return alias
	}

	base := "#" + sanitize(name)
	if IsReserved(name) {
		base = "#attr_" + sanitize(name)
	}

	alias := base
	for n := 2; ; n++ {
		if _, taken := t.byAlias[alias]; !taken {
			break
		}
		alias = base + "_" + strconv.Itoa(n)
	}

	t.byName[name] = alias
	t.byAlias[alias] = name
	return alias
}

// Name returns the attribute name behind alias.
func (t *AliasTable) Name(alias string) (string, bool) {
	name, ok := t.byAlias[alias]
	return name, ok
}

// Len returns the number of registered aliases.
func (t *AliasTable) Len() int { return len(t.byAlias) }

func sanitize(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
