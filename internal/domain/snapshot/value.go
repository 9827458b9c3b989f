// Package snapshot models the immutable, normalized view of a migrated entity
// as a tree of tagged values. Snapshots are produced once per sync pass and are
// never mutated afterwards; every accessor hands out copies.
package snapshot

import (
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single node of a snapshot tree. The zero Value is Null.
type Value struct {
	kind   Kind
	b      bool
	s      string // string payload, or the decimal literal of a number
	items  []Value
	fields map[string]Value
}

var numberLiteral = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Null returns the explicit null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer as a number.
func Int(n int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(n, 10)} }

// Number wraps a decimal literal. The literal is kept verbatim so that it
// serializes exactly as it was received.
func Number(literal string) (Value, error) {
	if !numberLiteral.MatchString(literal) {
		return Value{}, fmt.Errorf("invalid number literal %q", literal)
	}
	return Value{kind: KindNumber, s: literal}, nil
}

// MustNumber is Number for literals known to be valid.
func MustNumber(literal string) Value {
	v, err := Number(literal)
	if err != nil {
		panic(err)
	}
	return v
}

// List builds a list value from copies of items.
func List(items ...Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: KindList, items: out}
}

// Map builds a map value from a copy of fields.
func Map(fields map[string]Value) Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return Value{kind: KindMap, fields: out}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the explicit null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// NumberLiteral returns the decimal literal of a number.
func (v Value) NumberLiteral() (string, bool) { return v.s, v.kind == KindNumber }

// Len returns the number of list items or map fields.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return len(v.fields)
	default:
		return 0
	}
}

// Items returns a copy of the list items.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// Index returns the list item at i.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Keys returns the map keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field returns the map field named key.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.fields[key]
	return f, ok
}

// Fields returns a copy of the map fields.
func (v Value) Fields() map[string]Value {
	if v.kind != KindMap {
		return nil
	}
	out := make(map[string]Value, len(v.fields))
	for k, f := range v.fields {
		out[k] = f
	}
	return out
}

// WithField returns a copy of the map v with key set to field.
func (v Value) WithField(key string, field Value) Value {
	fields := v.Fields()
	if fields == nil {
		fields = make(map[string]Value, 1)
	}
	fields[key] = field
	return Value{kind: KindMap, fields: fields}
}

// WithoutField returns a copy of the map v without key.
func (v Value) WithoutField(key string) Value {
	if v.kind != KindMap {
		return v
	}
	fields := v.Fields()
	delete(fields, key)
	return Value{kind: KindMap, fields: fields}
}

// Equal reports deep equality. Numbers compare by exact decimal value, so
// "1.0" equals "1" and "0.1" never equals a nearby binary float.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindNumber:
		if v.s == other.s {
			return true
		}
		return ratOf(v.s).Cmp(ratOf(other.s)) == 0
	case KindList:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.fields) != len(other.fields) {
			return false
		}
		for k, f := range v.fields {
			o, ok := other.fields[k]
			if !ok || !f.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// CanonicalKey returns a string that is identical for Equal values. It is used
// to compare collections by membership.
func (v Value) CanonicalKey() string {
	var b strings.Builder
	v.writeCanonical(&b)
	return b.String()
}

func (v Value) writeCanonical(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("n")
	case KindBool:
		if v.b {
			b.WriteString("t")
		} else {
			b.WriteString("f")
		}
	case KindNumber:
		b.WriteString("#")
		b.WriteString(ratOf(v.s).RatString())
		b.WriteString(";")
	case KindString:
		b.WriteString(strconv.Quote(v.s))
	case KindList:
		b.WriteString("[")
		for _, item := range v.items {
			item.writeCanonical(b)
			b.WriteString(",")
		}
		b.WriteString("]")
	case KindMap:
		b.WriteString("{")
		for _, k := range v.Keys() {
			b.WriteString(strconv.Quote(k))
			b.WriteString(":")
			v.fields[k].writeCanonical(b)
			b.WriteString(",")
		}
		b.WriteString("}")
	}
}

func ratOf(literal string) *big.Rat {
	r, ok := new(big.Rat).SetString(literal)
	if !ok {
		return new(big.Rat)
	}
	return r
}
