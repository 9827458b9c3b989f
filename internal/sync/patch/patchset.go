package patch

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
)

// Action is the kind of update clause an instruction belongs to.
type Action string

const (
	ActionSet    Action = "SET"
	ActionRemove Action = "REMOVE"
)

// Instruction is one assign or remove against a rendered, aliased path.
type Instruction struct {
	Action   Action
	Path     string
	ValueRef string
	Value    types.AttributeValue

	target diff.Path
	names  []string
}

// PatchSet is the compiled form of a diff: ordered instructions plus the
// alias and placeholder tables they reference.
type PatchSet struct {
	instructions []Instruction
	aliases      *AliasTable
	nextValue    int
}

func newPatchSet() *PatchSet {
	return &PatchSet{aliases: NewAliasTable()}
}

// IsEmpty reports whether there is nothing to write. Callers skip the entity
// write entirely for an empty set.
func (p *PatchSet) IsEmpty() bool { return len(p.instructions) == 0 }

// Len returns the number of instructions.
func (p *PatchSet) Len() int { return len(p.instructions) }

// Instructions returns a copy of the instructions in emission order.
func (p *PatchSet) Instructions() []Instruction {
	out := make([]Instruction, len(p.instructions))
	copy(out, p.instructions)
	return out
}

// Expression renders the update expression. SET clauses come first, then
// REMOVE clauses, each in emission order and joined by ", ".
func (p *PatchSet) Expression() string {
	var sets, removes []string
	for _, in := range p.instructions {
		switch in.Action {
		case ActionSet:
			sets = append(sets, in.Path+" = "+in.ValueRef)
		case ActionRemove:
			removes = append(removes, in.Path)
		}
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	return strings.Join(clauses, " ")
}

// Names returns the alias table restricted to aliases the instructions use.
func (p *PatchSet) Names() map[string]string {
	out := make(map[string]string)
	for _, in := range p.instructions {
		for _, alias := range in.names {
			name, _ := p.aliases.Name(alias)
			out[alias] = name
		}
	}
	return out
}

// Values returns the placeholder table.
func (p *PatchSet) Values() map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue)
	for _, in := range p.instructions {
		if in.ValueRef != "" {
			out[in.ValueRef] = in.Value
		}
	}
	return out
}

// ForceAssign sets a top-level attribute regardless of the diff, replacing
// any instruction already targeting it or anything beneath it. It is used
// for audit fields.
func (p *PatchSet) ForceAssign(name string, v snapshot.Value) error {
	target := diff.Path{diff.Key(name)}
	kept := p.instructions[:0:0]
	for _, in := range p.instructions {
		if !in.target.HasPrefix(target) {
			kept = append(kept, in)
		}
	}
	p.instructions = kept
	return p.assign(target, v)
}

func (p *PatchSet) assign(path diff.Path, v snapshot.Value) error {
	rendered, names, err := p.render(path)
	if err != nil {
		return err
	}
	ref := ":val_" + strconv.Itoa(p.nextValue)
	p.nextValue++

	p.instructions = append(p.instructions, Instruction{
		Action:   ActionSet,
		Path:     rendered,
		ValueRef: ref,
		Value:    Serialize(v),
		target:   path,
		names:    names,
	})
	return nil
}

func (p *PatchSet) remove(path diff.Path) error {
	rendered, names, err := p.render(path)
	if err != nil {
		return err
	}
	p.instructions = append(p.instructions, Instruction{
		Action: ActionRemove,
		Path:   rendered,
		target: path,
		names:  names,
	})
	return nil
}

// render translates a path into aliased names joined by "." with literal
// bracketed indices.
func (p *PatchSet) render(path diff.Path) (string, []string, error) {
	if path.IsRoot() {
		return "", nil, dserrors.Internal(dserrors.CodePatchRootReplacement, "cannot patch the entity root").
			WithOperation("CompilePatch").
			Build()
	}
	if path[0].IsIndex() {
		return "", nil, dserrors.Internal(dserrors.CodePatchUnsupported, "path must start with an attribute name").
			WithDetails(path.String()).
			WithOperation("CompilePatch").
			Build()
	}

	var b strings.Builder
	names := make([]string, 0, len(path))
	for i, e := range path {
		if e.IsIndex() {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(e.Position()))
			b.WriteString("]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		alias := p.aliases.Alias(e.KeyName())
		names = append(names, alias)
		b.WriteString(alias)
	}
	return b.String(), names, nil
}
