package diff

import "strings"

// Rules tune the comparison for one entity type.
type Rules struct {
	// IgnorePaths are dot-separated key patterns stripped from both sides
	// before comparison. "*" matches any single key; list indices are skipped
	// when matching, so "endpoints.status" covers every endpoint item.
	IgnorePaths []string `yaml:"ignorePaths" json:"ignorePaths"`
	// Unordered lists the collection fields compared by membership.
	Unordered []CollectionRule `yaml:"unordered" json:"unordered"`
}

// CollectionRule marks a list field as a set-like collection.
type CollectionRule struct {
	Path string `yaml:"path" json:"path" validate:"required"`
	// OrderSensitive makes a pure reorder count as a change of the whole
	// field. Without it a reorder is not a change.
	OrderSensitive bool `yaml:"orderSensitive" json:"orderSensitive"`
}

// WithIgnored returns a copy of r with extra ignore patterns appended.
func (r Rules) WithIgnored(patterns ...string) Rules {
	out := Rules{
		IgnorePaths: make([]string, 0, len(r.IgnorePaths)+len(patterns)),
		Unordered:   make([]CollectionRule, len(r.Unordered)),
	}
	out.IgnorePaths = append(append(out.IgnorePaths, r.IgnorePaths...), patterns...)
	copy(out.Unordered, r.Unordered)
	return out
}

func (r Rules) ignored(p Path) bool {
	keys := p.Keys()
	for _, pattern := range r.IgnorePaths {
		if matchPattern(pattern, keys) {
			return true
		}
	}
	return false
}

func (r Rules) collection(p Path) (CollectionRule, bool) {
	keys := p.Keys()
	for _, rule := range r.Unordered {
		if matchPattern(rule.Path, keys) {
			return rule, true
		}
	}
	return CollectionRule{}, false
}

func matchPattern(pattern string, keys []string) bool {
	if pattern == "" {
		return false
	}
	segments := strings.Split(pattern, ".")
	if len(segments) != len(keys) {
		return false
	}
	for i, seg := range segments {
		if seg != "*" && seg != keys[i] {
			return false
		}
	}
	return true
}
