package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
)

func mustParse(t *testing.T, doc string) snapshot.Value {
	t.Helper()
	v, err := snapshot.ParseJSON([]byte(doc))
	require.NoError(t, err)
	return v
}

func diffDocs(t *testing.T, prev, curr string, rules Rules) []Change {
	t.Helper()
	p := mustParse(t, prev)
	return NewStructuralDiffer().Diff(&p, mustParse(t, curr), rules)
}

func TestDiff_IdenticalSnapshots(t *testing.T) {
	doc := `{"name":"A","active":true,"telecom":[{"type":"phone","value":"0113"}],"address":{"town":"Leeds"}}`
	assert.Empty(t, diffDocs(t, doc, doc, Rules{}))
}

func TestDiff_ScalarChange(t *testing.T) {
	changes := diffDocs(t, `{"name":"A","active":true}`, `{"name":"B","active":true}`, Rules{})

	require.Len(t, changes, 1)
	vc, ok := changes[0].(ValueChanged)
	require.True(t, ok)
	assert.Equal(t, "name", vc.Path.String())
	assert.True(t, vc.Old.Equal(snapshot.String("A")))
	assert.True(t, vc.New.Equal(snapshot.String("B")))
}

func TestDiff_NullIsNotRemoval(t *testing.T) {
	toNull := diffDocs(t, `{"phone":"0113"}`, `{"phone":null}`, Rules{})
	require.Len(t, toNull, 1)
	vc, ok := toNull[0].(ValueChanged)
	require.True(t, ok)
	assert.True(t, vc.New.IsNull())

	removed := diffDocs(t, `{"phone":"0113"}`, `{}`, Rules{})
	require.Len(t, removed, 1)
	kr, ok := removed[0].(KeyRemoved)
	require.True(t, ok)
	assert.Equal(t, "phone", kr.Path.String())
}

func TestDiff_KeyAddedAndNestedChange(t *testing.T) {
	changes := diffDocs(t,
		`{"address":{"town":"Leeds"}}`,
		`{"address":{"town":"York","postcode":"YO1"},"email":"a@b"}`,
		Rules{})

	require.Len(t, changes, 3)
	assert.IsType(t, KeyAdded{}, changes[0])
	assert.Equal(t, "address.postcode", changes[0].Target().String())
	assert.IsType(t, ValueChanged{}, changes[1])
	assert.Equal(t, "address.town", changes[1].Target().String())
	assert.IsType(t, KeyAdded{}, changes[2])
	assert.Equal(t, "email", changes[2].Target().String())
}

func TestDiff_KindMismatchIsSingleChange(t *testing.T) {
	changes := diffDocs(t, `{"opening":{"mon":"9-5"}}`, `{"opening":["9-5"]}`, Rules{})
	require.Len(t, changes, 1)
	assert.IsType(t, ValueChanged{}, changes[0])
	assert.Equal(t, "opening", changes[0].Target().String())
}

func TestDiff_OrderedListTail(t *testing.T) {
	added := diffDocs(t, `{"lines":["a"]}`, `{"lines":["a","b"]}`, Rules{})
	require.Len(t, added, 1)
	ia, ok := added[0].(ItemAdded)
	require.True(t, ok)
	assert.Equal(t, 1, ia.Index)
	assert.Equal(t, "lines[1]", ia.Target().String())

	removed := diffDocs(t, `{"lines":["a","b","c"]}`, `{"lines":["x"]}`, Rules{})
	require.Len(t, removed, 3)
	assert.IsType(t, ValueChanged{}, removed[0])
	assert.Equal(t, "lines[0]", removed[0].Target().String())
	assert.Equal(t, "lines[1]", removed[1].Target().String())
	assert.Equal(t, "lines[2]", removed[2].Target().String())
}

func TestDiff_UnorderedCollection(t *testing.T) {
	rules := Rules{Unordered: []CollectionRule{{Path: "dispositions"}}}

	t.Run("membership change", func(t *testing.T) {
		changes := diffDocs(t, `{"dispositions":["DX1","DX2"]}`, `{"dispositions":["DX3","DX1"]}`, rules)
		require.Len(t, changes, 2)

		removed, ok := changes[0].(ItemRemoved)
		require.True(t, ok)
		assert.Equal(t, -1, removed.Index)
		assert.True(t, removed.Item.Equal(snapshot.String("DX2")))

		added, ok := changes[1].(ItemAdded)
		require.True(t, ok)
		assert.True(t, added.Item.Equal(snapshot.String("DX3")))
		assert.True(t, added.Final.Equal(snapshot.List(snapshot.String("DX3"), snapshot.String("DX1"))))
		assert.Equal(t, "dispositions", added.Target().String())
	})

	t.Run("reorder is not a change", func(t *testing.T) {
		assert.Empty(t, diffDocs(t, `{"dispositions":["DX1","DX2"]}`, `{"dispositions":["DX2","DX1"]}`, rules))
	})

	t.Run("duplicates count", func(t *testing.T) {
		changes := diffDocs(t, `{"dispositions":["DX1","DX1"]}`, `{"dispositions":["DX1"]}`, rules)
		require.Len(t, changes, 1)
		assert.IsType(t, ItemRemoved{}, changes[0])
	})

	t.Run("order sensitive reorder replaces field", func(t *testing.T) {
		sensitive := Rules{Unordered: []CollectionRule{{Path: "dispositions", OrderSensitive: true}}}
		changes := diffDocs(t, `{"dispositions":["DX1","DX2"]}`, `{"dispositions":["DX2","DX1"]}`, sensitive)
		require.Len(t, changes, 1)
		assert.IsType(t, ValueChanged{}, changes[0])
	})
}

func TestDiff_IgnorePaths(t *testing.T) {
	rules := Rules{IgnorePaths: []string{"lastUpdated", "endpoints.status", "meta.*"}}

	changes := diffDocs(t,
		`{"name":"A","lastUpdated":"2024-01-01","meta":{"etag":"1"},"endpoints":[{"address":"x","status":"on"}]}`,
		`{"name":"A","lastUpdated":"2024-02-02","meta":{"etag":"2","v":"3"},"endpoints":[{"address":"x","status":"off"}]}`,
		rules)
	assert.Empty(t, changes)

	removedIgnored := diffDocs(t, `{"name":"A","lastUpdated":"x"}`, `{"name":"A"}`, rules)
	assert.Empty(t, removedIgnored)
}

func TestDiff_IgnoredFieldsKeptInEmittedValues(t *testing.T) {
	rules := Rules{
		IgnorePaths: []string{"telecom.lastUpdated", "address.lastUpdated", "opening.lastUpdated", "roles.lastUpdated"},
		Unordered:   []CollectionRule{{Path: "roles"}},
	}

	changes := diffDocs(t,
		`{"telecom":[{"v":"a","lastUpdated":"t1"}],"opening":"9-5","roles":[{"r":"x","lastUpdated":"t1"}]}`,
		`{"telecom":[{"v":"a","lastUpdated":"t2"},{"v":"b","lastUpdated":"t2"}],"address":{"line":"x","lastUpdated":"t2"},"opening":{"mon":"9-5","lastUpdated":"t2"},"roles":[{"r":"y","lastUpdated":"t2"}]}`,
		rules)
	require.Len(t, changes, 5)

	added, ok := changes[0].(KeyAdded)
	require.True(t, ok)
	assert.True(t, added.New.Equal(mustParse(t, `{"line":"x","lastUpdated":"t2"}`)))

	replaced, ok := changes[1].(ValueChanged)
	require.True(t, ok)
	assert.Equal(t, "opening", replaced.Path.String())
	assert.True(t, replaced.New.Equal(mustParse(t, `{"mon":"9-5","lastUpdated":"t2"}`)))

	roleRemoved, ok := changes[2].(ItemRemoved)
	require.True(t, ok)
	assert.True(t, roleRemoved.Final.Equal(mustParse(t, `[{"r":"y","lastUpdated":"t2"}]`)))
	roleAdded, ok := changes[3].(ItemAdded)
	require.True(t, ok)
	assert.True(t, roleAdded.Item.Equal(mustParse(t, `{"r":"y","lastUpdated":"t2"}`)))

	item, ok := changes[4].(ItemAdded)
	require.True(t, ok)
	assert.Equal(t, 1, item.Index)
	assert.True(t, item.Item.Equal(mustParse(t, `{"v":"b","lastUpdated":"t2"}`)))
	assert.True(t, item.Final.Equal(mustParse(t,
		`[{"v":"a","lastUpdated":"t2"},{"v":"b","lastUpdated":"t2"}]`)))
}

func TestDiff_FirstSync(t *testing.T) {
	curr := mustParse(t, `{"name":"A","active":true,"modified":"x"}`)
	changes := NewStructuralDiffer().Diff(nil, curr, Rules{IgnorePaths: []string{"modified"}})

	require.Len(t, changes, 2)
	for _, c := range changes {
		vc, ok := c.(ValueChanged)
		require.True(t, ok)
		assert.True(t, vc.Old.IsNull())
	}
	assert.Equal(t, "active", changes[0].Target().String())
	assert.Equal(t, "name", changes[1].Target().String())
}

func TestDiff_Deterministic(t *testing.T) {
	prev := `{"z":1,"a":{"y":[1,2],"b":"x"},"m":null}`
	curr := `{"z":2,"a":{"y":[1,3,4],"c":"x"},"n":true}`

	first := diffDocs(t, prev, curr, Rules{})
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, diffDocs(t, prev, curr, Rules{}))
	}
}

func TestPath(t *testing.T) {
	p := ParsePath("telecom[2].value")
	require.Len(t, p, 3)
	assert.Equal(t, "telecom", p[0].KeyName())
	assert.True(t, p[1].IsIndex())
	assert.Equal(t, 2, p[1].Position())
	assert.Equal(t, "telecom[2].value", p.String())
	assert.Equal(t, []string{"telecom", "value"}, p.Keys())

	assert.True(t, p.HasPrefix(ParsePath("telecom")))
	assert.False(t, ParsePath("telecom").HasPrefix(p))
	assert.True(t, p.Equal(ParsePath("telecom[2].value")))

	base := Path{Key("a")}
	extended := base.Append(Key("b"))
	assert.Len(t, base, 1)
	assert.Equal(t, "a.b", extended.String())
}
