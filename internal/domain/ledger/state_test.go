package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
)

func TestNew(t *testing.T) {
	s := New("rec-1")
	assert.Equal(t, "rec-1", s.SourceRecordID())
	assert.Equal(t, int64(0), s.Version())
	assert.True(t, s.IsNew())
	assert.Equal(t, 0, s.EntityCount())
}

func TestTransformsDoNotMutate(t *testing.T) {
	base := New("rec-1")
	rec := EntityRecord{ID: "org-1", Snapshot: snapshot.Map(map[string]snapshot.Value{"name": snapshot.String("A")})}

	next := base.WithEntity(EntityOrganisation, rec).
		WithValidationIssues([]Issue{{Code: "MISSING_ODS"}}).
		WithIncrementedVersion()

	assert.Equal(t, 0, base.EntityCount())
	assert.Empty(t, base.ValidationIssues())
	assert.Equal(t, int64(0), base.Version())

	got, ok := next.Entity(EntityOrganisation)
	require.True(t, ok)
	assert.Equal(t, "org-1", got.ID)
	assert.Equal(t, int64(1), next.Version())
	assert.Len(t, next.ValidationIssues(), 1)

	issues := next.ValidationIssues()
	issues[0].Code = "CHANGED"
	assert.Equal(t, "MISSING_ODS", next.ValidationIssues()[0].Code)
}

func TestWithModifiedAt(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	s := New("rec-1").WithModifiedAt(first).WithModifiedAt(later)
	assert.Equal(t, first, s.CreatedAt())
	assert.Equal(t, later, s.LastModifiedAt())
}

func TestRestoreCopiesInputs(t *testing.T) {
	entities := map[EntityType]EntityRecord{EntityLocation: {ID: "loc-1"}}
	s := Restore("rec-2", 4, entities, nil, time.Time{}, time.Time{})
	entities[EntityOrganisation] = EntityRecord{ID: "org-1"}

	assert.Equal(t, 1, s.EntityCount())
	assert.Equal(t, int64(4), s.Version())
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("healthcareService")
	require.NoError(t, err)
	assert.Equal(t, EntityHealthcareService, et)

	_, err = ParseEntityType("endpoint")
	assert.Error(t, err)
}
