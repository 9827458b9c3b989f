// Package ledger holds the durable per-source-record migration state: which
// target entities exist for a legacy record, the snapshots last written for
// them, and the version counter that guards concurrent writers.
package ledger

import (
	"fmt"
	"time"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
)

// EntityType names a kind of target entity produced from one source record.
type EntityType string

const (
	EntityOrganisation      EntityType = "organisation"
	EntityLocation          EntityType = "location"
	EntityHealthcareService EntityType = "healthcareService"
)

// EntityTypes lists every entity type in processing order.
var EntityTypes = []EntityType{
	EntityOrganisation,
	EntityLocation,
	EntityHealthcareService,
}

// ParseEntityType validates a raw entity type name.
func ParseEntityType(raw string) (EntityType, error) {
	for _, t := range EntityTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", raw)
}

// EntityRecord is what the ledger remembers about one written entity.
type EntityRecord struct {
	ID       string
	Snapshot snapshot.Value
}

// Issue is a data quality finding recorded against the source record.
type Issue struct {
	Code     string `json:"code" dynamodbav:"code" validate:"required"`
	Severity string `json:"severity" dynamodbav:"severity" validate:"omitempty,oneof=info warning error"`
	Field    string `json:"field,omitempty" dynamodbav:"field,omitempty"`
	Message  string `json:"message,omitempty" dynamodbav:"message,omitempty"`
}

// State is an immutable ledger entry. Version 0 means the record has never
// been persisted. Transforms return new values and leave the receiver intact.
type State struct {
	sourceRecordID   string
	version          int64
	entities         map[EntityType]EntityRecord
	validationIssues []Issue
	createdAt        time.Time
	lastModifiedAt   time.Time
}

// New returns the never-persisted state for a source record.
func New(sourceRecordID string) State {
	return State{sourceRecordID: sourceRecordID}
}

// Restore rebuilds a persisted state.
func Restore(sourceRecordID string, version int64, entities map[EntityType]EntityRecord, issues []Issue, createdAt, lastModifiedAt time.Time) State {
	s := State{
		sourceRecordID: sourceRecordID,
		version:        version,
		createdAt:      createdAt,
		lastModifiedAt: lastModifiedAt,
	}
	s.entities = copyEntities(entities)
	s.validationIssues = copyIssues(issues)
	return s
}

func (s State) SourceRecordID() string    { return s.sourceRecordID }
func (s State) Version() int64            { return s.version }
func (s State) CreatedAt() time.Time      { return s.createdAt }
func (s State) LastModifiedAt() time.Time { return s.lastModifiedAt }
func (s State) IsNew() bool               { return s.version == 0 }
func (s State) ValidationIssues() []Issue { return copyIssues(s.validationIssues) }
func (s State) EntityCount() int          { return len(s.entities) }

// Entity returns the cached record for an entity type.
func (s State) Entity(t EntityType) (EntityRecord, bool) {
	rec, ok := s.entities[t]
	return rec, ok
}

// Entities returns a copy of all cached records.
func (s State) Entities() map[EntityType]EntityRecord {
	return copyEntities(s.entities)
}

// WithEntity returns a copy with the record for t replaced.
func (s State) WithEntity(t EntityType, rec EntityRecord) State {
	next := s.clone()
	if next.entities == nil {
		next.entities = make(map[EntityType]EntityRecord, 1)
	}
	next.entities[t] = rec
	return next
}

// WithValidationIssues returns a copy carrying issues.
func (s State) WithValidationIssues(issues []Issue) State {
	next := s.clone()
	next.validationIssues = copyIssues(issues)
	return next
}

// WithIncrementedVersion returns a copy with version+1.
func (s State) WithIncrementedVersion() State {
	next := s.clone()
	next.version++
	return next
}

// WithModifiedAt stamps the modification time, and the creation time when the
// record has never been persisted.
func (s State) WithModifiedAt(at time.Time) State {
	next := s.clone()
	if next.createdAt.IsZero() {
		next.createdAt = at
	}
	next.lastModifiedAt = at
	return next
}

func (s State) clone() State {
	next := s
	next.entities = copyEntities(s.entities)
	next.validationIssues = copyIssues(s.validationIssues)
	return next
}

func copyEntities(in map[EntityType]EntityRecord) map[EntityType]EntityRecord {
	if in == nil {
		return nil
	}
	out := make(map[EntityType]EntityRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyIssues(in []Issue) []Issue {
	if in == nil {
		return nil
	}
	out := make([]Issue, len(in))
	copy(out, in)
	return out
}
