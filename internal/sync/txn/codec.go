package txn

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/patch"
)

// Ledger item attribute names.
const (
	AttrSourceRecordID   = "sourceRecordId"
	AttrVersion          = "version"
	AttrEntities         = "entities"
	AttrValidationIssues = "validationIssues"
	AttrCreated          = "createdDateTime"
	AttrLastModified     = "lastModifiedDateTime"
)

type ledgerItem struct {
	SourceRecordID       string                  `dynamodbav:"sourceRecordId"`
	Version              int64                   `dynamodbav:"version"`
	Entities             map[string]ledgerEntity `dynamodbav:"entities"`
	ValidationIssues     []ledger.Issue          `dynamodbav:"validationIssues"`
	CreatedDateTime      string                  `dynamodbav:"createdDateTime,omitempty"`
	LastModifiedDateTime string                  `dynamodbav:"lastModifiedDateTime,omitempty"`
}

type ledgerEntity struct {
	ID       string         `dynamodbav:"id"`
	Snapshot storedSnapshot `dynamodbav:"snapshot"`
}

// storedSnapshot stores a snapshot value with the same attribute mapping the
// patch compiler uses, so cached and written data never drift.
type storedSnapshot struct {
	value snapshot.Value
}

func (s storedSnapshot) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return patch.Serialize(s.value), nil
}

func (s *storedSnapshot) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	v, err := patch.Deserialize(av)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

func toLedgerEntity(rec ledger.EntityRecord) ledgerEntity {
	return ledgerEntity{ID: rec.ID, Snapshot: storedSnapshot{value: rec.Snapshot}}
}

// EncodeLedger renders a state as a ledger item.
func EncodeLedger(state ledger.State) (map[string]types.AttributeValue, error) {
	item := ledgerItem{
		SourceRecordID:       state.SourceRecordID(),
		Version:              state.Version(),
		Entities:             make(map[string]ledgerEntity),
		ValidationIssues:     issuesOrEmpty(state.ValidationIssues()),
		CreatedDateTime:      formatTime(state.CreatedAt()),
		LastModifiedDateTime: formatTime(state.LastModifiedAt()),
	}
	for t, rec := range state.Entities() {
		item.Entities[string(t)] = toLedgerEntity(rec)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, dserrors.Internal(dserrors.CodeSerialization, "failed to marshal ledger item").
			WithResource(state.SourceRecordID()).
			WithCause(err).
			Build()
	}
	return av, nil
}

// DecodeLedger rebuilds a state from a stored ledger item.
func DecodeLedger(av map[string]types.AttributeValue) (ledger.State, error) {
	var item ledgerItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return ledger.State{}, dserrors.Internal(dserrors.CodeLedgerCorrupt, "failed to unmarshal ledger item").
			WithCause(err).
			Build()
	}
	if item.SourceRecordID == "" {
		return ledger.State{}, dserrors.Internal(dserrors.CodeLedgerCorrupt, "ledger item has no source record id").Build()
	}

	entities := make(map[ledger.EntityType]ledger.EntityRecord, len(item.Entities))
	for raw, e := range item.Entities {
		t, err := ledger.ParseEntityType(raw)
		if err != nil {
			return ledger.State{}, dserrors.Internal(dserrors.CodeLedgerCorrupt, "ledger item has an unknown entity type").
				WithResource(item.SourceRecordID).
				WithDetails(raw).
				Build()
		}
		entities[t] = ledger.EntityRecord{ID: e.ID, Snapshot: e.Snapshot.value}
	}

	created, err := parseTime(item.CreatedDateTime)
	if err != nil {
		return ledger.State{}, corruptTime(item.SourceRecordID, err)
	}
	modified, err := parseTime(item.LastModifiedDateTime)
	if err != nil {
		return ledger.State{}, corruptTime(item.SourceRecordID, err)
	}

	return ledger.Restore(item.SourceRecordID, item.Version, entities, item.ValidationIssues, created, modified), nil
}

func corruptTime(id string, err error) error {
	return dserrors.Internal(dserrors.CodeLedgerCorrupt, "ledger item has an invalid timestamp").
		WithResource(id).
		WithCause(err).
		Build()
}

func issuesOrEmpty(issues []ledger.Issue) []ledger.Issue {
	if issues == nil {
		return []ledger.Issue{}
	}
	return issues
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
