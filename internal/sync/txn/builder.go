// Package txn assembles the atomic write set for one source record: entity
// inserts and updates plus exactly one guarded ledger write.
package txn

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/audit"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/patch"
)

// Entity audit attribute names.
const (
	AttrID               = "id"
	AttrCreatedBy        = "createdBy"
	AttrCreatedDateTime  = "createdDateTime"
	AttrModifiedBy       = "modifiedBy"
	AttrModifiedDateTime = "modifiedDateTime"
)

// entityNamespace seeds deterministic ids for entities whose snapshot has no id.
var entityNamespace = uuid.MustParse("6f1c2a9e-4d3b-5e7a-9c1f-0b8d2e4a6c10")

// Tables names the target table per entity type plus the ledger table.
type Tables struct {
	Ledger   string
	Entities map[ledger.EntityType]string
}

// EntityRules configures change detection for one entity type.
type EntityRules struct {
	Diff                   diff.Rules
	ReplaceableCollections []string
}

// Builder produces transactions. It is safe for concurrent use: Build reads
// its configuration and never mutates it.
type Builder struct {
	logger *zap.Logger
	differ diff.Differ
	audit  audit.Provider
	tables Tables
	rules  map[ledger.EntityType]EntityRules
}

// NewBuilder creates a Builder.
func NewBuilder(logger *zap.Logger, differ diff.Differ, auditProvider audit.Provider, tables Tables, rules map[ledger.EntityType]EntityRules) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make(map[ledger.EntityType]EntityRules, len(rules))
	for t, r := range rules {
		copied[t] = r
	}
	return &Builder{
		logger: logger,
		differ: differ,
		audit:  auditProvider,
		tables: tables,
		rules:  copied,
	}
}

// Build computes the writes that bring the target store from state to cs,
// stamped by the builder's audit provider. With a wall clock two builds differ
// in their audit attributes; use BuildAt for byte-identical output.
func (b *Builder) Build(state ledger.State, cs Changeset) (*Transaction, error) {
	return b.BuildAt(state, cs, b.audit.Stamp())
}

// BuildAt is Build with an explicit audit stamp. The same state, changeset and
// stamp always produce the same transaction. state is treated as immutable;
// the returned Transaction carries the next state, which callers adopt only
// after a successful submit.
func (b *Builder) BuildAt(state ledger.State, cs Changeset, stamp audit.Stamp) (*Transaction, error) {
	recordID := state.SourceRecordID()
	if recordID == "" {
		return nil, dserrors.Validation(dserrors.CodeMissingSourceRecordID, "source record id is required").
			WithOperation("BuildTransaction").
			Build()
	}
	if err := b.precheck(state, cs); err != nil {
		return nil, err
	}

	next := state
	var items []WriteItem

	for _, t := range ledger.EntityTypes {
		current := cs.Entities[t]
		if current == nil {
			continue
		}

		cached, exists := state.Entity(t)
		if !exists {
			item, rec, err := b.insertItem(recordID, t, *current, stamp)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			next = next.WithEntity(t, rec)
			continue
		}

		item, changed, err := b.updateItem(recordID, t, cached, *current, stamp)
		if err != nil {
			return nil, err
		}
		if !changed {
			b.logger.Debug("entity unchanged, skipping write",
				zap.String("source_record_id", recordID),
				zap.String("entity_type", string(t)),
				zap.String("entity_id", cached.ID))
			continue
		}
		items = append(items, item)
		next = next.WithEntity(t, ledger.EntityRecord{ID: cached.ID, Snapshot: *current})
	}

	if len(items) == 0 {
		b.logger.Debug("no entity changes, ledger not advanced",
			zap.String("source_record_id", recordID),
			zap.Int64("version", state.Version()))
		return &Transaction{SourceRecordID: recordID, ExpectedVersion: state.Version(), Next: state}, nil
	}

	next = next.WithValidationIssues(cs.ValidationIssues).
		WithModifiedAt(stamp.At).
		WithIncrementedVersion()

	ledgerWrite, err := b.ledgerItem(state, next, items)
	if err != nil {
		return nil, err
	}
	items = append(items, ledgerWrite)

	if len(items) > MaxTransactItems {
		return nil, dserrors.Validation(dserrors.CodeTooManyItems, "transaction exceeds the item limit").
			WithResource(recordID).
			Build()
	}

	b.logger.Debug("transaction built",
		zap.String("source_record_id", recordID),
		zap.Int("items", len(items)),
		zap.Int64("expected_version", state.Version()),
		zap.Int64("target_version", next.Version()))

	return &Transaction{
		SourceRecordID:  recordID,
		ExpectedVersion: state.Version(),
		Items:           items,
		Next:            next,
	}, nil
}

// precheck rejects the whole build before any item is constructed: unknown
// entity types, non-map snapshots, and deletion of migrated entities.
func (b *Builder) precheck(state ledger.State, cs Changeset) error {
	for raw, current := range cs.Entities {
		if _, err := ledger.ParseEntityType(string(raw)); err != nil {
			return dserrors.Validation(dserrors.CodeUnknownEntityType, "unknown entity type").
				WithResource(state.SourceRecordID()).
				WithDetails(string(raw)).
				Build()
		}
		if current != nil && current.Kind() != snapshot.KindMap {
			return dserrors.Validation(dserrors.CodeInvalidSnapshot, "entity snapshot must be a map").
				WithResource(state.SourceRecordID()).
				WithDetails(string(raw)).
				Build()
		}
	}
	for _, t := range ledger.EntityTypes {
		if _, cached := state.Entity(t); cached && cs.Entities[t] == nil {
			return dserrors.Validation(dserrors.CodeEntityDeletion, "deleting a migrated entity is not supported").
				WithResource(state.SourceRecordID()).
				WithDetails(string(t)).
				WithOperation("BuildTransaction").
				WithSeverity(dserrors.SeverityHigh).
				Build()
		}
	}
	return nil
}

func (b *Builder) insertItem(recordID string, t ledger.EntityType, current snapshot.Value, stamp audit.Stamp) (WriteItem, ledger.EntityRecord, error) {
	id := entityID(recordID, t, current)

	item := patch.SerializeFields(current)
	at := formatTime(stamp.At)
	item[AttrID] = &types.AttributeValueMemberS{Value: id}
	item[AttrCreatedBy] = &types.AttributeValueMemberS{Value: stamp.By}
	item[AttrCreatedDateTime] = &types.AttributeValueMemberS{Value: at}
	item[AttrModifiedBy] = &types.AttributeValueMemberS{Value: stamp.By}
	item[AttrModifiedDateTime] = &types.AttributeValueMemberS{Value: at}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(AttrID))).
		Build()
	if err != nil {
		return WriteItem{}, ledger.EntityRecord{}, buildError(recordID, err)
	}

	return WriteItem{
		Type:                     OperationTypePut,
		TableName:                b.tables.Entities[t],
		EntityType:               t,
		Item:                     item,
		ConditionExpression:      aws.ToString(expr.Condition()),
		ExpressionAttributeNames: expr.Names(),
	}, ledger.EntityRecord{ID: id, Snapshot: current}, nil
}

func (b *Builder) updateItem(recordID string, t ledger.EntityType, cached ledger.EntityRecord, current snapshot.Value, stamp audit.Stamp) (WriteItem, bool, error) {
	rules := b.rules[t]
	prev := cached.Snapshot
	changes := b.differ.Diff(&prev, current, rules.Diff.WithIgnored(AttrID))
	if len(changes) == 0 {
		return WriteItem{}, false, nil
	}

	ps, err := patch.NewCompiler(rules.ReplaceableCollections...).Compile(changes)
	if err != nil {
		return WriteItem{}, false, dserrors.Wrap(err, "BuildTransaction", "failed to compile entity patch")
	}
	if ps.IsEmpty() {
		return WriteItem{}, false, nil
	}

	if err := ps.ForceAssign(AttrModifiedDateTime, snapshot.String(formatTime(stamp.At))); err != nil {
		return WriteItem{}, false, err
	}
	if err := ps.ForceAssign(AttrModifiedBy, snapshot.String(stamp.By)); err != nil {
		return WriteItem{}, false, err
	}

	b.logger.Debug("entity changed",
		zap.String("source_record_id", recordID),
		zap.String("entity_type", string(t)),
		zap.Int("changes", len(changes)),
		zap.Int("instructions", ps.Len()))

	return WriteItem{
		Type:                      OperationTypeUpdate,
		TableName:                 b.tables.Entities[t],
		EntityType:                t,
		Key:                       map[string]types.AttributeValue{AttrID: &types.AttributeValueMemberS{Value: cached.ID}},
		UpdateExpression:          ps.Expression(),
		ExpressionAttributeNames:  ps.Names(),
		ExpressionAttributeValues: ps.Values(),
	}, true, nil
}

// ledgerItem writes the ledger: a guarded insert for a never-persisted record,
// otherwise an update guarded on the version the build started from.
func (b *Builder) ledgerItem(prev, next ledger.State, items []WriteItem) (WriteItem, error) {
	recordID := prev.SourceRecordID()

	if prev.IsNew() {
		av, err := EncodeLedger(next)
		if err != nil {
			return WriteItem{}, err
		}
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name(AttrSourceRecordID))).
			Build()
		if err != nil {
			return WriteItem{}, buildError(recordID, err)
		}
		return WriteItem{
			Type:                     OperationTypePut,
			TableName:                b.tables.Ledger,
			Item:                     av,
			ConditionExpression:      aws.ToString(expr.Condition()),
			ExpressionAttributeNames: expr.Names(),
		}, nil
	}

	update := expression.Set(expression.Name(AttrVersion), expression.Value(next.Version())).
		Set(expression.Name(AttrLastModified), expression.Value(formatTime(next.LastModifiedAt()))).
		Set(expression.Name(AttrValidationIssues), expression.Value(issuesOrEmpty(next.ValidationIssues())))
	for _, item := range items {
		rec, _ := next.Entity(item.EntityType)
		update = update.Set(
			expression.Name(AttrEntities+"."+string(item.EntityType)),
			expression.Value(toLedgerEntity(rec)),
		)
	}

	cond := expression.AttributeExists(expression.Name(AttrSourceRecordID)).
		And(expression.Equal(expression.Name(AttrVersion), expression.Value(prev.Version())))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return WriteItem{}, buildError(recordID, err)
	}

	return WriteItem{
		Type:                      OperationTypeUpdate,
		TableName:                 b.tables.Ledger,
		Key:                       map[string]types.AttributeValue{AttrSourceRecordID: &types.AttributeValueMemberS{Value: recordID}},
		UpdateExpression:          aws.ToString(expr.Update()),
		ConditionExpression:       aws.ToString(expr.Condition()),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// entityID prefers the id carried by the snapshot and otherwise derives a
// stable one, so rebuilding the same insert yields the same key.
func entityID(recordID string, t ledger.EntityType, current snapshot.Value) string {
	if raw, ok := current.Field(AttrID); ok {
		if id, ok := raw.AsString(); ok && id != "" {
			return id
		}
	}
	return uuid.NewSHA1(entityNamespace, []byte(recordID+"#"+string(t))).String()
}

func buildError(recordID string, err error) error {
	return dserrors.Internal(dserrors.CodeTransactionFailed, "failed to build expression").
		WithResource(recordID).
		WithCause(err).
		Build()
}
