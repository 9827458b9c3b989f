package txn

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

// MaxTransactItems is the DynamoDB limit on items per TransactWriteItems call.
const MaxTransactItems = 100

// OperationType defines the type of transactional operation
type OperationType string

const (
	OperationTypePut    OperationType = "PUT"
	OperationTypeUpdate OperationType = "UPDATE"
)

// WriteItem is one storage-agnostic write of a transaction.
type WriteItem struct {
	Type       OperationType
	TableName  string
	EntityType ledger.EntityType // empty for the ledger item

	Item map[string]types.AttributeValue // For Put operations
	Key  map[string]types.AttributeValue // For Update operations

	UpdateExpression          string
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
}

// IsLedger reports whether the item writes the ledger entry.
func (w WriteItem) IsLedger() bool { return w.EntityType == "" }

// TransactWriteItem converts w into the SDK form.
func (w WriteItem) TransactWriteItem() (types.TransactWriteItem, error) {
	switch w.Type {
	case OperationTypePut:
		if len(w.Item) == 0 {
			return types.TransactWriteItem{}, dserrors.Internal(dserrors.CodeTransactionFailed, "item is required for PUT operation").Build()
		}
		put := &types.Put{
			TableName: aws.String(w.TableName),
			Item:      w.Item,
		}
		if w.ConditionExpression != "" {
			put.ConditionExpression = aws.String(w.ConditionExpression)
		}
		if len(w.ExpressionAttributeNames) > 0 {
			put.ExpressionAttributeNames = w.ExpressionAttributeNames
		}
		if len(w.ExpressionAttributeValues) > 0 {
			put.ExpressionAttributeValues = w.ExpressionAttributeValues
		}
		return types.TransactWriteItem{Put: put}, nil

	case OperationTypeUpdate:
		if len(w.Key) == 0 {
			return types.TransactWriteItem{}, dserrors.Internal(dserrors.CodeTransactionFailed, "key is required for UPDATE operation").Build()
		}
		if w.UpdateExpression == "" {
			return types.TransactWriteItem{}, dserrors.Internal(dserrors.CodeTransactionFailed, "update expression is required for UPDATE operation").Build()
		}
		update := &types.Update{
			TableName:        aws.String(w.TableName),
			Key:              w.Key,
			UpdateExpression: aws.String(w.UpdateExpression),
		}
		if w.ConditionExpression != "" {
			update.ConditionExpression = aws.String(w.ConditionExpression)
		}
		if len(w.ExpressionAttributeNames) > 0 {
			update.ExpressionAttributeNames = w.ExpressionAttributeNames
		}
		if len(w.ExpressionAttributeValues) > 0 {
			update.ExpressionAttributeValues = w.ExpressionAttributeValues
		}
		return types.TransactWriteItem{Update: update}, nil

	default:
		return types.TransactWriteItem{}, dserrors.Internal(dserrors.CodeTransactionFailed, "unsupported operation type: "+string(w.Type)).Build()
	}
}

// Changeset is the current state of every entity derived from one source
// record. A nil snapshot means the entity no longer exists at the source.
type Changeset struct {
	Entities         map[ledger.EntityType]*snapshot.Value
	ValidationIssues []ledger.Issue
}

// Transaction is the output of one build: the writes to submit atomically and
// the ledger state to adopt once they succeed.
type Transaction struct {
	SourceRecordID  string
	ExpectedVersion int64
	Items           []WriteItem
	Next            ledger.State
}

// IsEmpty reports whether there is nothing to submit.
func (t *Transaction) IsEmpty() bool { return len(t.Items) == 0 }

// TargetVersion is the ledger version after a successful submit.
func (t *Transaction) TargetVersion() int64 { return t.Next.Version() }

// TransactItems converts every item into the SDK form, in order.
func (t *Transaction) TransactItems() ([]types.TransactWriteItem, error) {
	if len(t.Items) > MaxTransactItems {
		return nil, dserrors.Validation(dserrors.CodeTooManyItems, "transaction exceeds the item limit").
			WithResource(t.SourceRecordID).
			Build()
	}
	out := make([]types.TransactWriteItem, 0, len(t.Items))
	for _, item := range t.Items {
		twi, err := item.TransactWriteItem()
		if err != nil {
			return nil, err
		}
		out = append(out, twi)
	}
	return out, nil
}
