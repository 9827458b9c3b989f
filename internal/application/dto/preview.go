package dto

import (
	"encoding/json"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/patch"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// PreviewView describes the transaction a sync would submit.
type PreviewView struct {
	SourceRecordID  string          `json:"sourceRecordId"`
	ExpectedVersion int64           `json:"expectedVersion"`
	TargetVersion   int64           `json:"targetVersion"`
	Items           []WriteItemView `json:"items"`
}

// WriteItemView is one write of a previewed transaction. Attribute values are
// in DynamoDB wire form, e.g. {"S":"B"}.
type WriteItemView struct {
	Operation                 string                     `json:"operation"`
	TableName                 string                     `json:"tableName"`
	EntityType                string                     `json:"entityType,omitempty"`
	Item                      map[string]json.RawMessage `json:"item,omitempty"`
	UpdateExpression          string                     `json:"updateExpression,omitempty"`
	ConditionExpression       string                     `json:"conditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string          `json:"expressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]json.RawMessage `json:"expressionAttributeValues,omitempty"`
}

// ToPreviewView renders a transaction for display.
func ToPreviewView(tx *txn.Transaction) (PreviewView, error) {
	view := PreviewView{
		SourceRecordID:  tx.SourceRecordID,
		ExpectedVersion: tx.ExpectedVersion,
		TargetVersion:   tx.TargetVersion(),
		Items:           make([]WriteItemView, 0, len(tx.Items)),
	}
	for _, item := range tx.Items {
		fields, err := patch.WireJSONValues(item.Item)
		if err != nil {
			return PreviewView{}, err
		}
		values, err := patch.WireJSONValues(item.ExpressionAttributeValues)
		if err != nil {
			return PreviewView{}, err
		}
		view.Items = append(view.Items, WriteItemView{
			Operation:                 string(item.Type),
			TableName:                 item.TableName,
			EntityType:                string(item.EntityType),
			Item:                      fields,
			UpdateExpression:          item.UpdateExpression,
			ConditionExpression:       item.ConditionExpression,
			ExpressionAttributeNames:  item.ExpressionAttributeNames,
			ExpressionAttributeValues: values,
		})
	}
	return view, nil
}
