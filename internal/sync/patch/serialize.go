package patch

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
)

// Serialize converts a snapshot value into its DynamoDB wire form. Every
// snapshot kind maps onto exactly one attribute kind.
func Serialize(v snapshot.Value) types.AttributeValue {
	switch v.Kind() {
	case snapshot.KindBool:
		b, _ := v.AsBool()
		return &types.AttributeValueMemberBOOL{Value: b}
	case snapshot.KindNumber:
		n, _ := v.NumberLiteral()
		return &types.AttributeValueMemberN{Value: n}
	case snapshot.KindString:
		s, _ := v.AsString()
		return &types.AttributeValueMemberS{Value: s}
	case snapshot.KindList:
		items := v.Items()
		out := make([]types.AttributeValue, len(items))
		for i, item := range items {
			out[i] = Serialize(item)
		}
		return &types.AttributeValueMemberL{Value: out}
	case snapshot.KindMap:
		return &types.AttributeValueMemberM{Value: SerializeFields(v)}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}

// SerializeFields serializes the fields of a map value as an item.
func SerializeFields(v snapshot.Value) map[string]types.AttributeValue {
	fields := v.Fields()
	out := make(map[string]types.AttributeValue, len(fields))
	for k, f := range fields {
		out[k] = Serialize(f)
	}
	return out
}

// Deserialize converts a stored attribute back into a snapshot value. String
// and number sets come back as lists; binary attributes are rejected.
func Deserialize(av types.AttributeValue) (snapshot.Value, error) {
	switch t := av.(type) {
	case nil:
		return snapshot.Null(), nil
	case *types.AttributeValueMemberNULL:
		return snapshot.Null(), nil
	case *types.AttributeValueMemberBOOL:
		return snapshot.Bool(t.Value), nil
	case *types.AttributeValueMemberN:
		return snapshot.Number(t.Value)
	case *types.AttributeValueMemberS:
		return snapshot.String(t.Value), nil
	case *types.AttributeValueMemberSS:
		items := make([]snapshot.Value, len(t.Value))
		for i, s := range t.Value {
			items[i] = snapshot.String(s)
		}
		return snapshot.List(items...), nil
	case *types.AttributeValueMemberNS:
		items := make([]snapshot.Value, len(t.Value))
		for i, n := range t.Value {
			num, err := snapshot.Number(n)
			if err != nil {
				return snapshot.Value{}, err
			}
			items[i] = num
		}
		return snapshot.List(items...), nil
	case *types.AttributeValueMemberL:
		items := make([]snapshot.Value, len(t.Value))
		for i, item := range t.Value {
			v, err := Deserialize(item)
			if err != nil {
				return snapshot.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return snapshot.List(items...), nil
	case *types.AttributeValueMemberM:
		return DeserializeFields(t.Value)
	default:
		return snapshot.Value{}, fmt.Errorf("unsupported attribute type %T", av)
	}
}

// DeserializeFields converts an item into a map value.
func DeserializeFields(item map[string]types.AttributeValue) (snapshot.Value, error) {
	fields := make(map[string]snapshot.Value, len(item))
	for k, f := range item {
		v, err := Deserialize(f)
		if err != nil {
			return snapshot.Value{}, fmt.Errorf("%s: %w", k, err)
		}
		fields[k] = v
	}
	return snapshot.Map(fields), nil
}

// WireJSON renders an attribute value in the DynamoDB JSON wire format, e.g.
// {"S":"B"} or {"L":[{"S":"DX1"}]}.
func WireJSON(av types.AttributeValue) (string, error) {
	raw, err := json.Marshal(wireForm(av))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WireJSONValues renders a placeholder map in wire format.
func WireJSONValues(values map[string]types.AttributeValue) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		raw, err := json.Marshal(wireForm(v))
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return out, nil
}

func wireForm(av types.AttributeValue) map[string]any {
	switch t := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": t.Value}
	case *types.AttributeValueMemberN:
		return map[string]any{"N": t.Value}
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": t.Value}
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": t.Value}
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": t.Value}
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": t.Value}
	case *types.AttributeValueMemberB:
		return map[string]any{"B": t.Value}
	case *types.AttributeValueMemberL:
		items := make([]any, len(t.Value))
		for i, item := range t.Value {
			items[i] = wireForm(item)
		}
		return map[string]any{"L": items}
	case *types.AttributeValueMemberM:
		fields := make(map[string]any, len(t.Value))
		for k, f := range t.Value {
			fields[k] = wireForm(f)
		}
		return map[string]any{"M": fields}
	default:
		return map[string]any{"NULL": true}
	}
}
