package mocks

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// checkLedgerGuard evaluates the condition expression of a ledger write
// against the stored ledger. Only the clause forms the builder emits are
// understood: attribute_exists, attribute_not_exists and an equality on a
// numeric attribute, joined by AND.
func checkLedgerGuard(item txn.WriteItem, stored ledger.State, exists bool) (bool, error) {
	cond := item.ConditionExpression
	if cond == "" {
		return false, unsupportedGuard(item, "ledger write carries no condition")
	}

	clauses := strings.Split(cond, " AND ")
	for _, clause := range clauses {
		if len(clauses) > 1 {
			clause = strings.TrimSuffix(strings.TrimPrefix(clause, "("), ")")
		}

		switch {
		case strings.HasPrefix(clause, "attribute_exists ("):
			if _, err := guardName(item, between(clause, "(", ")")); err != nil {
				return false, err
			}
			if !exists {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_not_exists ("):
			if _, err := guardName(item, between(clause, "(", ")")); err != nil {
				return false, err
			}
			if exists {
				return false, nil
			}
		case strings.Contains(clause, " = "):
			parts := strings.SplitN(clause, " = ", 2)
			name, err := guardName(item, parts[0])
			if err != nil {
				return false, err
			}
			if name != txn.AttrVersion {
				return false, unsupportedGuard(item, "equality on "+name)
			}
			want, err := guardNumber(item, parts[1])
			if err != nil {
				return false, err
			}
			if !exists || stored.Version() != want {
				return false, nil
			}
		default:
			return false, unsupportedGuard(item, clause)
		}
	}
	return true, nil
}

func between(s, open, close string) string {
	start := strings.Index(s, open)
	end := strings.LastIndex(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start+len(open) : end]
}

func guardName(item txn.WriteItem, alias string) (string, error) {
	name, ok := item.ExpressionAttributeNames[strings.TrimSpace(alias)]
	if !ok {
		return "", unsupportedGuard(item, "unbound name "+alias)
	}
	return name, nil
}

func guardNumber(item txn.WriteItem, alias string) (int64, error) {
	av, ok := item.ExpressionAttributeValues[strings.TrimSpace(alias)].(*types.AttributeValueMemberN)
	if !ok {
		return 0, unsupportedGuard(item, "non-numeric value "+alias)
	}
	n, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return 0, unsupportedGuard(item, "invalid number "+av.Value)
	}
	return n, nil
}

func unsupportedGuard(item txn.WriteItem, details string) error {
	return dserrors.Internal(dserrors.CodeTransactionFailed, "unsupported ledger guard").
		WithResource(item.TableName).
		WithDetails(details).
		Build()
}
