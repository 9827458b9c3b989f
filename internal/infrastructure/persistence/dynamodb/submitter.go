package dynamodb

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// tokenNamespace scopes client request tokens.
var tokenNamespace = uuid.MustParse("6f1c2a4e-52b8-4f0e-9d1a-3c7b8e2f4a61")

// TransactionWriter submits sync transactions with TransactWriteItems.
type TransactionWriter struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewTransactionWriter creates a writer. A disabled breaker config submits
// every call directly.
func NewTransactionWriter(client Client, cb config.CircuitBreaker, logger *zap.Logger) *TransactionWriter {
	w := &TransactionWriter{client: client, logger: logger}
	if cb.Enabled {
		w.breaker = newBreaker(cb, logger)
	}
	return w
}

func newBreaker(cfg config.CircuitBreaker, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dynamodb-transact-write",
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < cfg.MinimumRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
	})
}

// Submit applies every item of tx atomically. An empty transaction is a no-op.
func (w *TransactionWriter) Submit(ctx context.Context, tx *txn.Transaction) error {
	if tx.IsEmpty() {
		return nil
	}

	items, err := tx.TransactItems()
	if err != nil {
		return err
	}

	input := &awsdynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(requestToken(tx, items)),
	}

	start := time.Now()
	err = w.execute(ctx, input)
	if err != nil {
		mapped := mapError(err, "SubmitTransaction", tx.SourceRecordID)
		w.logger.Warn("transaction rejected",
			zap.String("source_record_id", tx.SourceRecordID),
			zap.Int64("expected_version", tx.ExpectedVersion),
			zap.Int("items", len(items)),
			zap.Error(mapped))
		return mapped
	}

	w.logger.Debug("transaction committed",
		zap.String("source_record_id", tx.SourceRecordID),
		zap.Int64("version", tx.TargetVersion()),
		zap.Int("items", len(items)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (w *TransactionWriter) execute(ctx context.Context, input *awsdynamodb.TransactWriteItemsInput) error {
	if w.breaker == nil {
		_, err := w.client.TransactWriteItems(ctx, input)
		return err
	}
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return w.client.TransactWriteItems(ctx, input)
	})
	return err
}

// requestToken derives the idempotency token from the record, the version
// transition and the item contents. A network retry of the same transaction
// reuses the token; any other transaction gets a different one.
func requestToken(tx *txn.Transaction, items []types.TransactWriteItem) string {
	h := sha256.New()
	writeString(h, tx.SourceRecordID)
	writeString(h, strconv.FormatInt(tx.ExpectedVersion, 10))
	writeString(h, strconv.FormatInt(tx.TargetVersion(), 10))
	for _, item := range items {
		digestItem(h, item)
	}
	return uuid.NewSHA1(tokenNamespace, h.Sum(nil)).String()
}

func digestItem(h hash.Hash, item types.TransactWriteItem) {
	switch {
	case item.Put != nil:
		writeString(h, "put")
		writeString(h, aws.ToString(item.Put.TableName))
		digestMap(h, item.Put.Item)
		writeString(h, aws.ToString(item.Put.ConditionExpression))
		digestNames(h, item.Put.ExpressionAttributeNames)
		digestMap(h, item.Put.ExpressionAttributeValues)
	case item.Update != nil:
		writeString(h, "update")
		writeString(h, aws.ToString(item.Update.TableName))
		digestMap(h, item.Update.Key)
		writeString(h, aws.ToString(item.Update.UpdateExpression))
		writeString(h, aws.ToString(item.Update.ConditionExpression))
		digestNames(h, item.Update.ExpressionAttributeNames)
		digestMap(h, item.Update.ExpressionAttributeValues)
	}
}

func digestNames(h hash.Hash, names map[string]string) {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(h, k)
		writeString(h, names[k])
	}
}

func digestMap(h hash.Hash, m map[string]types.AttributeValue) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeString(h, "{"+strconv.Itoa(len(keys)))
	for _, k := range keys {
		writeString(h, k)
		digestValue(h, m[k])
	}
}

func digestValue(h hash.Hash, av types.AttributeValue) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		writeString(h, "S")
		writeString(h, v.Value)
	case *types.AttributeValueMemberN:
		writeString(h, "N")
		writeString(h, v.Value)
	case *types.AttributeValueMemberBOOL:
		writeString(h, "BOOL")
		writeString(h, strconv.FormatBool(v.Value))
	case *types.AttributeValueMemberNULL:
		writeString(h, "NULL")
	case *types.AttributeValueMemberL:
		writeString(h, "L"+strconv.Itoa(len(v.Value)))
		for _, item := range v.Value {
			digestValue(h, item)
		}
	case *types.AttributeValueMemberM:
		writeString(h, "M")
		digestMap(h, v.Value)
	case *types.AttributeValueMemberSS:
		writeString(h, "SS"+strconv.Itoa(len(v.Value)))
		for _, s := range v.Value {
			writeString(h, s)
		}
	case *types.AttributeValueMemberNS:
		writeString(h, "NS"+strconv.Itoa(len(v.Value)))
		for _, s := range v.Value {
			writeString(h, s)
		}
	case *types.AttributeValueMemberB:
		writeString(h, "B")
		writeString(h, string(v.Value))
	default:
		writeString(h, "?")
	}
}

// writeString writes s length-prefixed so that adjacent fields cannot run
// into each other.
func writeString(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

var _ repository.TransactionSubmitter = (*TransactionWriter)(nil)
