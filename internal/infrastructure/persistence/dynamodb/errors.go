package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"

	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

// Cancellation reason codes reported by TransactWriteItems.
const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
	reasonThrottling             = "ThrottlingError"
	reasonThroughputExceeded     = "ProvisionedThroughputExceeded"
	reasonValidation             = "ValidationError"
	reasonNone                   = "None"
)

// mapError converts a DynamoDB or breaker error to the pipeline error type.
func mapError(err error, operation, resource string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return dserrors.Timeout(dserrors.CodeTimeout, "DynamoDB call timed out").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()
	}
	if errors.Is(err, context.Canceled) {
		return dserrors.Wrap(err, operation, "DynamoDB call cancelled")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return dserrors.Unavailable(dserrors.CodeServiceUnavailable, "DynamoDB circuit breaker is open").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return fromCancellation(tce, operation, resource)
	}

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return dserrors.Internal(dserrors.CodeDynamoDBError, "DynamoDB call failed").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()
	}

	switch ae.ErrorCode() {
	case "ConditionalCheckFailedException":
		return optimisticLock(err, operation, resource)

	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return throttled(err, operation, resource)

	case "TransactionInProgressException", "InternalServerError", "ServiceUnavailable":
		return dserrors.External(dserrors.CodeDynamoDBError, "DynamoDB is temporarily unavailable").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(ae.ErrorMessage()).
			WithCause(err).
			Build()

	case "ValidationException", "IdempotentParameterMismatchException":
		return dserrors.Validation(dserrors.CodeTransactionFailed, "DynamoDB rejected the request").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(ae.ErrorMessage()).
			WithCause(err).
			Build()

	case "ResourceNotFoundException":
		return dserrors.Internal(dserrors.CodeDynamoDBError, "table not found").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(ae.ErrorMessage()).
			WithCause(err).
			Build()
	}

	return dserrors.Internal(dserrors.CodeDynamoDBError, "DynamoDB call failed").
		WithOperation(operation).
		WithResource(resource).
		WithDetails(ae.ErrorCode()).
		WithCause(err).
		Build()
}

// fromCancellation classifies a cancelled transaction by its per-item reasons.
// A guard failure anywhere wins over every other reason.
func fromCancellation(tce *types.TransactionCanceledException, operation, resource string) error {
	var conflict, throttle, invalid bool
	for _, reason := range tce.CancellationReasons {
		switch aws.ToString(reason.Code) {
		case reasonConditionalCheckFailed:
			return optimisticLock(tce, operation, resource)
		case reasonTransactionConflict:
			conflict = true
		case reasonThrottling, reasonThroughputExceeded:
			throttle = true
		case reasonValidation:
			invalid = true
		case reasonNone, "":
		}
	}

	switch {
	case conflict:
		return dserrors.Conflict(dserrors.CodeOptimisticLock, "transaction conflicted with a concurrent write").
			WithOperation(operation).
			WithResource(resource).
			WithCause(tce).
			Build()
	case throttle:
		return throttled(tce, operation, resource)
	case invalid:
		return dserrors.Validation(dserrors.CodeTransactionFailed, "transaction item failed validation").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(aws.ToString(tce.Message)).
			WithCause(tce).
			Build()
	}
	return dserrors.External(dserrors.CodeTransactionFailed, "transaction was cancelled").
		WithOperation(operation).
		WithResource(resource).
		WithDetails(aws.ToString(tce.Message)).
		WithCause(tce).
		Build()
}

func optimisticLock(err error, operation, resource string) error {
	return dserrors.Conflict(dserrors.CodeOptimisticLock, "ledger version or existence guard failed").
		WithOperation(operation).
		WithResource(resource).
		WithDetails("the record was modified by another sync").
		WithCause(err).
		Build()
}

func throttled(err error, operation, resource string) error {
	return dserrors.NewError(dserrors.ErrorTypeRateLimit, string(dserrors.CodeThrottled), "DynamoDB throughput exceeded").
		WithOperation(operation).
		WithResource(resource).
		WithRetryable(true).
		WithCause(err).
		Build()
}

// countsAsFailure reports whether err should trip the breaker. Guard failures
// and rejected requests say nothing about the health of the table.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	mapped := mapError(err, "", "")
	return !dserrors.IsConflict(mapped) && !dserrors.IsValidation(mapped)
}
