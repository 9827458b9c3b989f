package errors

// ErrorCode represents a unique error code for specific error scenarios
type ErrorCode string

const (
	// Sync request errors
	CodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	CodeUnknownEntityType     ErrorCode = "UNKNOWN_ENTITY_TYPE"
	CodeInvalidSnapshot       ErrorCode = "INVALID_SNAPSHOT"
	CodeEntityDeletion        ErrorCode = "ENTITY_DELETION_UNSUPPORTED"
	CodeMissingSourceRecordID ErrorCode = "MISSING_SOURCE_RECORD_ID"

	// Patch compilation errors
	CodePatchRootReplacement ErrorCode = "PATCH_ROOT_REPLACEMENT"
	CodePatchUnsupported     ErrorCode = "PATCH_UNSUPPORTED_CHANGE"
	CodeSerialization        ErrorCode = "SERIALIZATION_FAILED"

	// Transaction errors
	CodeTooManyItems      ErrorCode = "TRANSACTION_TOO_LARGE"
	CodeOptimisticLock    ErrorCode = "OPTIMISTIC_LOCK"
	CodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	CodeLedgerCorrupt     ErrorCode = "LEDGER_CORRUPT"
	CodeLedgerNotFound    ErrorCode = "LEDGER_NOT_FOUND"

	// Infrastructure errors
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
	CodeConfigInvalid      ErrorCode = "CONFIG_INVALID"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeThrottled          ErrorCode = "THROTTLED"
	CodeDynamoDBError      ErrorCode = "DYNAMODB_ERROR"
	CodeEventBridgeError   ErrorCode = "EVENTBRIDGE_ERROR"
	CodeRetriesExhausted   ErrorCode = "RETRIES_EXHAUSTED"
)
