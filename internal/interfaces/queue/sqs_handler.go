// Package queue consumes sync requests from SQS.
package queue

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

// Syncer applies one sync request.
type Syncer interface {
	Sync(ctx context.Context, cmd *commands.SyncRecordCommand) (*dto.SyncResult, error)
}

// SQSHandler processes a batch of sync requests with partial batch
// responses. Retryable failures are handed back to SQS for redelivery;
// anything else is logged and acknowledged so it does not block the queue.
type SQSHandler struct {
	syncer Syncer
	logger *zap.Logger
}

// NewSQSHandler creates a handler.
func NewSQSHandler(syncer Syncer, logger *zap.Logger) *SQSHandler {
	return &SQSHandler{syncer: syncer, logger: logger}
}

// Handle processes the batch in order. Messages for the same source record
// therefore apply in the order SQS delivered them.
func (h *SQSHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}

	for i, msg := range event.Records {
		if ctx.Err() != nil {
			// Out of time: everything not yet processed goes back to the queue.
			for _, rest := range event.Records[i:] {
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rest.MessageId})
			}
			h.logger.Warn("context done before batch completed",
				zap.Int("unprocessed", len(event.Records)-i),
				zap.Error(ctx.Err()))
			break
		}

		if h.handleMessage(ctx, msg) {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}

	h.logger.Info("batch processed",
		zap.Int("messages", len(event.Records)),
		zap.Int("failures", len(resp.BatchItemFailures)))
	return resp, nil
}

// handleMessage reports whether msg should be redelivered.
func (h *SQSHandler) handleMessage(ctx context.Context, msg events.SQSMessage) bool {
	logger := h.logger.With(zap.String("message_id", msg.MessageId))

	cmd, err := commands.ParseSyncRecordCommand([]byte(msg.Body))
	if err != nil {
		logger.Error("discarding malformed sync request", zap.Error(err))
		return false
	}
	logger = logger.With(zap.String("source_record_id", cmd.SourceRecordID))

	result, err := h.syncer.Sync(ctx, cmd)
	if err != nil {
		if dserrors.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn("sync failed, returning message to queue",
				zap.String("code", dserrors.CodeOf(err)),
				zap.Error(err))
			return true
		}
		logger.Error("sync rejected, acknowledging message",
			zap.String("code", dserrors.CodeOf(err)),
			zap.Error(err))
		return false
	}

	logger.Debug("message processed",
		zap.String("outcome", string(result.Outcome)),
		zap.Int64("version", result.Version))
	return false
}
