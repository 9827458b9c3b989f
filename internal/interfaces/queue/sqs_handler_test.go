package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, cmd *commands.SyncRecordCommand) (*dto.SyncResult, error) {
	args := m.Called(ctx, cmd.SourceRecordID)
	result, _ := args.Get(0).(*dto.SyncResult)
	return result, args.Error(1)
}

func message(id, recordID string) events.SQSMessage {
	return events.SQSMessage{
		MessageId: id,
		Body:      `{"sourceRecordId": "` + recordID + `", "entities": {"organisation": {"name": "A"}}}`,
	}
}

func failedIDs(resp events.SQSEventResponse) []string {
	ids := make([]string, 0, len(resp.BatchItemFailures))
	for _, f := range resp.BatchItemFailures {
		ids = append(ids, f.ItemIdentifier)
	}
	return ids
}

func TestHandle_PartialBatchFailures(t *testing.T) {
	syncer := new(mockSyncer)
	syncer.On("Sync", mock.Anything, "ok").
		Return(&dto.SyncResult{SourceRecordID: "ok", Outcome: dto.OutcomeCommitted, Version: 1}, nil)
	syncer.On("Sync", mock.Anything, "throttled").
		Return(nil, dserrors.NewError(dserrors.ErrorTypeRateLimit, string(dserrors.CodeThrottled), "throttled").WithRetryable(true).Build())
	syncer.On("Sync", mock.Anything, "deleted").
		Return(nil, dserrors.Validation(dserrors.CodeEntityDeletion, "deletion is not supported").Build())

	event := events.SQSEvent{Records: []events.SQSMessage{
		message("m1", "ok"),
		message("m2", "throttled"),
		message("m3", "deleted"),
		{MessageId: "m4", Body: `not json`},
	}}

	resp, err := NewSQSHandler(syncer, zap.NewNop()).Handle(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, []string{"m2"}, failedIDs(resp))
	syncer.AssertNumberOfCalls(t, "Sync", 3)
}

func TestHandle_UnclassifiedErrorIsAcknowledged(t *testing.T) {
	syncer := new(mockSyncer)
	syncer.On("Sync", mock.Anything, "rec-1").Return(nil, errors.New("boom"))

	resp, err := NewSQSHandler(syncer, zap.NewNop()).Handle(context.Background(),
		events.SQSEvent{Records: []events.SQSMessage{message("m1", "rec-1")}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
}

func TestHandle_DeadlineIsRedelivered(t *testing.T) {
	syncer := new(mockSyncer)
	syncer.On("Sync", mock.Anything, "rec-1").Return(nil, context.DeadlineExceeded)

	resp, err := NewSQSHandler(syncer, zap.NewNop()).Handle(context.Background(),
		events.SQSEvent{Records: []events.SQSMessage{message("m1", "rec-1")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, failedIDs(resp))
}

func TestHandle_ContextDoneReturnsRemaining(t *testing.T) {
	syncer := new(mockSyncer)
	ctx, cancel := context.WithCancel(context.Background())
	syncer.On("Sync", mock.Anything, "rec-1").
		Run(func(mock.Arguments) { cancel() }).
		Return(&dto.SyncResult{Outcome: dto.OutcomeNoop}, nil)

	event := events.SQSEvent{Records: []events.SQSMessage{
		message("m1", "rec-1"),
		message("m2", "rec-2"),
		message("m3", "rec-3"),
	}}

	resp, err := NewSQSHandler(syncer, zap.NewNop()).Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, failedIDs(resp))
	syncer.AssertNumberOfCalls(t, "Sync", 1)
}
