package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

var event = repository.RecordSynced{
	SourceRecordID: "rec-1",
	Version:        3,
	EntityTypes:    []ledger.EntityType{ledger.EntityOrganisation},
	SyncedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
}

func TestPublishRecordSynced(t *testing.T) {
	client := new(mockClient)
	var captured *eventbridge.PutEventsInput
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*eventbridge.PutEventsInput) }).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewEventBridgePublisher(client, config.Events{EventBusName: "sync-bus", Source: "dos.test"}, zap.NewNop())
	require.NoError(t, p.PublishRecordSynced(context.Background(), event))

	require.NotNil(t, captured)
	require.Len(t, captured.Entries, 1)
	entry := captured.Entries[0]
	assert.Equal(t, "sync-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, "dos.test", aws.ToString(entry.Source))
	assert.Equal(t, DetailTypeRecordSynced, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"rec-1"}, entry.Resources)

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "rec-1", detail["sourceRecordId"])
	assert.Equal(t, 3.0, detail["version"])
	assert.Equal(t, []any{"organisation"}, detail["entityTypes"])
}

func TestPublishRecordSynced_Defaults(t *testing.T) {
	client := new(mockClient)
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return aws.ToString(in.Entries[0].EventBusName) == "default" && aws.ToString(in.Entries[0].Source) == "dos.migration"
	})).Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewEventBridgePublisher(client, config.Events{}, zap.NewNop())
	require.NoError(t, p.PublishRecordSynced(context.Background(), event))
	client.AssertExpectations(t)
}

func TestPublishRecordSynced_Failures(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		client := new(mockClient)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))

		err := NewEventBridgePublisher(client, config.Events{}, zap.NewNop()).PublishRecordSynced(context.Background(), event)
		assert.True(t, dserrors.HasCode(err, dserrors.CodeEventBridgeError))
		assert.True(t, dserrors.IsRetryable(err))
	})

	t.Run("rejected entry", func(t *testing.T) {
		client := new(mockClient)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{{
				ErrorCode:    aws.String("ThrottlingException"),
				ErrorMessage: aws.String("slow down"),
			}},
		}, nil)

		err := NewEventBridgePublisher(client, config.Events{}, zap.NewNop()).PublishRecordSynced(context.Background(), event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ThrottlingException")
	})
}
