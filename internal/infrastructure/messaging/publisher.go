// Package messaging publishes sync events to Amazon EventBridge.
package messaging

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
)

// DetailTypeRecordSynced is the EventBridge detail type of RecordSynced events.
const DetailTypeRecordSynced = "RecordSynced"

// Client is the subset of the EventBridge API the publisher uses.
type Client interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ Client = (*eventbridge.Client)(nil)

// EventBridgePublisher implements repository.EventPublisher.
type EventBridgePublisher struct {
	client   Client
	eventBus string
	source   string
	logger   *zap.Logger
}

// NewEventBridgePublisher creates a publisher for the configured bus.
func NewEventBridgePublisher(client Client, cfg config.Events, logger *zap.Logger) *EventBridgePublisher {
	eventBus := cfg.EventBusName
	if eventBus == "" {
		eventBus = "default"
	}
	source := cfg.Source
	if source == "" {
		source = "dos.migration"
	}
	return &EventBridgePublisher{client: client, eventBus: eventBus, source: source, logger: logger}
}

// PublishRecordSynced sends one RecordSynced event.
func (p *EventBridgePublisher) PublishRecordSynced(ctx context.Context, event repository.RecordSynced) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return dserrors.Internal(dserrors.CodeSerialization, "failed to marshal event").
			WithOperation("PublishRecordSynced").
			WithResource(event.SourceRecordID).
			WithCause(err).
			Build()
	}

	output, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBus),
			Source:       aws.String(p.source),
			DetailType:   aws.String(DetailTypeRecordSynced),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.SyncedAt),
			Resources:    []string{event.SourceRecordID},
		}},
	})
	if err != nil {
		return dserrors.External(dserrors.CodeEventBridgeError, "EventBridge PutEvents failed").
			WithOperation("PublishRecordSynced").
			WithResource(event.SourceRecordID).
			WithCause(err).
			Build()
	}

	if output.FailedEntryCount > 0 {
		var code, message string
		if len(output.Entries) > 0 {
			code = aws.ToString(output.Entries[0].ErrorCode)
			message = aws.ToString(output.Entries[0].ErrorMessage)
		}
		p.logger.Error("EventBridge rejected event",
			zap.String("source_record_id", event.SourceRecordID),
			zap.String("error_code", code),
			zap.String("error_message", message))
		return dserrors.External(dserrors.CodeEventBridgeError, "EventBridge rejected the event").
			WithOperation("PublishRecordSynced").
			WithResource(event.SourceRecordID).
			WithDetails(code + ": " + message).
			Build()
	}

	p.logger.Debug("published event",
		zap.String("detail_type", DetailTypeRecordSynced),
		zap.String("source_record_id", event.SourceRecordID),
		zap.Int64("version", event.Version))
	return nil
}

var _ repository.EventPublisher = (*EventBridgePublisher)(nil)
