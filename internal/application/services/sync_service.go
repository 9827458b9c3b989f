// Package services contains the application services that drive the sync
// pipeline: load the ledger, build a transaction, submit it, and retry from a
// fresh load when another writer got there first.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/observability"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// SyncService applies source record changesets to the target store.
type SyncService struct {
	ledgers   repository.LedgerReader
	submitter repository.TransactionSubmitter
	publisher repository.EventPublisher
	builder   *txn.Builder

	retry   repository.RetryConfig
	limiter *rate.Limiter // nil means unlimited

	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewSyncService creates the service. A nil publisher disables events, a nil
// limiter disables throttling and a nil tracer uses the global provider.
func NewSyncService(
	ledgers repository.LedgerReader,
	submitter repository.TransactionSubmitter,
	publisher repository.EventPublisher,
	builder *txn.Builder,
	retry repository.RetryConfig,
	limiter *rate.Limiter,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *SyncService {
	if publisher == nil {
		publisher = repository.NoopPublisher{}
	}
	if tracer == nil {
		tracer = otel.Tracer("sync-service")
	}
	return &SyncService{
		ledgers:   ledgers,
		submitter: submitter,
		publisher: publisher,
		builder:   builder,
		retry:     retry,
		limiter:   limiter,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// Sync brings the target store up to date with cmd. Each attempt reloads the
// ledger and rebuilds from it, so a lost race is resolved by diffing against
// the winner's state.
func (s *SyncService) Sync(ctx context.Context, cmd *commands.SyncRecordCommand) (result *dto.SyncResult, err error) {
	ctx, span := s.tracer.Start(ctx, "SyncService.Sync",
		trace.WithAttributes(attribute.String("sync.source_record_id", cmd.SourceRecordID)))
	defer func() { observability.EndSpan(span, err) }()

	cs, err := cmd.Changeset()
	if err != nil {
		s.metrics.RecordOutcome(observability.OutcomeRejected)
		return nil, err
	}

	var built, committed *txn.Transaction
	attempts := 0

	err = repository.RetryWithBackoff(ctx, s.retry, func(ctx context.Context, attempt int) error {
		attempts = attempt + 1
		committed = nil

		tx, err := s.build(ctx, cmd.SourceRecordID, cs)
		if err != nil {
			return err
		}
		built = tx
		if tx.IsEmpty() {
			return nil
		}

		if err := s.submit(ctx, tx); err != nil {
			if dserrors.IsConflict(err) {
				s.metrics.RecordOutcome(observability.OutcomeConflict)
				s.logger.Debug("lost race on ledger version, reloading",
					zap.String("source_record_id", cmd.SourceRecordID),
					zap.Int64("expected_version", tx.ExpectedVersion),
					zap.Int("attempt", attempts))
			}
			return err
		}
		committed = tx
		return nil
	})
	span.SetAttributes(attribute.Int("sync.attempts", attempts))

	if err != nil {
		if dserrors.IsValidation(err) {
			s.metrics.RecordOutcome(observability.OutcomeRejected)
		} else {
			s.metrics.RecordOutcome(observability.OutcomeFailed)
		}
		return nil, err
	}

	if committed == nil {
		s.metrics.RecordOutcome(observability.OutcomeNoop)
		return &dto.SyncResult{
			SourceRecordID: cmd.SourceRecordID,
			Outcome:        dto.OutcomeNoop,
			Version:        built.Next.Version(),
			Attempts:       attempts,
		}, nil
	}

	s.metrics.RecordOutcome(observability.OutcomeCommitted)
	s.metrics.RecordCommitted(committed)

	result = &dto.SyncResult{
		SourceRecordID: cmd.SourceRecordID,
		Outcome:        dto.OutcomeCommitted,
		Version:        committed.TargetVersion(),
		Attempts:       attempts,
		WriteItems:     len(committed.Items),
		EntityTypes:    writtenTypes(committed),
	}
	result.EventPublished = s.publish(ctx, committed, result.EntityTypes)

	s.logger.Info("record synced",
		zap.String("source_record_id", cmd.SourceRecordID),
		zap.Int64("version", result.Version),
		zap.Int("write_items", result.WriteItems),
		zap.Int("attempts", attempts))
	return result, nil
}

// Preview builds the transaction Sync would submit now, without submitting it.
func (s *SyncService) Preview(ctx context.Context, cmd *commands.SyncRecordCommand) (*txn.Transaction, error) {
	cs, err := cmd.Changeset()
	if err != nil {
		return nil, err
	}
	return s.build(ctx, cmd.SourceRecordID, cs)
}

// GetLedger returns the stored ledger entry. A record never synced is
// reported as NOT_FOUND.
func (s *SyncService) GetLedger(ctx context.Context, sourceRecordID string) (ledger.State, error) {
	state, err := s.ledgers.Load(ctx, sourceRecordID)
	if err != nil {
		return ledger.State{}, err
	}
	if state.IsNew() {
		return ledger.State{}, dserrors.NotFound(dserrors.CodeLedgerNotFound, "no ledger entry for source record").
			WithResource(sourceRecordID).
			Build()
	}
	return state, nil
}

func (s *SyncService) build(ctx context.Context, sourceRecordID string, cs txn.Changeset) (*txn.Transaction, error) {
	state, err := s.ledgers.Load(ctx, sourceRecordID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tx, err := s.builder.Build(state, cs)
	s.metrics.ObserveBuild(time.Since(start))
	return tx, err
}

func (s *SyncService) submit(ctx context.Context, tx *txn.Transaction) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	err := s.submitter.Submit(ctx, tx)
	s.metrics.ObserveSubmit(time.Since(start))
	return err
}

// publish announces a committed sync. The commit stands whether or not the
// event goes out, so a failure is logged and reported in the result only.
func (s *SyncService) publish(ctx context.Context, tx *txn.Transaction, types []ledger.EntityType) bool {
	err := s.publisher.PublishRecordSynced(ctx, repository.RecordSynced{
		SourceRecordID: tx.SourceRecordID,
		Version:        tx.TargetVersion(),
		EntityTypes:    types,
		SyncedAt:       tx.Next.LastModifiedAt(),
	})
	if err != nil {
		s.logger.Warn("failed to publish RecordSynced",
			zap.String("source_record_id", tx.SourceRecordID),
			zap.Int64("version", tx.TargetVersion()),
			zap.Error(err))
		return false
	}
	return true
}

func writtenTypes(tx *txn.Transaction) []ledger.EntityType {
	var out []ledger.EntityType
	for _, item := range tx.Items {
		if !item.IsLedger() {
			out = append(out, item.EntityType)
		}
	}
	return out
}
