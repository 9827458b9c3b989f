package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/audit"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/observability"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository/mocks"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func fastRetry(attempts int) repository.RetryConfig {
	return repository.RetryConfig{
		MaxAttempts:   attempts,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func newService(store *mocks.MemoryStore, retry repository.RetryConfig) (*SyncService, *observability.Collector) {
	builder := txn.NewBuilder(
		zap.NewNop(),
		diff.NewStructuralDiffer(),
		audit.NewStaticProvider("DATA_MIGRATION", audit.FixedClock(fixedNow)),
		txn.Tables{
			Ledger: "ledger",
			Entities: map[ledger.EntityType]string{
				ledger.EntityOrganisation:      "organisation",
				ledger.EntityLocation:          "location",
				ledger.EntityHealthcareService: "healthcare-service",
			},
		},
		map[ledger.EntityType]txn.EntityRules{
			ledger.EntityHealthcareService: {
				Diff: diff.Rules{Unordered: []diff.CollectionRule{{Path: "dispositions"}}},
			},
		},
	)
	metrics := observability.NewCollector("test")
	svc := NewSyncService(store, store, store, builder, retry, nil, metrics, noop.NewTracerProvider().Tracer("test"), zap.NewNop())
	return svc, metrics
}

func testCounter(c *observability.Collector, outcome string) float64 {
	return testutil.ToFloat64(c.Transactions.WithLabelValues(outcome))
}

func command(t *testing.T, body string) *commands.SyncRecordCommand {
	t.Helper()
	cmd, err := commands.ParseSyncRecordCommand([]byte(body))
	require.NoError(t, err)
	return cmd
}

const firstBody = `{
	"sourceRecordId": "rec-1",
	"entities": {
		"organisation": {"name": "A", "active": true},
		"healthcareService": {"name": "Clinic", "dispositions": ["DX1", "DX2"]}
	}
}`

func TestSync_FirstSyncThenNoop(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, _ := newService(store, fastRetry(3))

	result, err := svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeCommitted, result.Outcome)
	assert.Equal(t, int64(1), result.Version)
	assert.Equal(t, 3, result.WriteItems)
	assert.Equal(t, []ledger.EntityType{ledger.EntityOrganisation, ledger.EntityHealthcareService}, result.EntityTypes)
	assert.True(t, result.EventPublished)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "rec-1", events[0].SourceRecordID)
	assert.Equal(t, int64(1), events[0].Version)
	assert.Equal(t, fixedNow, events[0].SyncedAt)

	again, err := svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeNoop, again.Outcome)
	assert.Equal(t, int64(1), again.Version)
	assert.Len(t, store.Submitted(), 1)
	assert.Len(t, store.Events(), 1)
}

func TestSync_UpdateWritesOnlyChangedEntity(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, _ := newService(store, fastRetry(3))

	_, err := svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)

	result, err := svc.Sync(context.Background(), command(t, `{
		"sourceRecordId": "rec-1",
		"entities": {
			"organisation": {"name": "B", "active": true},
			"healthcareService": {"name": "Clinic", "dispositions": ["DX2", "DX1"]}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Version)
	assert.Equal(t, []ledger.EntityType{ledger.EntityOrganisation}, result.EntityTypes)

	last := store.Submitted()[1]
	require.Len(t, last.Items, 2)
	assert.Equal(t, txn.OperationTypeUpdate, last.Items[0].Type)
	assert.Equal(t, int64(1), last.ExpectedVersion)
}

func TestSync_DeletionRejected(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, metrics := newService(store, fastRetry(3))

	_, err := svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)

	_, err = svc.Sync(context.Background(), command(t, `{
		"sourceRecordId": "rec-1",
		"entities": {"organisation": null, "healthcareService": {"name": "Clinic", "dispositions": ["DX1", "DX2"]}}
	}`))
	require.Error(t, err)
	assert.True(t, dserrors.HasCode(err, dserrors.CodeEntityDeletion))
	assert.False(t, dserrors.IsRetryable(err))
	assert.Len(t, store.Submitted(), 1)
	assert.Equal(t, 1.0, testCounter(metrics, observability.OutcomeRejected))
}

func TestSync_RetriesAfterConflict(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, metrics := newService(store, fastRetry(3))

	// Another writer commits version 1 just before our first submit.
	var once sync.Once
	store.OnSubmit(func(tx *txn.Transaction) {
		once.Do(func() {
			winner := ledger.New("rec-1").WithIncrementedVersion()
			store.Put(winner)
		})
	})

	result, err := svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, int64(2), result.Version)
	assert.Equal(t, 1.0, testCounter(metrics, observability.OutcomeConflict))
	assert.Equal(t, 1.0, testCounter(metrics, observability.OutcomeCommitted))
}

func TestSync_ConcurrentWritersExactlyOneWins(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, _ := newService(store, fastRetry(1))

	// Hold both submits until both syncs have loaded version 0.
	var arrived sync.WaitGroup
	arrived.Add(2)
	store.OnSubmit(func(*txn.Transaction) {
		arrived.Done()
		arrived.Wait()
	})

	bodies := []string{
		`{"sourceRecordId": "rec-1", "entities": {"organisation": {"name": "A"}}}`,
		`{"sourceRecordId": "rec-1", "entities": {"organisation": {"name": "B"}}}`,
	}
	errs := make([]error, len(bodies))
	var wg sync.WaitGroup
	for i, body := range bodies {
		wg.Add(1)
		go func(i int, cmd *commands.SyncRecordCommand) {
			defer wg.Done()
			_, errs[i] = svc.Sync(context.Background(), cmd)
		}(i, command(t, body))
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case dserrors.IsConflict(err):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	require.Len(t, store.Submitted(), 1)
	assert.Equal(t, int64(0), store.Submitted()[0].ExpectedVersion)
}

func TestSync_LoadFailureIsReturned(t *testing.T) {
	store := mocks.NewMemoryStore()
	store.SetError("Load", dserrors.Internal(dserrors.CodeLedgerCorrupt, "bad item").Build())
	svc, metrics := newService(store, fastRetry(3))

	_, err := svc.Sync(context.Background(), command(t, firstBody))
	require.Error(t, err)
	assert.True(t, dserrors.HasCode(err, dserrors.CodeLedgerCorrupt))
	assert.Equal(t, 1.0, testCounter(metrics, observability.OutcomeFailed))
}

func TestSync_PublishFailureKeepsCommit(t *testing.T) {
	store := mocks.NewMemoryStore()
	store.SetError("Publish", errors.New("bus down"))
	svc, _ := newService(store, fastRetry(3))

	result, err := svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeCommitted, result.Outcome)
	assert.False(t, result.EventPublished)
	assert.Len(t, store.Submitted(), 1)
}

func TestSync_UnknownEntityType(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, _ := newService(store, fastRetry(3))

	_, err := svc.Sync(context.Background(), command(t, `{"sourceRecordId": "rec-1", "entities": {"practitioner": {}}}`))
	assert.True(t, dserrors.HasCode(err, dserrors.CodeUnknownEntityType))
}

func TestPreview_DoesNotSubmit(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, _ := newService(store, fastRetry(3))

	tx, err := svc.Preview(context.Background(), command(t, firstBody))
	require.NoError(t, err)
	assert.Len(t, tx.Items, 3)
	assert.Empty(t, store.Submitted())
}

func TestGetLedger(t *testing.T) {
	store := mocks.NewMemoryStore()
	svc, _ := newService(store, fastRetry(3))

	_, err := svc.GetLedger(context.Background(), "rec-1")
	assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeNotFound))

	_, err = svc.Sync(context.Background(), command(t, firstBody))
	require.NoError(t, err)

	state, err := svc.GetLedger(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version())
	assert.Equal(t, 2, state.EntityCount())
}
