package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/audit"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

func build(t *testing.T, state ledger.State, name string) *txn.Transaction {
	t.Helper()
	b := txn.NewBuilder(zap.NewNop(), diff.NewStructuralDiffer(),
		audit.NewStaticProvider("test", audit.FixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))),
		txn.Tables{Ledger: "ledger", Entities: map[ledger.EntityType]string{ledger.EntityOrganisation: "organisation"}},
		nil)
	doc, err := snapshot.ParseJSON([]byte(`{"name":"` + name + `"}`))
	require.NoError(t, err)
	tx, err := b.Build(state, txn.Changeset{Entities: map[ledger.EntityType]*snapshot.Value{
		ledger.EntityOrganisation: &doc,
	}})
	require.NoError(t, err)
	return tx
}

func TestSubmit_InsertGuardRejectsExistingLedger(t *testing.T) {
	store := NewMemoryStore()
	first := build(t, ledger.New("rec-1"), "A")
	second := build(t, ledger.New("rec-1"), "B")

	require.NoError(t, store.Submit(context.Background(), first))
	err := store.Submit(context.Background(), second)
	assert.True(t, dserrors.HasCode(err, dserrors.CodeOptimisticLock))
	require.Len(t, store.Submitted(), 1)
}

func TestSubmit_UpdateGuardChecksVersion(t *testing.T) {
	store := NewMemoryStore()
	first := build(t, ledger.New("rec-1"), "A")
	require.NoError(t, store.Submit(context.Background(), first))

	winner := build(t, first.Next, "B")
	loser := build(t, first.Next, "C")
	require.NoError(t, store.Submit(context.Background(), winner))

	err := store.Submit(context.Background(), loser)
	assert.True(t, dserrors.HasCode(err, dserrors.CodeOptimisticLock))

	state, err := store.Load(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.Version())
}

func TestSubmit_UpdateGuardRejectsMissingLedger(t *testing.T) {
	store := NewMemoryStore()
	seeded := build(t, ledger.New("rec-1"), "A")

	err := store.Submit(context.Background(), build(t, seeded.Next, "B"))
	assert.True(t, dserrors.HasCode(err, dserrors.CodeOptimisticLock))
}

func TestSubmit_UnguardedLedgerWriteIsRejected(t *testing.T) {
	store := NewMemoryStore()
	tx := build(t, ledger.New("rec-1"), "A")
	tx.Items[len(tx.Items)-1].ConditionExpression = ""

	err := store.Submit(context.Background(), tx)
	assert.True(t, dserrors.HasCode(err, dserrors.CodeTransactionFailed))
	assert.Empty(t, store.Submitted())
}
