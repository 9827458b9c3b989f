// Package mocks provides in-memory implementations of the repository ports for
// tests and dry runs.
package mocks

import (
	"context"
	"sync"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// MemoryStore keeps ledger states in memory. A transaction commits only when
// the condition expression on its ledger write holds against the stored entry.
type MemoryStore struct {
	mu sync.RWMutex

	ledgers   map[string]ledger.State
	submitted []*txn.Transaction
	events    []repository.RecordSynced

	// For testing error scenarios
	shouldFailOn map[string]error
	// beforeSubmit runs inside Submit before the guard is checked.
	beforeSubmit func(tx *txn.Transaction)
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers:      make(map[string]ledger.State),
		shouldFailOn: make(map[string]error),
	}
}

// SetError configures the store to fail a method ("Load", "Submit", "Publish").
func (m *MemoryStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (m *MemoryStore) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn = make(map[string]error)
}

// OnSubmit installs a hook run at the start of every Submit.
func (m *MemoryStore) OnSubmit(hook func(tx *txn.Transaction)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeSubmit = hook
}

// Put seeds a ledger state.
func (m *MemoryStore) Put(state ledger.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[state.SourceRecordID()] = state
}

// Load implements repository.LedgerReader.
func (m *MemoryStore) Load(ctx context.Context, sourceRecordID string) (ledger.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.shouldFailOn["Load"]; err != nil {
		return ledger.State{}, err
	}
	if state, ok := m.ledgers[sourceRecordID]; ok {
		return state, nil
	}
	return ledger.New(sourceRecordID), nil
}

// Submit implements repository.TransactionSubmitter.
func (m *MemoryStore) Submit(ctx context.Context, tx *txn.Transaction) error {
	m.mu.RLock()
	hook := m.beforeSubmit
	m.mu.RUnlock()
	if hook != nil {
		hook(tx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.shouldFailOn["Submit"]; err != nil {
		return err
	}
	if tx.IsEmpty() {
		return nil
	}

	ledgerItem, ok := ledgerWrite(tx)
	if !ok {
		return dserrors.Internal(dserrors.CodeTransactionFailed, "transaction has no ledger write").
			WithResource(tx.SourceRecordID).
			Build()
	}
	stored, exists := m.ledgers[tx.SourceRecordID]
	passed, err := checkLedgerGuard(ledgerItem, stored, exists)
	if err != nil {
		return err
	}
	if !passed {
		return dserrors.Conflict(dserrors.CodeOptimisticLock, "ledger version guard failed").
			WithResource(tx.SourceRecordID).
			Build()
	}

	m.ledgers[tx.SourceRecordID] = tx.Next
	m.submitted = append(m.submitted, tx)
	return nil
}

func ledgerWrite(tx *txn.Transaction) (txn.WriteItem, bool) {
	for _, item := range tx.Items {
		if item.IsLedger() {
			return item, true
		}
	}
	return txn.WriteItem{}, false
}

// PublishRecordSynced implements repository.EventPublisher.
func (m *MemoryStore) PublishRecordSynced(ctx context.Context, event repository.RecordSynced) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.shouldFailOn["Publish"]; err != nil {
		return err
	}
	m.events = append(m.events, event)
	return nil
}

// Submitted returns every committed transaction in commit order.
func (m *MemoryStore) Submitted() []*txn.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*txn.Transaction, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// Events returns every published event.
func (m *MemoryStore) Events() []repository.RecordSynced {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repository.RecordSynced, len(m.events))
	copy(out, m.events)
	return out
}

var (
	_ repository.LedgerReader         = (*MemoryStore)(nil)
	_ repository.TransactionSubmitter = (*MemoryStore)(nil)
	_ repository.EventPublisher       = (*MemoryStore)(nil)
)
