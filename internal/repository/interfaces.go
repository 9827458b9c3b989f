// Package repository defines the ports the sync service depends on. The
// DynamoDB and EventBridge adapters implement them; tests use the in-memory
// store under mocks.
package repository

import (
	"context"
	"time"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// LedgerReader loads the ledger entry for a source record. A record that was
// never synced yields ledger.New(id) and no error.
type LedgerReader interface {
	Load(ctx context.Context, sourceRecordID string) (ledger.State, error)
}

// TransactionSubmitter applies a transaction atomically. A failed version or
// existence guard is reported as a retryable conflict.
type TransactionSubmitter interface {
	Submit(ctx context.Context, tx *txn.Transaction) error
}

// RecordSynced is published after a transaction commits.
type RecordSynced struct {
	SourceRecordID string              `json:"sourceRecordId"`
	Version        int64               `json:"version"`
	EntityTypes    []ledger.EntityType `json:"entityTypes"`
	SyncedAt       time.Time           `json:"syncedAt"`
}

// EventPublisher announces committed syncs to downstream consumers.
type EventPublisher interface {
	PublishRecordSynced(ctx context.Context, event RecordSynced) error
}

// NoopPublisher drops every event. It is used when events are disabled.
type NoopPublisher struct{}

// PublishRecordSynced implements EventPublisher.
func (NoopPublisher) PublishRecordSynced(context.Context, RecordSynced) error { return nil }
