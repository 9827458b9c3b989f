// Package dto holds the read models returned by the application services.
package dto

import (
	"time"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
)

// SyncOutcome summarises what a sync did.
type SyncOutcome string

const (
	OutcomeCommitted SyncOutcome = "committed"
	OutcomeNoop      SyncOutcome = "noop"
)

// SyncResult reports one completed sync.
type SyncResult struct {
	SourceRecordID string              `json:"sourceRecordId"`
	Outcome        SyncOutcome         `json:"outcome"`
	Version        int64               `json:"version"`
	Attempts       int                 `json:"attempts"`
	WriteItems     int                 `json:"writeItems"`
	EntityTypes    []ledger.EntityType `json:"entityTypes,omitempty"`
	EventPublished bool                `json:"eventPublished"`
}

// LedgerView is the JSON form of a ledger entry.
type LedgerView struct {
	SourceRecordID       string                `json:"sourceRecordId"`
	Version              int64                 `json:"version"`
	Entities             map[string]EntityView `json:"entities"`
	ValidationIssues     []ledger.Issue        `json:"validationIssues"`
	CreatedDateTime      *time.Time            `json:"createdDateTime,omitempty"`
	LastModifiedDateTime *time.Time            `json:"lastModifiedDateTime,omitempty"`
}

// EntityView is one migrated entity inside a LedgerView.
type EntityView struct {
	ID       string         `json:"id"`
	Snapshot snapshot.Value `json:"snapshot"`
}

// ToLedgerView converts a ledger state.
func ToLedgerView(state ledger.State) LedgerView {
	view := LedgerView{
		SourceRecordID:   state.SourceRecordID(),
		Version:          state.Version(),
		Entities:         make(map[string]EntityView, state.EntityCount()),
		ValidationIssues: state.ValidationIssues(),
	}
	if view.ValidationIssues == nil {
		view.ValidationIssues = []ledger.Issue{}
	}
	for t, rec := range state.Entities() {
		view.Entities[string(t)] = EntityView{ID: rec.ID, Snapshot: rec.Snapshot}
	}
	if at := state.CreatedAt(); !at.IsZero() {
		view.CreatedDateTime = &at
	}
	if at := state.LastModifiedAt(); !at.IsZero() {
		view.LastModifiedDateTime = &at
	}
	return view
}
