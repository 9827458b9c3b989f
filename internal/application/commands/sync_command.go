// Package commands holds the inputs of the sync use cases and their decoding
// from queue messages and JSONL lines.
package commands

import (
	"bytes"
	"encoding/json"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/validation"
)

// SyncRecordCommand asks for one source record to be brought up to date.
// A null entity means the transformer produced nothing for that type; for an
// entity already migrated it is a deletion request and is rejected.
type SyncRecordCommand struct {
	SourceRecordID   string                     `json:"sourceRecordId" validate:"required"`
	Entities         map[string]json.RawMessage `json:"entities" validate:"required"`
	ValidationIssues []ledger.Issue             `json:"validationIssues" validate:"dive"`
}

// ParseSyncRecordCommand decodes and validates a message body.
func ParseSyncRecordCommand(data []byte) (*SyncRecordCommand, error) {
	var cmd SyncRecordCommand
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&cmd); err != nil {
		return nil, dserrors.Validation(dserrors.CodeInvalidRequest, "malformed sync request").
			WithCause(err).
			Build()
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Validate checks required fields and issue shapes.
func (c *SyncRecordCommand) Validate() error {
	if err := validation.Default().Struct(c, dserrors.CodeInvalidRequest); err != nil {
		if ue, ok := err.(*dserrors.UnifiedError); ok && c.SourceRecordID != "" {
			ue.Resource = c.SourceRecordID
		}
		return err
	}
	return nil
}

// Changeset converts the command into the builder's input.
func (c *SyncRecordCommand) Changeset() (txn.Changeset, error) {
	cs := txn.Changeset{
		Entities:         make(map[ledger.EntityType]*snapshot.Value, len(c.Entities)),
		ValidationIssues: append([]ledger.Issue(nil), c.ValidationIssues...),
	}

	for raw, body := range c.Entities {
		t, err := ledger.ParseEntityType(raw)
		if err != nil {
			return txn.Changeset{}, dserrors.Validation(dserrors.CodeUnknownEntityType, "unknown entity type").
				WithResource(c.SourceRecordID).
				WithDetails(raw).
				Build()
		}

		v, err := snapshot.ParseJSON(body)
		if err != nil {
			return txn.Changeset{}, dserrors.Validation(dserrors.CodeInvalidSnapshot, "entity snapshot is not valid JSON").
				WithResource(c.SourceRecordID).
				WithDetails(raw).
				WithCause(err).
				Build()
		}
		if v.IsNull() {
			cs.Entities[t] = nil
			continue
		}
		cs.Entities[t] = &v
	}
	return cs, nil
}
