package rest

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// maxPreviewBody bounds preview request bodies.
const maxPreviewBody = 1 << 20

// LedgerService is what the handler needs from the sync service.
type LedgerService interface {
	GetLedger(ctx context.Context, sourceRecordID string) (ledger.State, error)
	Preview(ctx context.Context, cmd *commands.SyncRecordCommand) (*txn.Transaction, error)
}

// LedgerHandler serves ledger lookups and sync previews.
type LedgerHandler struct {
	service LedgerService
	logger  *zap.Logger
}

// NewLedgerHandler creates a handler.
func NewLedgerHandler(service LedgerService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{service: service, logger: logger}
}

// GetLedger handles GET /api/v1/ledger/{sourceRecordId}.
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceRecordId")

	state, err := h.service.GetLedger(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToLedgerView(state))
}

// Preview handles POST /api/v1/sync/preview.
func (h *LedgerHandler) Preview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPreviewBody))
	if err != nil {
		writeError(w, r, h.logger, dserrors.Validation(dserrors.CodeInvalidRequest, "failed to read request body").WithCause(err).Build())
		return
	}
	cmd, err := commands.ParseSyncRecordCommand(body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.service.Preview(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := dto.ToPreviewView(tx)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
