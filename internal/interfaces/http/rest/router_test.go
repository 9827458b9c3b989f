package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/snapshot"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/observability"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

type mockLedgerService struct {
	mock.Mock
}

func (m *mockLedgerService) GetLedger(ctx context.Context, id string) (ledger.State, error) {
	args := m.Called(ctx, id)
	state, _ := args.Get(0).(ledger.State)
	return state, args.Error(1)
}

func (m *mockLedgerService) Preview(ctx context.Context, cmd *commands.SyncRecordCommand) (*txn.Transaction, error) {
	args := m.Called(ctx, cmd)
	tx, _ := args.Get(0).(*txn.Transaction)
	return tx, args.Error(1)
}

func newTestRouter(svc LedgerService) http.Handler {
	logger := zap.NewNop()
	return NewRouter(NewLedgerHandler(svc, logger), observability.NewCollector("test"), "test", time.Second, logger).Setup()
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(new(mockLedgerService)), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(new(mockLedgerService))
	serve(h, http.MethodGet, "/health", "")

	rec := serve(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestGetLedger(t *testing.T) {
	svc := new(mockLedgerService)
	state := ledger.Restore("rec-1", 2, map[ledger.EntityType]ledger.EntityRecord{
		ledger.EntityOrganisation: {
			ID:       "org-1",
			Snapshot: snapshot.Map(map[string]snapshot.Value{"name": snapshot.String("A")}),
		},
	}, nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	svc.On("GetLedger", mock.Anything, "rec-1").Return(state, nil)

	rec := serve(newTestRouter(svc), http.MethodGet, "/api/v1/ledger/rec-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rec-1", body["sourceRecordId"])
	assert.Equal(t, 2.0, body["version"])
	assert.Equal(t, []any{}, body["validationIssues"])
	org := body["entities"].(map[string]any)["organisation"].(map[string]any)
	assert.Equal(t, "org-1", org["id"])
	assert.Equal(t, map[string]any{"name": "A"}, org["snapshot"])
}

func TestGetLedger_NotFound(t *testing.T) {
	svc := new(mockLedgerService)
	svc.On("GetLedger", mock.Anything, "missing").
		Return(nil, dserrors.NotFound(dserrors.CodeLedgerNotFound, "no ledger entry for source record").Build())

	rec := serve(newTestRouter(svc), http.MethodGet, "/api/v1/ledger/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, string(dserrors.CodeLedgerNotFound), problem.Code)
	assert.Equal(t, "/api/v1/ledger/missing", problem.Path)
}

func TestGetLedger_InternalErrorHidesDetail(t *testing.T) {
	svc := new(mockLedgerService)
	svc.On("GetLedger", mock.Anything, "rec-1").
		Return(nil, dserrors.Internal(dserrors.CodeLedgerCorrupt, "ledger item has an invalid timestamp").Build())

	rec := serve(newTestRouter(svc), http.MethodGet, "/api/v1/ledger/rec-1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var problem Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Empty(t, problem.Detail)
}

func TestPreview(t *testing.T) {
	svc := new(mockLedgerService)
	tx := &txn.Transaction{
		SourceRecordID:  "rec-1",
		ExpectedVersion: 1,
		Items: []txn.WriteItem{{
			Type:                      txn.OperationTypeUpdate,
			TableName:                 "organisation",
			EntityType:                ledger.EntityOrganisation,
			UpdateExpression:          "SET #attr_name = :val_0",
			ExpressionAttributeNames:  map[string]string{"#attr_name": "name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":val_0": &types.AttributeValueMemberS{Value: "B"}},
		}},
		Next: ledger.Restore("rec-1", 2, nil, nil, time.Time{}, time.Time{}),
	}
	svc.On("Preview", mock.Anything, mock.MatchedBy(func(cmd *commands.SyncRecordCommand) bool {
		return cmd.SourceRecordID == "rec-1"
	})).Return(tx, nil)

	rec := serve(newTestRouter(svc), http.MethodPost, "/api/v1/sync/preview",
		`{"sourceRecordId": "rec-1", "entities": {"organisation": {"name": "B"}}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var view dto.PreviewView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, int64(2), view.TargetVersion)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "SET #attr_name = :val_0", view.Items[0].UpdateExpression)
	assert.JSONEq(t, `{"S":"B"}`, string(view.Items[0].ExpressionAttributeValues[":val_0"]))
}

func TestPreview_InvalidBody(t *testing.T) {
	svc := new(mockLedgerService)
	rec := serve(newTestRouter(svc), http.MethodPost, "/api/v1/sync/preview", `{"entities": {}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertNotCalled(t, "Preview", mock.Anything, mock.Anything)
}
