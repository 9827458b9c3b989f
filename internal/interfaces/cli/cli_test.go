package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

var zeroTime time.Time

type mockService struct {
	mock.Mock
}

func (m *mockService) Sync(ctx context.Context, cmd *commands.SyncRecordCommand) (*dto.SyncResult, error) {
	args := m.Called(ctx, cmd)
	result, _ := args.Get(0).(*dto.SyncResult)
	return result, args.Error(1)
}

func (m *mockService) Preview(ctx context.Context, cmd *commands.SyncRecordCommand) (*txn.Transaction, error) {
	args := m.Called(ctx, cmd)
	tx, _ := args.Get(0).(*txn.Transaction)
	return tx, args.Error(1)
}

func (m *mockService) GetLedger(ctx context.Context, id string) (ledger.State, error) {
	args := m.Called(ctx, id)
	state, _ := args.Get(0).(ledger.State)
	return state, args.Error(1)
}

func opener(svc Service) (Opener, *int) {
	opened := 0
	return func(context.Context) (*Runtime, func(), error) {
		opened++
		return &Runtime{Service: svc, Concurrency: 4, Logger: zap.NewNop()}, func() {}, nil
	}, &opened
}

func execute(t *testing.T, open Opener, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand(open)
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func line(id, name string) string {
	return `{"sourceRecordId": "` + id + `", "entities": {"organisation": {"name": "` + name + `"}}}`
}

func recordID(id string) any {
	return mock.MatchedBy(func(cmd *commands.SyncRecordCommand) bool { return cmd.SourceRecordID == id })
}

func TestSync_Summary(t *testing.T) {
	svc := new(mockService)
	svc.On("Sync", mock.Anything, recordID("a")).
		Return(&dto.SyncResult{Outcome: dto.OutcomeCommitted, WriteItems: 2}, nil)
	svc.On("Sync", mock.Anything, recordID("b")).
		Return(&dto.SyncResult{Outcome: dto.OutcomeNoop}, nil)
	svc.On("Sync", mock.Anything, recordID("c")).
		Return(nil, dserrors.Validation(dserrors.CodeEntityDeletion, "deletion is not supported").Build())

	input := strings.Join([]string{line("a", "A"), "", line("b", "B"), "{broken", line("c", "C")}, "\n")
	open, _ := opener(svc)
	stdout, _, err := execute(t, open, input, "sync")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 4 records failed")

	var summary SyncSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, 1, summary.Committed)
	assert.Equal(t, 1, summary.Noop)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, summary.WriteItems)

	codes := map[int]string{}
	for _, f := range summary.Failures {
		codes[f.Line] = f.Code
	}
	assert.Equal(t, map[int]string{
		4: string(dserrors.CodeInvalidRequest),
		5: string(dserrors.CodeEntityDeletion),
	}, codes)
}

func TestSync_SameRecordAppliedInFileOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]string{}

	svc := new(mockService)
	svc.On("Sync", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cmd := args.Get(1).(*commands.SyncRecordCommand)
			cs, err := cmd.Changeset()
			assert.NoError(t, err)
			name, _ := cs.Entities[ledger.EntityOrganisation].Field("name")
			s, _ := name.AsString()
			mu.Lock()
			seen[cmd.SourceRecordID] = append(seen[cmd.SourceRecordID], s)
			mu.Unlock()
		}).
		Return(&dto.SyncResult{Outcome: dto.OutcomeCommitted, WriteItems: 1}, nil)

	var lines []string
	for _, name := range []string{"1", "2", "3", "4"} {
		lines = append(lines, line("x", name), line("y", name))
	}
	open, _ := opener(svc)
	_, _, err := execute(t, open, strings.Join(lines, "\n"), "sync", "--concurrency", "2")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4"}, seen["x"])
	assert.Equal(t, []string{"1", "2", "3", "4"}, seen["y"])
}

func TestDiff_PrintsPreview(t *testing.T) {
	svc := new(mockService)
	svc.On("Preview", mock.Anything, recordID("a")).Return(&txn.Transaction{
		SourceRecordID: "a",
		Next:           ledger.Restore("a", 1, nil, nil, zeroTime, zeroTime),
		Items: []txn.WriteItem{{
			Type:       txn.OperationTypePut,
			TableName:  "organisation",
			EntityType: ledger.EntityOrganisation,
		}},
	}, nil)

	open, _ := opener(svc)
	stdout, _, err := execute(t, open, line("a", "A"), "diff")
	require.NoError(t, err)

	var view dto.PreviewView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, int64(1), view.TargetVersion)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "PUT", view.Items[0].Operation)
	svc.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
}

func TestLedgerGet(t *testing.T) {
	svc := new(mockService)
	svc.On("GetLedger", mock.Anything, "a").Return(ledger.Restore("a", 3, nil, nil, zeroTime, zeroTime), nil)

	open, _ := opener(svc)
	stdout, _, err := execute(t, open, "", "ledger", "get", "a")
	require.NoError(t, err)

	var view dto.LedgerView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "a", view.SourceRecordID)
	assert.Equal(t, int64(3), view.Version)
}

func TestLedgerGet_NotFound(t *testing.T) {
	svc := new(mockService)
	svc.On("GetLedger", mock.Anything, "missing").
		Return(nil, dserrors.NotFound(dserrors.CodeLedgerNotFound, "no ledger entry for source record").Build())

	open, _ := opener(svc)
	_, _, err := execute(t, open, "", "ledger", "get", "missing")
	assert.True(t, dserrors.HasCode(err, dserrors.CodeLedgerNotFound))
}

func TestHelpDoesNotOpen(t *testing.T) {
	open, opened := opener(new(mockService))
	_, _, err := execute(t, open, "", "sync", "--help")
	require.NoError(t, err)
	assert.Zero(t, *opened)
}
