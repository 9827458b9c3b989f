package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// LedgerRepository reads ledger entries from the ledger table.
type LedgerRepository struct {
	client Client
	table  string
	logger *zap.Logger
}

// NewLedgerRepository creates a repository over table.
func NewLedgerRepository(client Client, table string, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{client: client, table: table, logger: logger}
}

// Load reads the entry with a strongly consistent read so that the version
// it returns is the one the guard will compare against.
func (r *LedgerRepository) Load(ctx context.Context, sourceRecordID string) (ledger.State, error) {
	if sourceRecordID == "" {
		return ledger.State{}, dserrors.Validation(dserrors.CodeMissingSourceRecordID, "source record id is required").Build()
	}

	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			txn.AttrSourceRecordID: &types.AttributeValueMemberS{Value: sourceRecordID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return ledger.State{}, mapError(err, "LoadLedger", sourceRecordID)
	}
	if len(out.Item) == 0 {
		r.logger.Debug("no ledger entry", zap.String("source_record_id", sourceRecordID))
		return ledger.New(sourceRecordID), nil
	}

	state, err := txn.DecodeLedger(out.Item)
	if err != nil {
		return ledger.State{}, err
	}
	if state.SourceRecordID() != sourceRecordID {
		return ledger.State{}, dserrors.Internal(dserrors.CodeLedgerCorrupt, "ledger item key does not match its source record id").
			WithResource(sourceRecordID).
			Build()
	}
	return state, nil
}

var _ repository.LedgerReader = (*LedgerRepository)(nil)
