// Package cli implements the migrate command line tool.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// Service is the part of the sync service the CLI drives.
type Service interface {
	Sync(ctx context.Context, cmd *commands.SyncRecordCommand) (*dto.SyncResult, error)
	Preview(ctx context.Context, cmd *commands.SyncRecordCommand) (*txn.Transaction, error)
	GetLedger(ctx context.Context, sourceRecordID string) (ledger.State, error)
}

// Runtime is what a command needs once the application is wired.
type Runtime struct {
	Service     Service
	Concurrency int
	Logger      *zap.Logger
}

// Opener wires the application on demand, so --help and flag errors never
// touch AWS. The returned func releases resources.
type Opener func(ctx context.Context) (*Runtime, func(), error)

// NewRootCommand builds the command tree.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Synchronise legacy DoS records into the target data store",
		Long: `migrate applies source record changesets to the target DynamoDB tables.

Each input record is a JSON object with a sourceRecordId, the current snapshot
of every derived entity and any validation issues found while transforming it.
Unchanged records produce no writes; changed records are written in a single
transaction guarded by the record's ledger version.`,
		SilenceUsage: true,
	}

	root.AddCommand(newSyncCommand(open))
	root.AddCommand(newDiffCommand(open))
	root.AddCommand(newLedgerCommand(open))
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
