package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

// SyncSummary reports a bulk run.
type SyncSummary struct {
	Records    int           `json:"records"`
	Committed  int           `json:"committed"`
	Noop       int           `json:"noop"`
	Failed     int           `json:"failed"`
	WriteItems int           `json:"writeItems"`
	Failures   []SyncFailure `json:"failures,omitempty"`
}

// SyncFailure is one record that could not be synced.
type SyncFailure struct {
	Line           int    `json:"line"`
	SourceRecordID string `json:"sourceRecordId,omitempty"`
	Code           string `json:"code"`
	Error          string `json:"error"`
}

func newSyncCommand(open Opener) *cobra.Command {
	var (
		file        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync records from a JSON Lines file",
		Long: `Sync reads one sync request per line and applies each to the target store.

Records with different source record ids are synced in parallel. Lines for the
same source record are applied in file order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, closeInput, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer closeInput()

			records, err := readRecords(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			rt, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if concurrency <= 0 {
				concurrency = rt.Concurrency
			}
			summary := runSync(cmd.Context(), rt, records, concurrency)
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d records failed", summary.Failed, summary.Records)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON Lines input file, - for stdin")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "records synced in parallel (default from config)")
	return cmd
}

// runSync groups records by source record id and syncs the groups in
// parallel, at most concurrency at a time.
func runSync(ctx context.Context, rt *Runtime, records []record, concurrency int) SyncSummary {
	if concurrency < 1 {
		concurrency = 1
	}

	summary := SyncSummary{Records: len(records)}
	var mu sync.Mutex
	fail := func(rec record, err error) {
		mu.Lock()
		defer mu.Unlock()
		f := SyncFailure{Line: rec.line, Code: dserrors.CodeOf(err), Error: err.Error()}
		if rec.cmd != nil {
			f.SourceRecordID = rec.cmd.SourceRecordID
		}
		summary.Failed++
		summary.Failures = append(summary.Failures, f)
	}

	var groups [][]record
	index := make(map[string]int)
	for _, rec := range records {
		if rec.err != nil {
			fail(rec, rec.err)
			continue
		}
		i, ok := index[rec.cmd.SourceRecordID]
		if !ok {
			i = len(groups)
			index[rec.cmd.SourceRecordID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], rec)
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for gi, group := range groups {
		if err := sem.Acquire(gctx, 1); err != nil {
			for _, rest := range groups[gi:] {
				for _, rec := range rest {
					fail(rec, err)
				}
			}
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			for _, rec := range group {
				result, err := rt.Service.Sync(gctx, rec.cmd)
				if err != nil {
					rt.Logger.Warn("record failed",
						zap.Int("line", rec.line),
						zap.String("source_record_id", rec.cmd.SourceRecordID),
						zap.Error(err))
					fail(rec, err)
					continue
				}
				mu.Lock()
				tally(&summary, result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return summary
}

func tally(summary *SyncSummary, result *dto.SyncResult) {
	switch result.Outcome {
	case dto.OutcomeCommitted:
		summary.Committed++
		summary.WriteItems += result.WriteItems
	case dto.OutcomeNoop:
		summary.Noop++
	}
}
