package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
)

func newDiffCommand(open Opener) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the transaction each record would submit, without writing",
		Args:  cobra.NoArgs,
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

			failed := 0
			for _, rec := range records {
				if rec.err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %v\n", rec.line, rec.err)
					continue
				}
				tx, err := rt.Service.Preview(cmd.Context(), rec.cmd)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "line %d (%s): %v\n", rec.line, rec.cmd.SourceRecordID, err)
					continue
				}
				view, err := dto.ToPreviewView(tx)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), view); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d records could not be previewed", failed, len(records))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON Lines input file, - for stdin")
	return cmd
}
