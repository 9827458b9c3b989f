package cli

import (
	"github.com/spf13/cobra"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/dto"
)

func newLedgerCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect migration ledger entries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <sourceRecordId>",
		Short: "Print the ledger entry for a source record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			state, err := rt.Service.GetLedger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.ToLedgerView(state))
		},
	})
	return cmd
}
