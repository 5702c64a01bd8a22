package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

const outputFlag = "output"

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Transaction ledger",
}

var transactionsExportCmd = &cobra.Command{
	Use:   "export <user-id>",
	Short: "Export a user's transactions as csv",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userId, err := parseId(args[0], "user")
		if err != nil {
			return err
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		var w io.Writer = os.Stdout
		if output, _ := cmd.Flags().GetString(outputFlag); output != "" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return s.transactions.ExportTransactionsCsv(cmd.Context(), userId, w)
	},
}

func init() {
	transactionsExportCmd.Flags().StringP(outputFlag, "o", "", "File to write to (stdout when empty)")

	transactionsCmd.AddCommand(transactionsExportCmd)
}
