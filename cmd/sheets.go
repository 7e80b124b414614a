// =============================================================================
// ASIN Tax Reconciler - Sheets Command
// =============================================================================
//
// This file defines the 'sheets' command, which lists the worksheet names of
// a workbook, one per line, without modifying it. Useful to pick --sheet.
//
// COMMAND USAGE:
//   reconciler sheets <workbook.xlsx>
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/xlsxparser"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets <workbook>",
	Short: "List the worksheets of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !xlsxparser.IsWorkbook(args[0]) {
			return fmt.Errorf("not a workbook: %s", args[0])
		}
		names, err := xlsxparser.ListSheets(args[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
}
