// =============================================================================
// ASIN Tax Reconciler - Main Entry Point
// =============================================================================
//
// This is the main entry point for the reconciler CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   reconciler reconcile  - Merge an order report into the base dataset
//   reconciler sheets     - List the worksheets of a workbook
//   reconciler version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Loaders, reconciliation engine, writers, workbook layer
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/asin-tax-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
