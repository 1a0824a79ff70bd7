// =============================================================================
// Invoice Audit - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'audit', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoice-audit)
//   ├── auditCmd (invoice-audit audit)
//   ├── validateCmd (invoice-audit validate)
//   └── versionCmd (invoice-audit version)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables verbose output when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "invoice-audit",

	Short: "Invoice Audit - Check freight invoices against the tariff tables",

	Long: `Invoice Audit reads the carrier's freight invoices (PDF), rebuilds the
shipment lines and checks them against the agreed tariff workbook.

Key Features:
  - Parses Carico/Scarico blocks, transport and reservation lines from the PDF
  - Resolves destination country, postal code and tariff zone
  - Detects shipments billed together and validates the combined price
  - Cross-checks France volumes against the internal volumes workbook
  - Produces a color-coded Excel report

Example Usage:
  invoice-audit audit --tariff tariffe.xlsx fattura.pdf
  invoice-audit audit --tariff tariffe.xlsx --volumes volumi.xlsx *.pdf
  invoice-audit validate --tariff tariffe.xlsx`,

	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print the help message.
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// --config flag: Allows the user to specify a custom configuration file.
	// Default is "config.yaml" in the current directory.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file (default is config.yaml)",
	)

	// --verbose flag: Enables verbose output.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
