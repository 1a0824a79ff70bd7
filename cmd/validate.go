// =============================================================================
// Invoice Audit - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which loads the configuration and
// the workbooks without auditing anything. Useful after editing the tariff
// workbook: a renamed sheet or a missing 'Zona' column shows up here instead
// of in the middle of a month-end run.
//
// COMMAND USAGE:
//   invoice-audit validate [--tariff tariffe.xlsx] [--volumes volumi.xlsx]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smarche/invoice-audit/internal/config"
	"github.com/smarche/invoice-audit/internal/reconcile"
	"github.com/smarche/invoice-audit/internal/tariff"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and workbooks without auditing",
	Long: `The validate command loads the configuration file, the tariff workbook and,
when configured, the volumes workbook, reporting any structural problem.
No PDF is read and no report is written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

// init registers the validate command with the root command.
func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(
		&tariffPath,
		"tariff",
		"",
		"Path to the tariff workbook (overrides the config file)",
	)

	validateCmd.Flags().StringVar(
		&volumesPath,
		"volumes",
		"",
		"Path to the volumes workbook (overrides the config file)",
	)
}

// runValidate checks that everything the audit needs can be loaded.
func runValidate() error {
	fmt.Println("=== Invoice Audit - Validation ===")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cfg)
	fmt.Printf("  ✓ configuration (%s)\n", cfgFile)

	if cfg.TariffPath == "" {
		return fmt.Errorf("no tariff workbook: use --tariff or set tariff_path in %s", cfgFile)
	}
	table, err := tariff.Load(cfg.TariffPath, specialRule(cfg))
	if err != nil {
		return fmt.Errorf("tariff workbook: %w", err)
	}
	fmt.Printf("  ✓ tariff workbook (%s): FR=%d UK=%d DE=%d BE=%d CH=%d zones\n",
		cfg.TariffPath, len(table.FR), len(table.UK), len(table.DE), len(table.BE), len(table.CH))

	if cfg.VolumesPath == "" {
		fmt.Println("  - volumes workbook not configured, France cross-check disabled")
		return nil
	}

	loader := reconcile.NewLoader()
	loader.HeaderRow = cfg.VolumesHeaderRow - 1
	loader.ScanRows = cfg.VolumesScanRows
	index, err := loader.Load(cfg.VolumesPath)
	if err != nil {
		return fmt.Errorf("volumes workbook: %w", err)
	}
	fmt.Printf("  ✓ volumes workbook (%s): %d DDT, %d invoices\n",
		cfg.VolumesPath, len(index.ByDDT), len(index.ByInvoice))

	return nil
}
