// =============================================================================
// Invoice Audit - Audit Command
// =============================================================================
//
// This file defines the 'audit' command, the main command for checking one or
// more invoice PDFs against the tariff workbook.
//
// COMMAND USAGE:
//   invoice-audit audit [flags] <fattura.pdf> [fattura2.pdf ...]
//
// FLAGS:
//   --tariff     : Path to the tariff workbook (overrides the config file)
//   --volumes    : Path to the volumes workbook for the France cross-check
//   --output     : Path of the Excel report to write
//   --tolerance  : Absolute tolerance (€) for price comparisons
//
// PIPELINE:
//   1. Load the configuration and the tariff workbook
//   2. Parse every PDF into shipment records
//   3. Assign billing groups from the reservation prices
//   4. Validate prices and volumes, reconcile France volumes
//   5. Write the color-coded Excel report
//
// =============================================================================

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smarche/invoice-audit/internal/audit"
	"github.com/smarche/invoice-audit/internal/config"
	"github.com/smarche/invoice-audit/internal/report"
	"github.com/smarche/invoice-audit/internal/tariff"
	"github.com/smarche/invoice-audit/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// tariffPath is the tariff workbook path; overrides the config file.
var tariffPath string

// volumesPath is the volumes workbook path; overrides the config file.
var volumesPath string

// outputPath is the report path; empty resolves the configured pattern.
var outputPath string

// tolerance overrides the configured price tolerance when non-negative.
var tolerance float64

// =============================================================================
// AUDIT COMMAND DEFINITION
// =============================================================================

// auditCmd represents the 'audit' command.
var auditCmd = &cobra.Command{
	Use:   "audit <fattura.pdf> [fattura2.pdf ...]",
	Short: "Check invoice PDFs against the tariff workbook",
	Long: `The audit command parses one or more invoice PDFs, rebuilds the shipment
lines, assigns billing groups and checks every group against the tariff
workbook. When a volumes workbook is given, France shipments are also
cross-checked against it.

All invoices end up in a single Excel report. Rows with price or volume
problems are highlighted in red, informational notes in yellow.`,

	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAudit(args)
	},
}

// init registers the audit command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(
		&tariffPath,
		"tariff",
		"",
		"Path to the tariff workbook (overrides the config file)",
	)

	auditCmd.Flags().StringVar(
		&volumesPath,
		"volumes",
		"",
		"Path to the volumes workbook for the France volume cross-check",
	)

	auditCmd.Flags().StringVarP(
		&outputPath,
		"output",
		"o",
		"",
		"Path of the Excel report (default from the configured pattern)",
	)

	auditCmd.Flags().Float64Var(
		&tolerance,
		"tolerance",
		-1,
		"Absolute tolerance in € for price comparisons (overrides the config file)",
	)
}

// =============================================================================
// MAIN AUDIT FUNCTION
// =============================================================================

// runAudit orchestrates the audit pipeline.
func runAudit(pdfPaths []string) error {
	startTime := time.Now()

	fmt.Println("=== Invoice Audit ===")

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION AND TARIFF TABLE
	// =========================================================================

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cfg)

	if cfg.TariffPath == "" {
		return fmt.Errorf("no tariff workbook: use --tariff or set tariff_path in %s", cfgFile)
	}

	if verbose {
		fmt.Printf("Tariff workbook:  %s\n", cfg.TariffPath)
		if cfg.VolumesPath != "" {
			fmt.Printf("Volumes workbook: %s\n", cfg.VolumesPath)
		}
	}

	table, err := tariff.Load(cfg.TariffPath, specialRule(cfg))
	if err != nil {
		return fmt.Errorf("failed to load tariff workbook: %w", err)
	}

	// =========================================================================
	// STEP 2: RUN THE AUDIT
	// =========================================================================

	engine := newEngine(table, cfg)

	fmt.Printf("Auditing %d invoice(s)...\n", len(pdfPaths))
	result, err := engine.Run(pdfPaths)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 3: WRITE THE REPORT
	// =========================================================================

	out := outputPath
	if out == "" {
		out = utils.ResolveOutputName(cfg.OutputPattern)
	}

	writer := report.NewWriter()
	writer.SheetName = cfg.SheetName
	if err := writer.Write(out, result.Summary, result.Rows, result.Multi); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// =========================================================================
	// STEP 4: PRINT SUMMARY
	// =========================================================================

	flagged := 0
	for i := range result.Rows {
		if result.Rows[i].HasError || result.Rows[i].HasFranceError {
			flagged++
		}
	}

	fmt.Println("\n=== Audit Complete ===")
	fmt.Printf("Shipments:     %d\n", len(result.Rows))
	fmt.Printf("Flagged rows:  %d\n", flagged)
	fmt.Printf("Report:        %s\n", out)
	fmt.Printf("Time elapsed:  %s\n", time.Since(startTime))
	fmt.Println()
	fmt.Println(result.Summary)

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// applyFlagOverrides lets command-line flags win over the config file.
func applyFlagOverrides(cfg *config.Config) {
	if tariffPath != "" {
		cfg.TariffPath = tariffPath
	}
	if volumesPath != "" {
		cfg.VolumesPath = volumesPath
	}
	if tolerance >= 0 {
		cfg.Tolerance = tolerance
	}
}

// specialRule maps the configured client override onto the tariff rule,
// falling back to the built-in one.
func specialRule(cfg *config.Config) tariff.SpecialRule {
	if cfg.Special == nil {
		return tariff.DefaultSpecialRule()
	}
	return tariff.SpecialRule{
		ClientName:      cfg.Special.Client,
		ClientContains:  cfg.Special.Client,
		DestContainsAll: cfg.Special.DestContains,
		Rate:            cfg.Special.Rate,
		VolumeOver:      cfg.Special.VolumeOver,
	}
}

// newEngine wires the audit engine from the configuration.
func newEngine(table *tariff.Table, cfg *config.Config) *audit.Engine {
	engine := audit.New(table)
	engine.Validator.Tolerance = cfg.Tolerance
	engine.Merger.PriceTolerance = cfg.Merge.PriceTolerance
	engine.Merger.ReconstructTolerance = cfg.Merge.ReconstructTolerance
	engine.VolumesPath = cfg.VolumesPath
	engine.VolumesLoader.HeaderRow = cfg.VolumesHeaderRow - 1
	engine.VolumesLoader.ScanRows = cfg.VolumesScanRows
	return engine
}
