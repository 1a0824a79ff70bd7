// =============================================================================
// Invoice Audit - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Invoice Audit CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   invoice-audit audit      - Check invoice PDFs against the tariff workbook
//   invoice-audit validate   - Validate configuration and workbooks
//   invoice-audit version    - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : Contains all CLI command definitions (Cobra)
//   - internal/      : Contains core business logic (not for external import)
//   - pkg/           : Contains shared utilities
//
// =============================================================================

package main

import (
	"github.com/smarche/invoice-audit/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
