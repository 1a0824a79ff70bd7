// =============================================================================
// Invoice Audit - File Utilities
// =============================================================================
//
// Small file helpers shared by the CLI and the report writer: directory
// creation and output-name resolution. Report names support placeholders so
// repeated runs never clobber each other:
//   {uuid}      - a random UUID
//   {timestamp} - current timestamp (YYYYMMDD_HHMMSS)
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnsureDir creates the directory for the given file path if it is missing.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ResolveOutputName expands the {uuid} and {timestamp} placeholders in an
// output file pattern. A pattern without placeholders is returned unchanged.
func ResolveOutputName(pattern string) string {
	name := pattern
	if strings.Contains(name, "{uuid}") {
		name = strings.ReplaceAll(name, "{uuid}", uuid.New().String())
	}
	if strings.Contains(name, "{timestamp}") {
		name = strings.ReplaceAll(name, "{timestamp}", time.Now().Format("20060102_150405"))
	}
	return name
}
