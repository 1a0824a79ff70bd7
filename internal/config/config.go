// =============================================================================
// Invoice Audit - Configuration Module
// =============================================================================
//
// This module loads and manages the application configuration: file
// locations, comparison tolerances and the special client tariff rule.
//
// The configuration is optional. When no config file exists the engine runs
// on the built-in defaults, which match the carrier's current invoices; the
// file exists so that tolerances and workbook layout can be adjusted without
// a rebuild.
//
// =============================================================================

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration, loaded from config.yaml.
type Config struct {
	// =========================================================================
	// FILE LOCATIONS
	// =========================================================================

	// TariffPath is the tariff workbook (one sheet per country).
	TariffPath string `yaml:"tariff_path"`

	// VolumesPath is the volume-reconciliation workbook (ex "FATTURE
	// FRANCIA"). Empty disables the France volume cross-check.
	VolumesPath string `yaml:"volumes_path"`

	// OutputPattern defines the report file name. Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	// Default: "report_{timestamp}.xlsx"
	OutputPattern string `yaml:"output_pattern"`

	// =========================================================================
	// CHECK SETTINGS
	// =========================================================================

	// Tolerance is the absolute tolerance (€) for every price comparison.
	// Default: 0.01
	Tolerance float64 `yaml:"tolerance"`

	// Merge tunes the reservation-price grouping heuristic.
	Merge MergeConfig `yaml:"merge"`

	// Special is the client-specific tariff override. When unset, the
	// built-in rule is used.
	Special *SpecialConfig `yaml:"special"`

	// =========================================================================
	// VOLUMES WORKBOOK LAYOUT
	// =========================================================================

	// VolumesHeaderRow is the 1-based row of the workbook header.
	// Default: 8
	VolumesHeaderRow int `yaml:"volumes_header_row"`

	// VolumesScanRows is how many rows are scanned when the header is not on
	// the configured row. Default: 25
	VolumesScanRows int `yaml:"volumes_scan_rows"`

	// =========================================================================
	// REPORT SETTINGS
	// =========================================================================

	// SheetName is the report's sheet name. Default: "Controllo"
	SheetName string `yaml:"sheet_name"`
}

// MergeConfig tunes how reservation prices map to expected group sizes.
type MergeConfig struct {
	// PriceTolerance is the ± tolerance against the known price table
	// (2,00 / 1,00 / 0,66 / 0,50). Default: 0.02
	PriceTolerance float64 `yaml:"price_tolerance"`

	// ReconstructTolerance is the ± tolerance accepted when reconstructing
	// the count as round(2 / price). Default: 0.03
	ReconstructTolerance float64 `yaml:"reconstruct_tolerance"`
}

// SpecialConfig is a client-specific flat rate applied above a volume
// threshold, regardless of zone.
type SpecialConfig struct {
	// Client is the client name that triggers the rule (matched
	// case-insensitively as a substring).
	Client string `yaml:"client"`

	// DestContains are substrings that must all appear in the destination
	// address as an alternative trigger.
	DestContains []string `yaml:"dest_contains"`

	// Rate is the flat €/m³ applied when the rule triggers.
	Rate float64 `yaml:"rate"`

	// VolumeOver is the volume threshold (m³, exclusive) for the rule.
	VolumeOver float64 `yaml:"volume_over"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from a YAML file. A missing file is not an
// error: the defaults are returned so the tool runs without any setup.
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&config)
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *Config) {
	if config.OutputPattern == "" {
		config.OutputPattern = "report_{timestamp}.xlsx"
	}
	if config.Tolerance == 0 {
		config.Tolerance = 0.01
	}
	if config.Merge.PriceTolerance == 0 {
		config.Merge.PriceTolerance = 0.02
	}
	if config.Merge.ReconstructTolerance == 0 {
		config.Merge.ReconstructTolerance = 0.03
	}
	if config.VolumesHeaderRow == 0 {
		config.VolumesHeaderRow = 8
	}
	if config.VolumesScanRows == 0 {
		config.VolumesScanRows = 25
	}
	if config.SheetName == "" {
		config.SheetName = "Controllo"
	}
}

// validate rejects configurations the engine cannot run with.
func validate(config *Config) error {
	if config.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	if config.VolumesHeaderRow < 1 {
		return fmt.Errorf("volumes_header_row must be at least 1")
	}
	if config.Special != nil {
		if config.Special.Client == "" && len(config.Special.DestContains) == 0 {
			return fmt.Errorf("special rule needs a client name or destination match")
		}
		if config.Special.Rate <= 0 {
			return fmt.Errorf("special rule rate must be positive")
		}
	}
	return nil
}
