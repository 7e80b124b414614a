// =============================================================================
// ASIN Tax Reconciler - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Configuration comes from
// three layers, later layers overriding earlier ones:
//   1. Built-in defaults (applyDefaults)
//   2. The YAML file (reconciler.yaml by default, optional)
//   3. Environment variables and command flags, resolved through Viper
//      (see ApplyOverrides)
//
// EXAMPLE FILE:
//   columns:
//     identifier: asin
//     tax_status: iva
//     tax_amount: item-tax
//     order_status: order-status
//     sku: sku
//   workbook:
//     sheet: Sheet1
//     host_automation: false
//     patch_container: true
//     force_resave: false
//     verify: false
//     timeout: 5m
//   output:
//     preview_delimiter: ","
//   logging:
//     level: info
//     format: text
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	Columns  Columns        `yaml:"columns"`
	Workbook WorkbookConfig `yaml:"workbook"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Columns names the columns the loaders look up. Names are matched after
// header normalization, so "Item Tax", "item_tax" and "item-tax" are equal.
type Columns struct {
	// Identifier is the product identifier column (base and report).
	// Default: "asin"
	Identifier string `yaml:"identifier"`

	// TaxStatus is the flag column of the base.
	// Default: "iva"
	TaxStatus string `yaml:"tax_status"`

	// TaxAmount is the tax amount column of the report.
	// Default: "item-tax"
	TaxAmount string `yaml:"tax_amount"`

	// OrderStatus is the order status column of the report.
	// Default: "order-status"
	OrderStatus string `yaml:"order_status"`

	// SKU is an optional column copied into new records when both the base
	// and the report carry it. Set to "-" to disable.
	// Default: "sku"
	SKU string `yaml:"sku"`
}

// WorkbookConfig toggles the tiers of the workbook consistency layer.
type WorkbookConfig struct {
	// Sheet is the worksheet holding the base dataset.
	// Default: "Sheet1"
	Sheet string `yaml:"sheet"`

	// HostAutomation drives the spreadsheet application out-of-process.
	// Only honoured on Windows.
	HostAutomation bool `yaml:"host_automation"`

	// PatchContainer invalidates cached calculation state in the xlsx
	// package after a direct model write.
	// Default: true
	PatchContainer *bool `yaml:"patch_container"`

	// ForceResave runs one more open/save cycle through the host.
	ForceResave bool `yaml:"force_resave"`

	// Verify queries the last populated identifier row after writing.
	Verify bool `yaml:"verify"`

	// Timeout bounds every automation subprocess.
	// Default: 5m
	Timeout time.Duration `yaml:"timeout"`

	// Shell is the executable used for automation scripts.
	// Default: "powershell"
	Shell string `yaml:"shell"`

	// LogDir receives diagnostic logs of automation calls.
	// Default: the system temp directory.
	LogDir string `yaml:"log_dir"`
}

// OutputConfig controls the auxiliary artifacts.
type OutputConfig struct {
	// PreviewDelimiter is used for the preview of a workbook base.
	// Text bases always reuse their own delimiter.
	// Default: ","
	PreviewDelimiter string `yaml:"preview_delimiter"`

	// PreviewSuffix is appended to the base file stem for the default
	// preview path.
	// Default: "_new.csv"
	PreviewSuffix string `yaml:"preview_suffix"`

	// SummarySuffix is appended to the base file stem for the default
	// summary path.
	// Default: ".summary"
	SummarySuffix string `yaml:"summary_suffix"`
}

// LoggingConfig configures log/slog.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. A missing file is not
//     an error when allowMissing is true; defaults are returned instead.
//
// RETURNS:
//   - A pointer to the Config struct.
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string, allowMissing bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case allowMissing && errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Columns.Identifier == "" {
		cfg.Columns.Identifier = "asin"
	}
	if cfg.Columns.TaxStatus == "" {
		cfg.Columns.TaxStatus = "iva"
	}
	if cfg.Columns.TaxAmount == "" {
		cfg.Columns.TaxAmount = "item-tax"
	}
	if cfg.Columns.OrderStatus == "" {
		cfg.Columns.OrderStatus = "order-status"
	}
	if cfg.Columns.SKU == "" {
		cfg.Columns.SKU = "sku"
	}
	if cfg.Workbook.Sheet == "" {
		cfg.Workbook.Sheet = "Sheet1"
	}
	if cfg.Workbook.PatchContainer == nil {
		enabled := true
		cfg.Workbook.PatchContainer = &enabled
	}
	if cfg.Workbook.Timeout <= 0 {
		cfg.Workbook.Timeout = 5 * time.Minute
	}
	if cfg.Workbook.Shell == "" {
		cfg.Workbook.Shell = "powershell"
	}
	if cfg.Workbook.LogDir == "" {
		cfg.Workbook.LogDir = os.TempDir()
	}
	if cfg.Output.PreviewDelimiter == "" {
		cfg.Output.PreviewDelimiter = ","
	}
	if cfg.Output.PreviewSuffix == "" {
		cfg.Output.PreviewSuffix = "_new.csv"
	}
	if cfg.Output.SummarySuffix == "" {
		cfg.Output.SummarySuffix = ".summary"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks option values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Output.PreviewRune(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// PatchEnabled reports whether container patching is on.
func (w WorkbookConfig) PatchEnabled() bool {
	return w.PatchContainer == nil || *w.PatchContainer
}

// SKUColumn returns the configured SKU column, or "" when disabled.
func (c Columns) SKUColumn() string {
	if c.SKU == "-" {
		return ""
	}
	return c.SKU
}

// PreviewRune converts the preview delimiter setting to a rune.
// Accepts the characters themselves or the names tab, semicolon, comma, pipe.
func (o OutputConfig) PreviewRune() (rune, error) {
	switch strings.ToLower(o.PreviewDelimiter) {
	case "tab", "\\t", "\t":
		return '\t', nil
	case "semicolon", ";":
		return ';', nil
	case "comma", ",":
		return ',', nil
	case "pipe", "|":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported preview_delimiter %q", o.PreviewDelimiter)
}
