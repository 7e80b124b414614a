package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override,
// e.g. RECONCILER_WORKBOOK_SHEET.
const EnvPrefix = "RECONCILER"

// NewViper returns a Viper instance reading RECONCILER_* variables.
// The .env and .env.local files in the working directory are loaded first
// when present; variables already set in the environment are not replaced.
func NewViper() *viper.Viper {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v (by environment or bound flag)
// onto the configuration, then re-validates it.
func (c *Config) ApplyOverrides(v *viper.Viper) error {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			if s := v.GetString(key); s != "" {
				*dst = s
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("columns.identifier", &c.Columns.Identifier)
	str("columns.tax_status", &c.Columns.TaxStatus)
	str("columns.tax_amount", &c.Columns.TaxAmount)
	str("columns.order_status", &c.Columns.OrderStatus)
	str("columns.sku", &c.Columns.SKU)

	str("workbook.sheet", &c.Workbook.Sheet)
	boolean("workbook.host_automation", &c.Workbook.HostAutomation)
	boolean("workbook.force_resave", &c.Workbook.ForceResave)
	boolean("workbook.verify", &c.Workbook.Verify)
	str("workbook.shell", &c.Workbook.Shell)
	str("workbook.log_dir", &c.Workbook.LogDir)
	if v.IsSet("workbook.patch_container") {
		enabled := v.GetBool("workbook.patch_container")
		c.Workbook.PatchContainer = &enabled
	}
	if v.IsSet("workbook.timeout") {
		if d := v.GetDuration("workbook.timeout"); d > 0 {
			c.Workbook.Timeout = d
		}
	}

	str("output.preview_delimiter", &c.Output.PreviewDelimiter)
	str("logging.level", &c.Logging.Level)
	str("logging.format", &c.Logging.Format)

	return c.Validate()
}
