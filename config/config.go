// Package config loads walscan's runtime configuration via viper, mirroring
// the layered config precedence (flags > env > file > defaults) used
// elsewhere in the liftbridge tooling.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/liftbridge-io/walscan/logtail"
)

// Config holds the settings walscan needs to run a tail scan.
type Config struct {
	// Dir is the directory containing WAL segment files.
	Dir string `mapstructure:"dir"`
	// Prefix is the segment filename prefix, e.g. "wal" for "wal.42".
	Prefix string `mapstructure:"prefix"`
	// ReportPath is where the JSON recovery report is written. Empty means
	// no report is written; only the one-line summary goes to stdout.
	ReportPath string `mapstructure:"report_path"`
	// MetricsAddr, if non-empty, serves Prometheus metrics on this address
	// while the scan runs.
	MetricsAddr string `mapstructure:"metrics_addr"`
	// Verbose enables debug-level logging.
	Verbose bool `mapstructure:"verbose"`
	// FormatVersion is the only segment Header FormatVersion the scanner
	// will accept; anything else aborts the scan as unreadable.
	FormatVersion uint8 `mapstructure:"format_version"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Prefix:        "wal",
		FormatVersion: logtail.CurrentFormatVersion,
	}
}

// Load reads configuration from the given file path (if non-empty) layered
// over environment variables prefixed WALSCAN_ and the defaults above.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("walscan")
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("dir", cfg.Dir)
	v.SetDefault("prefix", cfg.Prefix)
	v.SetDefault("report_path", cfg.ReportPath)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("format_version", cfg.FormatVersion)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	return out, nil
}
