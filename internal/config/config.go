// Package config resolves runtime settings from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. COSTADVISOR_REGIONS
const EnvPrefix = "COSTADVISOR"

// Setting keys. Flags use the same names.
const (
	KeyRegions        = "regions"
	KeyIntent         = "intent"
	KeyRules          = "rules"
	KeyUser           = "user"
	KeyInput          = "input"
	KeyPreferencesDir = "preferences-dir"
	KeyHistoryFile    = "history-file"
	KeyPricingAPI     = "pricing-api"
	KeyPricingTimeout = "pricing-timeout"
	KeyTop            = "top"
	KeyOutput         = "output"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyConcurrency    = "concurrency"
	KeyMaxObjects     = "max-objects"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Config is the resolved runtime configuration
type Config struct {
	Regions        []string
	Intent         string
	RulesFile      string
	User           string
	InputFile      string
	PreferencesDir string
	HistoryFile    string
	PricingAPI     bool
	PricingTimeout time.Duration
	TopN           int
	Output         string
	LogLevel       string
	LogFormat      string
	Concurrency    int
	MaxObjects     int
}

// New returns a viper instance with defaults and environment binding
func New() *viper.Viper {
	v := viper.New()

	home := stateDir()
	v.SetDefault(KeyRegions, []string{"us-east-1"})
	v.SetDefault(KeyIntent, "all")
	v.SetDefault(KeyUser, "default")
	v.SetDefault(KeyPreferencesDir, filepath.Join(home, "preferences"))
	v.SetDefault(KeyHistoryFile, filepath.Join(home, "history.jsonl"))
	v.SetDefault(KeyPricingAPI, true)
	v.SetDefault(KeyPricingTimeout, 5*time.Second)
	v.SetDefault(KeyTop, 5)
	v.SetDefault(KeyOutput, OutputTable)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyConcurrency, 8)
	v.SetDefault(KeyMaxObjects, 1_000_000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// stateDir is where preferences and history live by default
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".costadvisor"
	}
	return filepath.Join(home, ".costadvisor")
}

// Load reads the optional config file and resolves every setting. An empty
// path skips the file.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg := Config{
		Regions:        splitList(v.GetStringSlice(KeyRegions)),
		Intent:         v.GetString(KeyIntent),
		RulesFile:      v.GetString(KeyRules),
		User:           v.GetString(KeyUser),
		InputFile:      v.GetString(KeyInput),
		PreferencesDir: v.GetString(KeyPreferencesDir),
		HistoryFile:    v.GetString(KeyHistoryFile),
		PricingAPI:     v.GetBool(KeyPricingAPI),
		PricingTimeout: v.GetDuration(KeyPricingTimeout),
		TopN:           v.GetInt(KeyTop),
		Output:         strings.ToLower(v.GetString(KeyOutput)),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		Concurrency:    v.GetInt(KeyConcurrency),
		MaxObjects:     v.GetInt(KeyMaxObjects),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe interpretation
func (c Config) Validate() error {
	var errs []error
	if len(c.Regions) == 0 {
		errs = append(errs, errors.New("at least one region is required"))
	}
	if c.Output != OutputTable && c.Output != OutputJSON {
		errs = append(errs, fmt.Errorf("output must be %s or %s, got %q", OutputTable, OutputJSON, c.Output))
	}
	if c.PricingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pricing timeout must be positive, got %s", c.PricingTimeout))
	}
	if c.TopN < 0 {
		errs = append(errs, fmt.Errorf("top must not be negative, got %d", c.TopN))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

// splitList accepts repeated values as well as comma separated ones
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
