// Package config loads fv settings from defaults, an optional config file,
// a .env file, FV_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/komsit37/fv/pkg/fv/valuation"
)

const EnvPrefix = "FV"

// Preset holds the default assumptions of one calculator. Growth and Rate
// are percentages, as typed on the command line.
type Preset struct {
	Metric   string  `mapstructure:"metric"`
	Base     float64 `mapstructure:"base"`
	Growth   float64 `mapstructure:"growth"`
	Multiple float64 `mapstructure:"multiple"`
	Rate     float64 `mapstructure:"rate"`
	Years    int     `mapstructure:"years"`
}

// Assumptions converts the preset to valuation inputs with an unknown price.
func (p Preset) Assumptions() valuation.Assumptions {
	return valuation.Assumptions{
		BaseMetric: p.Base,
		GrowthRate: p.Growth / 100,
		Years:      p.Years,
		Multiple:   p.Multiple,
		Rate:       p.Rate / 100,
	}
}

type Config struct {
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	RateLimit int           `mapstructure:"rate_limit"` // requests per minute, 0 = provider default

	Format    string   `mapstructure:"format"`
	Columns   []string `mapstructure:"columns"`
	Filter    string   `mapstructure:"filter"`
	Color     bool     `mapstructure:"color"`
	Series    bool     `mapstructure:"series"`
	Currency  string   `mapstructure:"currency"`
	LogLevel  string   `mapstructure:"log_level"`
	LogPretty bool     `mapstructure:"log_pretty"`

	EPS Preset `mapstructure:"eps"`
	FCF Preset `mapstructure:"fcf"`
	DCF Preset `mapstructure:"dcf"`
}

// Options tells Load where to look for files.
type Options struct {
	ConfigFile string   // explicit config file; "" searches for fv.yaml
	EnvFiles   []string // dotenv files; nil loads ./.env when present
}

// SetDefaults registers every key with its default value. Keys unknown to
// viper are not picked up from the environment by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", "yahoo")
	v.SetDefault("api_key", "")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("cache_size", 256)
	v.SetDefault("rate_limit", 5)

	v.SetDefault("format", "table")
	v.SetDefault("columns", []string{})
	v.SetDefault("filter", "")
	v.SetDefault("color", true)
	v.SetDefault("series", false)
	v.SetDefault("currency", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_pretty", true)

	setPreset(v, "eps", Preset{Metric: "EPS", Base: 7.50, Growth: 10, Multiple: 20, Rate: 15, Years: 5})
	setPreset(v, "fcf", Preset{Metric: "FCF/share", Base: 39.50, Growth: 10, Multiple: 25, Rate: 15, Years: 5})
	setPreset(v, "dcf", Preset{Metric: "FCF/share", Base: 2.0, Growth: 5, Multiple: 10, Rate: 10, Years: 5})
}

func setPreset(v *viper.Viper, name string, p Preset) {
	v.SetDefault(name+".metric", p.Metric)
	v.SetDefault(name+".base", p.Base)
	v.SetDefault(name+".growth", p.Growth)
	v.SetDefault(name+".multiple", p.Multiple)
	v.SetDefault(name+".rate", p.Rate)
	v.SetDefault(name+".years", p.Years)
}

// Load resolves the configuration into a Config and validates it.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	if err := loadDotenv(opts.EnvFiles); err != nil {
		return nil, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("fv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/fv")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv(files []string) error {
	if files == nil {
		// optional
		_ = godotenv.Load()
		return nil
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Validate checks the settings that cannot be repaired later.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "table", "json", "csv", "syms":
	default:
		return fmt.Errorf("format: unknown %q (want table, json, csv or syms)", c.Format)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout: must be positive, got %s", c.Timeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl: must not be negative, got %s", c.CacheTTL)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size: must not be negative, got %d", c.CacheSize)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit: must not be negative, got %d", c.RateLimit)
	}
	presets := []struct {
		name   string
		method valuation.Method
		p      Preset
	}{
		{"eps", valuation.MethodMultiple, c.EPS},
		{"fcf", valuation.MethodMultiple, c.FCF},
		{"dcf", valuation.MethodDCF, c.DCF},
	}
	for _, ps := range presets {
		if err := valuation.Validate(ps.method, ps.p.Assumptions()); err != nil {
			return fmt.Errorf("%s preset: %w", ps.name, err)
		}
	}
	return nil
}

// Preset returns the named calculator preset.
func (c *Config) Preset(name string) (Preset, bool) {
	switch strings.ToLower(name) {
	case "eps":
		return c.EPS, true
	case "fcf":
		return c.FCF, true
	case "dcf":
		return c.DCF, true
	}
	return Preset{}, false
}
