package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Inputs     InputConfig     `yaml:"inputs" mapstructure:"inputs"`
	Indicators IndicatorConfig `yaml:"indicators" mapstructure:"indicators"`
	Thresholds ThresholdConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Store      StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig    `yaml:"server" mapstructure:"server"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
}

// InputConfig holds paths to the source tables.
type InputConfig struct {
	EJScreenCSV string `yaml:"ejscreen_csv" mapstructure:"ejscreen_csv"`
	LifeCSV     string `yaml:"life_csv" mapstructure:"life_csv"`
	RegionFile  string `yaml:"region_file" mapstructure:"region_file"`
	OutputCSV   string `yaml:"output_csv" mapstructure:"output_csv"`
	Latin1      bool   `yaml:"latin1" mapstructure:"latin1"`
}

// IndicatorConfig names the columns of the EJSCREEN and USALEEP tables.
// Defaults match the EJSCREEN block-group extract.
type IndicatorConfig struct {
	IDColumn    string `yaml:"id_column" mapstructure:"id_column"`
	StateColumn string `yaml:"state_column" mapstructure:"state_column"`

	LowIncome       string `yaml:"low_income" mapstructure:"low_income"`
	LingIso         string `yaml:"ling_iso" mapstructure:"ling_iso"`
	LessHS          string `yaml:"less_hs" mapstructure:"less_hs"`
	Unemployment    string `yaml:"unemployment" mapstructure:"unemployment"`
	PctLowIncome    string `yaml:"pct_low_income" mapstructure:"pct_low_income"`
	PctLingIso      string `yaml:"pct_ling_iso" mapstructure:"pct_ling_iso"`
	PctLessHS       string `yaml:"pct_less_hs" mapstructure:"pct_less_hs"`
	PctUnemployment string `yaml:"pct_unemployment" mapstructure:"pct_unemployment"`

	LifeIDColumn string  `yaml:"life_id_column" mapstructure:"life_id_column"`
	LifeColumn   string  `yaml:"life_column" mapstructure:"life_column"`
	LifeCeiling  float64 `yaml:"life_ceiling" mapstructure:"life_ceiling"`

	// PercentScale lifts fractional raw indicators onto percentage
	// units. EJSCREEN ships fractions, so the default is 100.
	PercentScale float64 `yaml:"percent_scale" mapstructure:"percent_scale"`
}

// ThresholdConfig configures the exceedance computation.
type ThresholdConfig struct {
	Quantile  float64 `yaml:"quantile" mapstructure:"quantile"`
	StrictPCA bool    `yaml:"strict_pca" mapstructure:"strict_pca"`
}

// StoreConfig configures the run/result persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures source-file download.
type FetchConfig struct {
	EJScreenURL string  `yaml:"ejscreen_url" mapstructure:"ejscreen_url"`
	LifeURL     string  `yaml:"life_url" mapstructure:"life_url"`
	DestDir     string  `yaml:"dest_dir" mapstructure:"dest_dir"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EJINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "ejindex.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("thresholds.quantile", 0.8)
	v.SetDefault("inputs.output_csv", "indexes.csv")
	v.SetDefault("indicators.id_column", "ID")
	v.SetDefault("indicators.state_column", "STATE_NAME")
	v.SetDefault("indicators.low_income", "LOWINCPCT")
	v.SetDefault("indicators.ling_iso", "LINGISOPCT")
	v.SetDefault("indicators.less_hs", "LESSHSPCT")
	v.SetDefault("indicators.unemployment", "UNEMPPCT")
	v.SetDefault("indicators.pct_low_income", "P_LWINCPCT")
	v.SetDefault("indicators.pct_ling_iso", "P_LNGISPCT")
	v.SetDefault("indicators.pct_less_hs", "P_LESHSPCT")
	v.SetDefault("indicators.pct_unemployment", "P_UNEMPPCT")
	v.SetDefault("indicators.life_id_column", "Tract ID")
	v.SetDefault("indicators.life_column", "e(0)")
	v.SetDefault("indicators.life_ceiling", 150.0)
	v.SetDefault("indicators.percent_scale", 100.0)
	v.SetDefault("fetch.dest_dir", "data")
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "ejindex-cli/1.0")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required by a command is present.
func (c *Config) Validate(command string) error {
	switch command {
	case "run":
		if c.Inputs.EJScreenCSV == "" {
			return eris.New("config: inputs.ejscreen_csv is required")
		}
		if c.Inputs.LifeCSV == "" {
			return eris.New("config: inputs.life_csv is required")
		}
		if c.Thresholds.Quantile <= 0 || c.Thresholds.Quantile >= 1 {
			return eris.New("config: thresholds.quantile must be in (0, 1)")
		}
	case "fetch":
		if c.Fetch.EJScreenURL == "" && c.Fetch.LifeURL == "" {
			return eris.New("config: fetch.ejscreen_url or fetch.life_url is required")
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				return eris.New("config: store.sqlite_path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				return eris.New("config: store.database_url is required")
			}
		default:
			return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
