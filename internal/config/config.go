// Package config loads the application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/weather-etl/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	API      APIConfig      `yaml:"api" mapstructure:"api"`
	Cities   []model.City   `yaml:"cities" mapstructure:"cities"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// APIConfig configures requests to the weather API.
type APIConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffFactor     float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	CurrentWeather    bool    `yaml:"current_weather" mapstructure:"current_weather"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ExtractConfig configures the extraction phase.
type ExtractConfig struct {
	// Workers > 1 enables bounded concurrent city fetches.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// PathsConfig configures output locations.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ScheduleConfig configures the recurring-run mode.
type ScheduleConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" mapstructure:"interval_minutes"`
}

// ServerConfig configures the status server.
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
	v.SetEnvPrefix("WEATHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("api.timeout_seconds", 10)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.backoff_factor", 2)
	v.SetDefault("api.current_weather", true)
	v.SetDefault("api.requests_per_second", 4)
	v.SetDefault("extract.workers", 1)
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/weather.db")
	v.SetDefault("schedule.interval_minutes", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the configuration is usable for the given command
// mode. It collects every problem rather than stopping at the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	addStoreProblems := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "run", "schedule":
		addStoreProblems()
		if len(c.Cities) == 0 {
			problems = append(problems, "cities is required (at least one city)")
		}
		for _, city := range c.Cities {
			if city.Name == "" {
				problems = append(problems, "cities entries must have a name")
				break
			}
		}
		if c.API.MaxRetries < 1 {
			problems = append(problems, "api.max_retries must be >= 1")
		}
		if c.API.BackoffFactor <= 0 {
			problems = append(problems, "api.backoff_factor must be > 0")
		}
		if c.Extract.Workers < 1 {
			problems = append(problems, "extract.workers must be >= 1")
		}
		if mode == "schedule" && c.Schedule.IntervalMinutes < 1 {
			problems = append(problems, "schedule.interval_minutes must be >= 1")
		}
	case "serve":
		addStoreProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "migrate", "query":
		addStoreProblems()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
