package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/model"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.TimeoutSeconds)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.InDelta(t, 2.0, cfg.API.BackoffFactor, 0.001)
	assert.True(t, cfg.API.CurrentWeather)
	assert.InDelta(t, 4.0, cfg.API.RequestsPerSecond, 0.001)
	assert.Equal(t, 1, cfg.Extract.Workers)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/weather.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 60, cfg.Schedule.IntervalMinutes)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Cities)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
api:
  max_retries: 5
  backoff_factor: 1.5
cities:
  - name: Paris
    latitude: 48.8566
    longitude: 2.3522
  - name: Tokyo
    latitude: 35.6762
    longitude: 139.6503
store:
  driver: postgres
  database_url: postgres://localhost/weather
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.API.MaxRetries)
	assert.InDelta(t, 1.5, cfg.API.BackoffFactor, 0.001)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Len(t, cfg.Cities, 2)
	assert.Equal(t, model.City{Name: "Paris", Latitude: 48.8566, Longitude: 2.3522}, cfg.Cities[0])
	assert.Equal(t, "Tokyo", cfg.Cities[1].Name)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.API.TimeoutSeconds)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("WEATHER_STORE_DRIVER", "postgres")
	t.Setenv("WEATHER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("WEATHER_SERVER_PORT", "3000")
	t.Setenv("WEATHER_API_MAX_RETRIES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 7, cfg.API.MaxRetries)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validRunConfig returns a Config that passes validation in run mode.
func validRunConfig() *Config {
	cfg := &Config{}
	cfg.API.MaxRetries = 3
	cfg.API.BackoffFactor = 2
	cfg.Extract.Workers = 1
	cfg.Cities = []model.City{{Name: "Paris", Latitude: 48.8566, Longitude: 2.3522}}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "data/weather.db"
	cfg.Schedule.IntervalMinutes = 60
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_Valid(t *testing.T) {
	assert.NoError(t, validRunConfig().Validate("run"))
}

func TestValidateRun_NoCities(t *testing.T) {
	cfg := validRunConfig()
	cfg.Cities = nil

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cities is required")
}

func TestValidateRun_UnnamedCity(t *testing.T) {
	cfg := validRunConfig()
	cfg.Cities = append(cfg.Cities, model.City{Latitude: 1, Longitude: 2})

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have a name")
}

func TestValidateRun_RetryBounds(t *testing.T) {
	cfg := validRunConfig()
	cfg.API.MaxRetries = 0
	cfg.API.BackoffFactor = 0

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.max_retries must be >= 1")
	assert.Contains(t, err.Error(), "api.backoff_factor must be > 0")
}

func TestValidateRun_BadDriver(t *testing.T) {
	cfg := validRunConfig()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateSchedule_Interval(t *testing.T) {
	cfg := validRunConfig()
	cfg.Schedule.IntervalMinutes = 0

	err := cfg.Validate("schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule.interval_minutes must be >= 1")

	cfg.Schedule.IntervalMinutes = 15
	assert.NoError(t, cfg.Validate("schedule"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validRunConfig()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateMigrate_MissingURL(t *testing.T) {
	cfg := validRunConfig()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validRunConfig().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
