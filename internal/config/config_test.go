package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			DataPath: "/tmp/numis-test",
		},
		Sync: SyncConfig{
			RemoteURL:        "http://localhost:5984",
			Database:         "numis",
			DebounceInterval: 500 * time.Millisecond,
			PeriodicInterval: 30 * time.Second,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Environment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "sandbox"
	assert.ErrorContains(t, cfg.Validate(), "invalid environment")
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logger.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "invalid log level")
}

func TestValidate_DataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataPath = ""
	assert.ErrorContains(t, cfg.Validate(), "data path")
}

func TestValidate_SyncIntervals(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.DebounceInterval = 0
	assert.ErrorContains(t, cfg.Validate(), "debounce interval")

	cfg = validConfig()
	cfg.Sync.PeriodicInterval = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "periodic interval")
}

func TestValidate_RemoteDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.Database = ""
	assert.ErrorContains(t, cfg.Validate(), "database name")
}

func TestExpandPath(t *testing.T) {
	got, err := expandPath("", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/default/path", got)

	got, err = expandPath("/already/absolute", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/already/absolute", got)
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitOrigins("*"))
	assert.Equal(t,
		[]string{"http://localhost:4200", "https://numis.local"},
		splitOrigins("http://localhost:4200, https://numis.local"))
	assert.Empty(t, splitOrigins(" , "))
}
