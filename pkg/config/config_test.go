// cellrules/pkg/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxEventHop)
	assert.Equal(t, 0, cfg.TimerEventThreads)
	assert.Equal(t, "rule", cfg.RuleTopicName)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.DebugListenAddress)
	assert.Equal(t, 8, cfg.ActionPoolWorkers)
	assert.Equal(t, "http://localhost:8080/cells/%s/", cfg.CellBaseURLFormat)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"engine": {"max_event_hop": 3, "timer_thread_num": 2},
		"redis": {"address": "redis:6379", "database": 1},
		"logging": {"level": "debug", "output": "console"},
		"debug": {"listen_address": ":9090"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxEventHop)
	assert.Equal(t, 2, cfg.TimerEventThreads)
	assert.Equal(t, "redis:6379", cfg.RedisAddress)
	assert.Equal(t, 1, cfg.RedisDB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.DebugListenAddress)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	assert.Error(t, err)
}
