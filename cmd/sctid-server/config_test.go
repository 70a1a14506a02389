package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "production", config.Env)
	assert.Equal(t, ":8080", config.Addr)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, 50, config.Pool.Capacity)
	assert.Equal(t, 10*time.Second, config.Pool.MaintenanceInterval)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
env: development
addr: ":9090"
log:
  level: warn
pool:
  capacity: 200
  refillThreshold: 0.5
  refillTrigger: quotient
  maintenanceInterval: 30s
  precreate:
    - "1000168:10"
    - "1000168:11"
  cis:
    url: https://cis.example.org/api
    username: author
    password: hunter2
    timeoutSeconds: 45
`)

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "development", config.Env)
	assert.Equal(t, ":9090", config.Addr)
	assert.Equal(t, "warn", config.Log.Level)
	// 未覆盖的项保留环境默认值
	assert.Equal(t, "console", config.Log.Format)
	assert.Equal(t, 200, config.Pool.Capacity)
	assert.InDelta(t, 0.5, config.Pool.RefillThreshold, 1e-9)
	assert.Equal(t, "quotient", config.Pool.RefillTrigger)
	assert.Equal(t, 30*time.Second, config.Pool.MaintenanceInterval)
	assert.Equal(t, []string{"1000168:10", "1000168:11"}, config.Pool.Precreate)
	assert.Equal(t, "https://cis.example.org/api", config.Pool.CIS.URL)
	assert.Equal(t, "author", config.Pool.CIS.Username)
	assert.Equal(t, 45, config.Pool.CIS.TimeoutSeconds)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
pool:
  capacity: 200
`)
	t.Setenv("SCTID_POOL_CAPACITY", "75")
	t.Setenv("SCTID_POOL_CIS_URL", "local")

	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 75, config.Pool.Capacity)
	assert.Equal(t, "local", config.Pool.CIS.URL)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
pool:
  refillTrigger: ratio
`)
	_, err := loadConfig(path)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
