package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DATABASE_URL", "VAISALA_BEARER_TOKEN", "VAISALA_BASE_URL",
		"SYNC_READINGS_INTERVAL_SECONDS", "BULK_CONCURRENT_LIMIT", "DEPLOYMENT",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestFromEnvMissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := FromEnv()
	require.Error(t, err)
	var missing *MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "DATABASE_URL", missing.Name)
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/river")
	t.Setenv("VAISALA_BEARER_TOKEN", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, uint64(300), cfg.SyncReadingsIntervalSeconds)
	assert.Equal(t, uint64(1800), cfg.SyncDeviceStatusIntervalSeconds)
	assert.Equal(t, int64(5), cfg.BulkConcurrentLimit)
	assert.Equal(t, int64(209715200), cfg.CacheMaxBytes)
	assert.Equal(t, DeploymentLocal, cfg.Deployment)
	assert.Equal(t, "0.0.0.0:3000", cfg.BindAddress())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/river")
	t.Setenv("VAISALA_BEARER_TOKEN", "secret")
	t.Setenv("BULK_CONCURRENT_LIMIT", "2")
	t.Setenv("DEPLOYMENT", "Production")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(2), cfg.BulkConcurrentLimit)
	assert.Equal(t, DeploymentProd, cfg.Deployment)
}
