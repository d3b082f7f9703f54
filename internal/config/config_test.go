package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "0.10", cfg.Checkout.TaxRate)
	assert.Equal(t, 10, cfg.Catalog.HistoryLimit)
	assert.True(t, cfg.Checkout.StrictTotals)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CHECKOUT_STRICT_TOTALS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Checkout.StrictTotals)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MONGO_DB_NAME=fromdotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MONGO_DB_NAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Mongo.Database)
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec")
	_, err = Load()
	assert.NoError(t, err)
}
