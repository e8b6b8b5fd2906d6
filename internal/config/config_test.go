package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "PORT", "ENFORCE_SIGNATURE", "STORE_BACKEND", "LEAD_DEDUP_TTL", "GRAPH_TIMEOUT", "DISPATCH_TIMEOUT", "USE_KAFKA", "ENABLE_SETUP_ENDPOINTS", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "3000", cfg.HTTPPort)
	assert.True(t, cfg.EnforceSignature)
	assert.Equal(t, StoreMongoDB, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.LeadDedupTTL)
	assert.Equal(t, 10*time.Second, cfg.GraphTimeout)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout)
	assert.False(t, cfg.UseKafka)
	assert.False(t, cfg.EnableSetupEndpoints)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("PORT", "8081")
	t.Setenv("ENFORCE_SIGNATURE", "false")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("LEAD_DEDUP_TTL", "90m")
	t.Setenv("GRAPH_TIMEOUT", "not-a-duration")
	t.Setenv("DISPATCH_TIMEOUT", "3s")
	t.Setenv("USE_KAFKA", "1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "tok")

	cfg := LoadConfig()

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.False(t, cfg.EnforceSignature)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, 90*time.Minute, cfg.LeadDedupTTL)
	assert.Equal(t, 10*time.Second, cfg.GraphTimeout)
	assert.Equal(t, 3*time.Second, cfg.DispatchTimeout)
	assert.True(t, cfg.UseKafka)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "tok", cfg.VerifyToken)
}
