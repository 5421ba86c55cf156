package testsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfigFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_PASSWORD", "pass")
	t.Setenv("POSTGRES_DB", "soil")
	t.Setenv("POSTGRES_PORT", "5543")

	cfg := PostgresConfigFromEnv(t)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5543, cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "not-a-number")

	cfg := RedisConfigFromEnv(t)

	assert.Equal(t, "redis", cfg.Host)
	assert.Equal(t, 6379, cfg.Port)
	assert.Equal(t, 15, cfg.DB)
}
