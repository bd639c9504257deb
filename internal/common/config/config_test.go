package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}\nc: ${X_C}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
	assert.True(t, strings.HasSuffix(string(out), "c: "))
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	require.NoError(t, os.Chdir(tmp))
	return tmp
}

func TestLoadConfig_APIServer(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("AGRI_JWT_SECRET", "this-is-a-very-long-secret-key-for-testing")
	t.Setenv("AGRI_CORS_ORIGIN", "https://dash.example.org")

	yaml := `
server:
  port: 8088
database:
  type: sqlite
  dbname: ":memory:"
jwt:
  secret_key: ${AGRI_JWT_SECRET}
  duration: 2h
cors:
  allow_origins:
    - ${AGRI_CORS_ORIGIN:http://localhost:3000}
rate_limit:
  enabled: true
  max_requests: ${AGRI_RATE_MAX:42}
ai:
  enabled: true
  api_key: ${AGRI_AI_KEY:}
`
	file := filepath.Join(tmp, "apiserver.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig("apiserver.yaml")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Duration)
	assert.Equal(t, 15*time.Minute, cfg.JWT.ResetDuration)
	assert.Equal(t, []string{"https://dash.example.org"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, 42, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 5, cfg.RateLimit.AuthMaxRequests)
	assert.Equal(t, "memory", cfg.DocStore.Type)
	assert.False(t, cfg.AI.AIAvailable(), "empty api key must disable the model client")
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	tmp := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "apiserver.yaml"), []byte("server:\n  port: 1\n"), 0o644))

	_, _, err := LoadConfig("apiserver.yaml")
	assert.ErrorContains(t, err, "jwt.secret_key")
}

func TestValidate_UnsupportedBackends(t *testing.T) {
	cfg := &APIServerConfig{JWT: JWTConfig{SecretKey: "x"}}
	cfg.ApplyDefaults()
	cfg.DocStore.Type = "couch"
	cfg.RateLimit.Type = "redis"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "unsupported docstore type: couch")
	assert.ErrorContains(t, err, "rate_limit.redis.addr")
}
