package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/amoylab/agridash/internal/apiserver/aiproxy"
	"github.com/amoylab/agridash/internal/apiserver/realtime"
	"github.com/amoylab/agridash/internal/apiserver/router"
	"github.com/amoylab/agridash/internal/auth/jwt"
	"github.com/amoylab/agridash/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	cfg := &config.APIServerConfig{}
	lg := initLogger(cfg)
	require.NotNil(t, lg)
	_ = lg.Sync()
}

func TestInitDatabase_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "apiserver.db")
	db := initDatabase(zap.NewNop(), &config.DatabaseConfig{Type: "sqlite", DBName: dbPath})
	t.Cleanup(func() { _ = db.Close() })
	assert.NoError(t, db.Ping(context.Background()))
}

func TestInitStore_Memory(t *testing.T) {
	st := initStore(context.Background(), zap.NewNop(), config.DocStoreConfig{Type: "memory"})
	require.NotNil(t, st)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestInitModel_Disabled(t *testing.T) {
	assert.Nil(t, initModel(context.Background(), zap.NewNop(), config.AIConfig{Enabled: true}))
	assert.Nil(t, initModel(context.Background(), zap.NewNop(), config.AIConfig{APIKey: "key"}))
}

func TestInitLimiter(t *testing.T) {
	assert.Nil(t, initLimiter(zap.NewNop(), config.RateLimitConfig{}))

	l := initLimiter(zap.NewNop(), config.RateLimitConfig{Enabled: true, Type: "memory", Window: time.Minute})
	require.NotNil(t, l)
	_ = l.Close()
}

func TestInitRouter_Constructs(t *testing.T) {
	cfg := &config.APIServerConfig{}
	cfg.JWT.SecretKey = "this-is-a-very-long-secret-key-for-testing"
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "api.db")}
	cfg.ApplyDefaults()
	cfg.Server.Mode = "test"
	require.NoError(t, cfg.Validate())

	lg := zap.NewNop()
	db := initDatabase(lg, &cfg.Database)
	t.Cleanup(func() { _ = db.Close() })
	st := initStore(context.Background(), lg, cfg.DocStore)

	js, err := jwt.NewService(jwt.Config{SecretKey: cfg.JWT.SecretKey, Duration: cfg.JWT.Duration, ResetDuration: cfg.JWT.ResetDuration})
	require.NoError(t, err)

	h := initRouter(router.Deps{
		Config: cfg,
		DB:     db,
		Store:  st,
		AI:     aiproxy.NewService(nil, st, nil, lg),
		JWT:    js,
		Hub:    realtime.NewHub(lg, nil, router.OriginChecker(cfg.CORS)),
		Logger: lg,
	})
	assert.NotNil(t, h)
}
