package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amoylab/agridash/internal/apiserver/aiproxy"
	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/apiserver/docstore"
	"github.com/amoylab/agridash/internal/apiserver/middleware"
	"github.com/amoylab/agridash/internal/apiserver/realtime"
	"github.com/amoylab/agridash/internal/apiserver/router"
	"github.com/amoylab/agridash/internal/apiserver/seed"
	"github.com/amoylab/agridash/internal/auth/jwt"
	"github.com/amoylab/agridash/internal/common/config"
	"github.com/amoylab/agridash/pkg/logger"
	"github.com/amoylab/agridash/pkg/metrics"
	"github.com/amoylab/agridash/pkg/trace"
	"github.com/amoylab/agridash/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigFile = "apiserver.yaml"

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apiserver",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetInfo()
			fmt.Printf("apiserver version %s (commit %s, %s)\n", info.Version, info.Commit, info.GoVersion)
		},
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the schema, load the demo dataset and ensure the super admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "apiserver",
		Short: "AgriDash API Server",
		Long:  `AgriDash API Server serves agricultural statistics, user reports and AI-assisted analysis for the dashboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", defaultConfigFile, "path to configuration file")
	rootCmd.AddCommand(versionCmd, seedCmd)
}

func loadConfig() *config.APIServerConfig {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.APIServerConfig) *zap.Logger {
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return lg
}

func initDatabase(lg *zap.Logger, cfg *config.DatabaseConfig) database.Database {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		lg.Fatal("failed to initialize database", zap.String("type", cfg.Type), zap.Error(err))
	}
	return db
}

func initStore(ctx context.Context, lg *zap.Logger, cfg config.DocStoreConfig) docstore.Store {
	store, err := docstore.NewStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize document store", zap.String("type", cfg.Type), zap.Error(err))
	}
	return store
}

func initModel(ctx context.Context, lg *zap.Logger, cfg config.AIConfig) aiproxy.Model {
	if !cfg.AIAvailable() {
		lg.Info("AI model disabled, serving fallback answers")
		return nil
	}
	model, err := aiproxy.NewGeminiModel(ctx, cfg)
	if err != nil {
		// degrade instead of refusing to start
		lg.Error("failed to initialize AI model, serving fallback answers", zap.Error(err))
		return nil
	}
	lg.Info("AI model enabled", zap.String("model", cfg.Model))
	return model
}

func initLimiter(lg *zap.Logger, cfg config.RateLimitConfig) middleware.Limiter {
	if !cfg.Enabled {
		return nil
	}
	limiter, err := middleware.NewLimiter(cfg)
	if err != nil {
		lg.Fatal("failed to initialize rate limiter", zap.String("type", cfg.Type), zap.Error(err))
	}
	return limiter
}

func initRouter(d router.Deps) http.Handler {
	h, err := router.New(d)
	if err != nil {
		d.Logger.Fatal("failed to build router", zap.Error(err))
	}
	return h
}

func run(ctx context.Context) error {
	cfg := loadConfig()
	lg := initLogger(cfg)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Fatal("failed to initialize tracing", zap.Error(err))
	}

	db := initDatabase(lg, &cfg.Database)
	defer func() { _ = db.Close() }()
	if err := db.AutoMigrate(ctx); err != nil {
		lg.Fatal("failed to migrate database", zap.Error(err))
	}

	store := initStore(ctx, lg, cfg.DocStore)

	jwtService, err := jwt.NewService(jwt.Config{
		SecretKey:     cfg.JWT.SecretKey,
		Duration:      cfg.JWT.Duration,
		ResetDuration: cfg.JWT.ResetDuration,
	})
	if err != nil {
		lg.Fatal("failed to initialize JWT service", zap.Error(err))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	limiter := initLimiter(lg, cfg.RateLimit)
	if limiter != nil {
		defer func() { _ = limiter.Close() }()
	}

	hub := realtime.NewHub(lg, m, router.OriginChecker(cfg.CORS))
	handler := initRouter(router.Deps{
		Config:  cfg,
		DB:      db,
		Store:   store,
		AI:      aiproxy.NewService(initModel(ctx, lg, cfg.AI), store, m, lg),
		JWT:     jwtService,
		Hub:     hub,
		Limiter: limiter,
		Metrics: m,
		Logger:  lg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting apiserver",
			zap.String("version", version.Get()),
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Type),
			zap.String("docstore", cfg.DocStore.Type))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			lg.Error("server stopped unexpectedly", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		lg.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := hub.Shutdown(shutdownCtx); err != nil {
		lg.Warn("failed to close realtime connections", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("failed to shutdown server", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		lg.Warn("failed to close document store", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.Warn("failed to flush traces", zap.Error(err))
	}
	lg.Info("apiserver stopped")
	return nil
}

func runSeed(ctx context.Context) error {
	cfg := loadConfig()
	lg := initLogger(cfg)
	defer func() { _ = lg.Sync() }()

	db := initDatabase(lg, &cfg.Database)
	defer func() { _ = db.Close() }()

	res, err := seed.Run(ctx, db, cfg.SuperAdmin, lg)
	if err != nil {
		return err
	}
	fmt.Printf("regions=%d land_holdings=%d irrigation_sources=%d cropping_patterns=%d well_depths=%d admin_created=%t skipped=%t\n",
		res.Regions, res.LandHoldings, res.IrrigationSources, res.CroppingPatterns, res.WellDepths, res.AdminCreated, res.Skipped)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
