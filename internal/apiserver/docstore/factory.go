package docstore

import (
	"context"
	"fmt"

	"github.com/amoylab/agridash/internal/common/config"
	"go.uber.org/zap"
)

// NewStore creates a document store based on configuration
func NewStore(ctx context.Context, cfg config.DocStoreConfig, logger *zap.Logger) (Store, error) {
	logger = logger.Named("docstore")
	switch cfg.Type {
	case "", "memory":
		logger.Info("using in-memory document store")
		return NewMemoryStore(), nil
	case "mongo":
		return NewMongoStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported docstore type: %s", cfg.Type)
	}
}
