package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage/memory"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage/postgres"
)

type DBOptions struct {
	Config    *config.DatabaseConfig
	ConnectTO time.Duration
	Migrate   bool
}

// OpenDB connects to postgres and, when asked, applies pending migrations.
func OpenDB(ctx context.Context, opt DBOptions, logger *zap.Logger) (*postgres.Store, error) {
	if opt.Config == nil {
		return nil, fmt.Errorf("database config is not set")
	}
	if opt.ConnectTO == 0 {
		opt.ConnectTO = 5 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, opt.ConnectTO)
	defer cancel()

	db, err := postgres.NewConnection(cctx, opt.Config)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if opt.Migrate {
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}
	return postgres.New(db), nil
}

// OpenStore picks the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	return OpenDB(ctx, DBOptions{Config: cfg, Migrate: cfg.RunMigrations}, logger)
}
