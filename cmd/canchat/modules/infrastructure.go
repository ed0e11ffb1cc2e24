package modules

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/canchat/canchat/db"
	"github.com/canchat/canchat/internal/config"
	dbconn "github.com/canchat/canchat/internal/db"
	"github.com/canchat/canchat/internal/logger"
	"github.com/canchat/canchat/internal/mailer"
	"github.com/canchat/canchat/internal/storage"
	"github.com/canchat/canchat/internal/users"
)

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideDBConn,
		provideStorageProvider,
		func(p *storage.LocalProvider) storage.Provider { return p },
		provideMailer,
	),
	fx.Invoke(runMigrations),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := dbconn.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideStorageProvider(cfg config.Config) (*storage.LocalProvider, error) {
	return storage.NewLocalProvider(cfg.Media.Root, "/media")
}

func provideMailer(log *slog.Logger, cfg config.Config) (users.CodeSender, error) {
	return mailer.New(log, cfg.SMTP)
}

// runMigrations brings the schema up to date before the server starts.
func runMigrations(log *slog.Logger, cfg config.Config) error {
	migrationsFS, err := fs.Sub(db.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	if err := dbconn.RunMigrate(log, cfg.Postgres, migrationsFS, "up", nil); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
