// Command canchat runs the chat server. The migrate subcommand manages the
// database schema without starting the server.
package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/canchat/canchat/cmd/canchat/modules"
	"github.com/canchat/canchat/db"
	"github.com/canchat/canchat/internal/config"
	dbconn "github.com/canchat/canchat/internal/db"
	"github.com/canchat/canchat/internal/logger"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrateCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fx.New(
		modules.InfraModule,
		modules.ChatModule,
		modules.ServerModule,
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrateCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: canchat migrate <up|down|version|force N>")
	}
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	migrationsFS, err := fs.Sub(db.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	return dbconn.RunMigrate(logger.L, cfg.Postgres, migrationsFS, args[0], args[1:])
}
