package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/chat"
	"github.com/canchat/canchat/internal/config"
	"github.com/canchat/canchat/internal/handlers"
	"github.com/canchat/canchat/internal/media"
	"github.com/canchat/canchat/internal/messages"
	"github.com/canchat/canchat/internal/server"
	"github.com/canchat/canchat/internal/storage"
	"github.com/canchat/canchat/internal/users"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(handlers.NewSwaggerHandler),
		provideServerHandler(provideAuthHandler),
		provideServerHandler(provideUsersHandler),
		provideServerHandler(provideChannelsHandler),
		provideServerHandler(provideMediaHandler),
		provideServerHandler(provideWSHandler),

		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

// ---------------------------------------------------------------------------
// handler providers
// ---------------------------------------------------------------------------

func provideAuthHandler(log *slog.Logger, userService *users.Service, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, userService, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideUsersHandler(log *slog.Logger, userService *users.Service, mediaService *media.Service, cfg config.Config) *handlers.UsersHandler {
	return handlers.NewUsersHandler(log, userService, mediaService, maxImageBytes(cfg))
}

func provideChannelsHandler(log *slog.Logger, channelService *channels.Service, messageService *messages.Service, gateway *chat.Gateway) *handlers.ChannelsHandler {
	return handlers.NewChannelsHandler(log, channelService, messageService, gateway)
}

func provideMediaHandler(log *slog.Logger, mediaService *media.Service, gateway *chat.Gateway, provider *storage.LocalProvider, cfg config.Config) *handlers.MediaHandler {
	return handlers.NewMediaHandler(log, mediaService, gateway, provider, maxImageBytes(cfg))
}

func provideWSHandler(log *slog.Logger, gateway *chat.Gateway, cfg config.Config) *handlers.WSHandler {
	return handlers.NewWSHandler(log, gateway, cfg.Auth.JWTSecret)
}

func maxImageBytes(cfg config.Config) int64 {
	if cfg.Media.MaxImageMB <= 0 {
		return media.MaxAssetBytes
	}
	return int64(cfg.Media.MaxImageMB) << 20
}

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
