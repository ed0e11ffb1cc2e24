package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/chat"
	"github.com/canchat/canchat/internal/media"
	"github.com/canchat/canchat/internal/messages"
	"github.com/canchat/canchat/internal/users"
)

var ChatModule = fx.Module(
	"chat",
	fx.Provide(
		users.NewService,
		channels.NewService,
		messages.NewService,
		media.NewService,

		chat.NewRegistry,
		provideBroadcaster,
		provideGateway,
	),
)

// ---------------------------------------------------------------------------
// realtime core providers (interface adapters)
// ---------------------------------------------------------------------------

func provideBroadcaster(log *slog.Logger, registry *chat.Registry, messageService *messages.Service) *chat.Broadcaster {
	return chat.NewBroadcaster(log, registry, messageService)
}

func provideGateway(log *slog.Logger, registry *chat.Registry, broadcaster *chat.Broadcaster, channelService *channels.Service, userService *users.Service) *chat.Gateway {
	return chat.NewGateway(log, registry, broadcaster, channelService, userService)
}
