package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/chat"
	"github.com/canchat/canchat/internal/messages"
)

// ChannelsHandler serves channel CRUD, membership, and history.
type ChannelsHandler struct {
	service        *channels.Service
	messageService *messages.Service
	gateway        *chat.Gateway
	logger         *slog.Logger
}

// NewChannelsHandler creates a channels handler.
func NewChannelsHandler(log *slog.Logger, service *channels.Service, messageService *messages.Service, gateway *chat.Gateway) *ChannelsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelsHandler{
		service:        service,
		messageService: messageService,
		gateway:        gateway,
		logger:         log.With(slog.String("handler", "channels")),
	}
}

// Register mounts the channel routes on the Echo instance.
func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.POST("/api/channels", h.Create)
	e.GET("/api/channels/public", h.ListPublic)
	e.GET("/api/channels/search", h.Search)
	e.GET("/api/channels/joined", h.ListJoined)
	e.GET("/api/channels/:id", h.Get)
	e.POST("/api/channels/:id/join", h.Join)
	e.POST("/api/channels/:id/leave", h.Leave)
	e.GET("/api/channels/:id/messages", h.History)
}

// Create godoc
// @Summary Create channel
// @Description Create a channel; the creator becomes owner and first member
// @Tags channels
// @Param payload body channels.CreateRequest true "Channel payload"
// @Success 201 {object} channels.Channel
// @Failure 400 {object} ErrorResponse
// @Router /api/channels [post]
func (h *ChannelsHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req channels.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel name is required")
	}
	channel, err := h.service.Create(c.Request().Context(), userID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Every open connection learns about the new channel.
	h.gateway.AnnounceChannel(channel)
	h.logger.Info("channel created",
		slog.Int64("channel_id", channel.ID),
		slog.Int64("owner_id", userID))
	return c.JSON(http.StatusCreated, channel)
}

// ListPublic godoc
// @Summary List channels
// @Description List all channels with member counts
// @Tags channels
// @Success 200 {array} channels.Channel
// @Router /api/channels/public [get]
func (h *ChannelsHandler) ListPublic(c echo.Context) error {
	list, err := h.service.ListPublic(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

// Search godoc
// @Summary Search channels
// @Description Search channels by name or description
// @Tags channels
// @Param q query string true "Keyword"
// @Success 200 {array} channels.Channel
// @Router /api/channels/search [get]
func (h *ChannelsHandler) Search(c echo.Context) error {
	keyword := strings.TrimSpace(c.QueryParam("q"))
	if keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	list, err := h.service.Search(c.Request().Context(), keyword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

// ListJoined godoc
// @Summary List joined channels
// @Description List channels the current user is a member of
// @Tags channels
// @Success 200 {array} channels.Channel
// @Router /api/channels/joined [get]
func (h *ChannelsHandler) ListJoined(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	list, err := h.service.ListJoined(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary Get channel
// @Description Get one channel with membership flag for the current user
// @Tags channels
// @Param id path int true "Channel id"
// @Success 200 {object} channels.Detail
// @Failure 404 {object} ErrorResponse
// @Router /api/channels/{id} [get]
func (h *ChannelsHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	channelID, err := channelIDParam(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetDetail(c.Request().Context(), channelID, userID)
	if err != nil {
		if errors.Is(err, channels.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, detail)
}

// Join godoc
// @Summary Join channel
// @Description Add the current user to the channel's members
// @Tags channels
// @Param id path int true "Channel id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/channels/{id}/join [post]
func (h *ChannelsHandler) Join(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	channelID, err := channelIDParam(c)
	if err != nil {
		return err
	}
	if err := h.gateway.Join(c.Request().Context(), userID, channelID); err != nil {
		switch {
		case errors.Is(err, channels.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		case errors.Is(err, channels.ErrAlreadyMember):
			return echo.NewHTTPError(http.StatusConflict, "already a member")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "joined"})
}

// Leave godoc
// @Summary Leave channel
// @Description Remove the current user from the channel's members
// @Tags channels
// @Param id path int true "Channel id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/channels/{id}/leave [post]
func (h *ChannelsHandler) Leave(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	channelID, err := channelIDParam(c)
	if err != nil {
		return err
	}
	if err := h.gateway.Leave(c.Request().Context(), userID, channelID); err != nil {
		switch {
		case errors.Is(err, channels.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		case errors.Is(err, channels.ErrNotMember):
			return echo.NewHTTPError(http.StatusConflict, "not a member")
		case errors.Is(err, channels.ErrOwnerCannotLeave):
			return echo.NewHTTPError(http.StatusConflict, "the owner cannot leave the channel")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "left"})
}

// History godoc
// @Summary Channel history
// @Description List the channel's messages in posting order; members only
// @Tags channels
// @Param id path int true "Channel id"
// @Success 200 {array} messages.Message
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/channels/{id}/messages [get]
func (h *ChannelsHandler) History(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	channelID, err := channelIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.service.Get(ctx, channelID); err != nil {
		if errors.Is(err, channels.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	member, err := h.service.IsMember(ctx, userID, channelID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !member {
		return echo.NewHTTPError(http.StatusForbidden, "membership required")
	}
	history, err := h.messageService.ListByChannel(ctx, channelID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, history)
}
