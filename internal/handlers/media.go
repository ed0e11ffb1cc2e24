package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/chat"
	"github.com/canchat/canchat/internal/media"
	"github.com/canchat/canchat/internal/storage"
)

// MediaHandler serves image message uploads and the stored media files.
type MediaHandler struct {
	mediaService *media.Service
	gateway      *chat.Gateway
	provider     *storage.LocalProvider
	maxImageSize int64
	logger       *slog.Logger
}

// NewMediaHandler creates a media handler. provider may be nil when media
// files are served elsewhere.
func NewMediaHandler(log *slog.Logger, mediaService *media.Service, gateway *chat.Gateway, provider *storage.LocalProvider, maxImageSize int64) *MediaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{
		mediaService: mediaService,
		gateway:      gateway,
		provider:     provider,
		maxImageSize: maxImageSize,
		logger:       log.With(slog.String("handler", "media")),
	}
}

// Register mounts the upload route and the static media tree.
func (h *MediaHandler) Register(e *echo.Echo) {
	e.POST("/api/send_image_message", h.SendImageMessage)
	if h.provider != nil {
		e.Static("/media", h.provider.Root())
	}
}

// SendImageMessage godoc
// @Summary Send image message
// @Description Store an image and post it as a message to the channel
// @Tags media
// @Accept multipart/form-data
// @Param channel_id formData int true "Channel id"
// @Param file formData file true "Image"
// @Success 201 {object} messages.Message
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /api/send_image_message [post]
func (h *MediaHandler) SendImageMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	channelID, err := strconv.ParseInt(c.FormValue("channel_id"), 10, 64)
	if err != nil || channelID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid channel id")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	ctx := c.Request().Context()
	asset, err := h.mediaService.Ingest(ctx, media.IngestInput{
		Kind:     media.KindMessage,
		Mime:     fileHeader.Header.Get("Content-Type"),
		Reader:   src,
		MaxBytes: h.maxImageSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedType):
			return echo.NewHTTPError(http.StatusBadRequest, "only png, jpeg, and gif images are accepted")
		case errors.Is(err, media.ErrAssetTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	msg, err := h.gateway.SendFromUser(ctx, userID, channelID, "", h.mediaService.AccessPath(asset))
	if err != nil {
		switch {
		case errors.Is(err, channels.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		case errors.Is(err, channels.ErrNotMember):
			return echo.NewHTTPError(http.StatusForbidden, "membership required")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("image message sent",
		slog.Int64("message_id", msg.ID),
		slog.Int64("channel_id", channelID))
	return c.JSON(http.StatusCreated, msg)
}
