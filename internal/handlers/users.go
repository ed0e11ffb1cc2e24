package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/canchat/canchat/internal/media"
	"github.com/canchat/canchat/internal/users"
)

// UsersHandler serves the current user's profile and avatar upload.
type UsersHandler struct {
	service      *users.Service
	mediaService *media.Service
	maxImageSize int64
	logger       *slog.Logger
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(log *slog.Logger, service *users.Service, mediaService *media.Service, maxImageSize int64) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service:      service,
		mediaService: mediaService,
		maxImageSize: maxImageSize,
		logger:       log.With(slog.String("handler", "users")),
	}
}

// Register mounts the profile routes on the Echo instance.
func (h *UsersHandler) Register(e *echo.Echo) {
	e.GET("/api/user", h.GetUser)
	e.PUT("/api/user", h.UpdateUser)
	e.POST("/api/upload/avatar", h.UploadAvatar)
}

// GetUser godoc
// @Summary Get current user
// @Description Get current user profile
// @Tags users
// @Success 200 {object} users.User
// @Failure 401 {object} ErrorResponse
// @Router /api/user [get]
func (h *UsersHandler) GetUser(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser godoc
// @Summary Update current user profile
// @Description Update nickname, avatar, or bio
// @Tags users
// @Param payload body users.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} users.User
// @Failure 400 {object} ErrorResponse
// @Router /api/user [put]
func (h *UsersHandler) UpdateUser(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req users.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// UploadAvatar godoc
// @Summary Upload avatar
// @Description Store an avatar image and set it on the profile
// @Tags users
// @Accept multipart/form-data
// @Param file formData file true "Avatar image"
// @Success 200 {object} users.User
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /api/upload/avatar [post]
func (h *UsersHandler) UploadAvatar(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
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

	asset, err := h.mediaService.Ingest(c.Request().Context(), media.IngestInput{
		Kind:     media.KindAvatar,
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

	avatarPath := h.mediaService.AccessPath(asset)
	user, err := h.service.UpdateProfile(c.Request().Context(), userID, users.UpdateProfileRequest{
		Avatar: &avatarPath,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("avatar updated", slog.Int64("user_id", userID))
	return c.JSON(http.StatusOK, user)
}
