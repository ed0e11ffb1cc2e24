package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/canchat/canchat/internal/auth"
)

// requireUserID extracts the authenticated user id from the request context.
func requireUserID(c echo.Context) (int64, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return userID, nil
}

// channelIDParam parses the :id path parameter.
func channelIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid channel id")
	}
	return id, nil
}
