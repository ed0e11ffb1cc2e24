package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestSwaggerUIRoute(t *testing.T) {
	e := echo.New()
	NewSwaggerHandler(slog.Default()).Register(e)

	for _, path := range []string{"/api/docs", "/api/docs/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, strings.Contains(rec.Body.String(), "/api/swagger.json"),
			"UI page does not reference the spec route")
	}
}
