// Package auth issues and validates the JWTs that bind requests and
// websocket sessions to a user identity.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user"

// ErrNoIdentity is returned when a request carries no authenticated user.
var ErrNoIdentity = errors.New("no authenticated user in context")

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs an access token for the given user id.
func GenerateToken(userID int64, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	now := time.Now()
	expiresAt := now.Add(expiresIn)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken validates a raw token string and returns the user id it names.
func ParseToken(raw, secret string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

// JWTMiddleware returns the echo JWT middleware configured with our claims type.
// Requests matched by skipper pass through unauthenticated.
func JWTMiddleware(secret string, skipper func(c echo.Context) bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper:    skipper,
		SigningKey: []byte(secret),
		ContextKey: userContextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return &Claims{}
		},
	})
}

// UserIDFromContext extracts the authenticated user id installed by JWTMiddleware.
func UserIDFromContext(c echo.Context) (int64, error) {
	token, ok := c.Get(userContextKey).(*jwt.Token)
	if !ok || token == nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, ErrNoIdentity.Error())
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, ErrNoIdentity.Error())
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, ErrNoIdentity.Error())
	}
	return userID, nil
}
