package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/festival-boxoffice/internal/utils"
)

// Context keys set by JWTAuth.
const (
    CtxUserID     = "user_id"
    CtxRole       = "role"
    CtxFestivalID = "festival_id"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's user, role and festival into the request context as
// uint64, string and uint64 respectively.  The provided secret must match
// the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(CtxUserID, claims.UserID)
            c.Set(CtxRole, claims.Role)
            c.Set(CtxFestivalID, claims.FestivalID)
            return next(c)
        }
    }
}
