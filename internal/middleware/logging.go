package middleware

import (
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/festival-boxoffice/internal/logger"
)

// RequestLogger logs one line per request with method, path, status,
// latency and user.  Server errors log at error level.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            req := c.Request()
            status := c.Response().Status
            fields := []any{
                "method", req.Method,
                "path", req.URL.Path,
                "status", status,
                "latency", time.Since(start).String(),
                "user", userID(c),
                "ip", c.RealIP(),
            }
            switch {
            case status >= 500:
                if err != nil {
                    fields = append(fields, "error", err.Error())
                }
                log.Error("request", fields...)
            case status >= 400:
                log.Warn("request", fields...)
            default:
                log.Info("request", fields...)
            }
            return nil
        }
    }
}
