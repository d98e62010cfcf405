package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/service"
)

// KeyVerifier resolves an API key to its owner.
type KeyVerifier interface {
	Verify(ctx context.Context, raw string) (uint64, error)
}

// APIKeyAuth authenticates requests carrying "Authorization: Bearer tk_...".
// Invalid keys get 401; store failures get 500.
func APIKeyAuth(v KeyVerifier, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing API key"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			uid, err := v.Verify(ctx, raw)
			if err != nil {
				if service.KindOf(err) == service.KindAuth {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": service.MsgInvalidAPIKey})
				}
				log.Error("api key verification failed", zap.String("request_id", RequestID(c)), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.MsgInternal})
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxAuthMethod, AuthAPIKey)
			return next(c)
		}
	}
}
