package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/middleware"
	"github.com/iliyamo/credential-service/internal/service"
)

// writeError renders a service error. Causes of upstream and internal
// failures are logged and never sent to the client.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	se := service.AsError(err)
	switch se.Kind {
	case service.KindValidation:
		body := echo.Map{"error": se.Message}
		if len(se.Fields) > 0 {
			body["details"] = se.Fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case service.KindAuth:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": se.Message})
	case service.KindConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": se.Message})
	case service.KindRateLimit:
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too_many_requests", "message": se.Message})
	case service.KindUpstream:
		log.Warn("upstream failure",
			zap.String("request_id", middleware.RequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(se.Err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": se.Message})
	default:
		log.Error("internal error",
			zap.String("request_id", middleware.RequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.MsgInternal})
	}
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}
