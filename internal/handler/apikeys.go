package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/middleware"
	"github.com/iliyamo/credential-service/internal/service"
)

// APIKeyHandler lets a signed-in user create and list API keys.
type APIKeyHandler struct {
	Keys *service.APIKeyManager
	Log  *zap.Logger
}

func NewAPIKeyHandler(keys *service.APIKeyManager, log *zap.Logger) *APIKeyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIKeyHandler{Keys: keys, Log: log}
}

// Generate returns a new key. This is the only response that carries it in full.
func (h *APIKeyHandler) Generate(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key, err := h.Keys.Generate(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"apiKey": key})
}

// List returns the caller's keys, newest first, masked.
func (h *APIKeyHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	keys, err := h.Keys.List(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"apiKeys": keys})
}
