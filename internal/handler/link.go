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

// StateCookie holds the signed state between Initiate and Callback.
const StateCookie = "link_state"

const stateCookiePath = "/v1/link"

// LinkHandler drives the third-party account linking flow.
type LinkHandler struct {
	Links         *service.LinkService
	SecureCookies bool
	SuccessURL    string // redirect target after a successful callback; JSON when empty
	Log           *zap.Logger
}

func NewLinkHandler(links *service.LinkService, secureCookies bool, successURL string, log *zap.Logger) *LinkHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkHandler{Links: links, SecureCookies: secureCookies, SuccessURL: successURL, Log: log}
}

// Initiate returns the provider authorization URL and sets the state cookie.
func (h *LinkHandler) Initiate(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	start, err := h.Links.Initiate(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     StateCookie,
		Value:    start.State,
		Path:     stateCookiePath,
		MaxAge:   int(h.Links.StateTTL() / time.Second),
		Expires:  start.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"authUrl": start.AuthURL,
		"message": "open authUrl to authorize the account link",
	})
}

// Callback completes the flow. The state cookie is cleared whatever the outcome.
func (h *LinkHandler) Callback(c echo.Context) error {
	var stored string
	if ck, err := c.Cookie(StateCookie); err == nil {
		stored = ck.Value
	}
	h.clearState(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	tok, err := h.Links.Callback(ctx, service.CallbackInput{
		Code:          c.QueryParam("code"),
		State:         c.QueryParam("state"),
		StoredState:   stored,
		ProviderError: c.QueryParam("error"),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if h.SuccessURL != "" {
		return c.Redirect(http.StatusFound, h.SuccessURL)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"linked":     true,
		"provider":   tok.Provider,
		"expires_at": tok.ExpiresAt,
	})
}

// Status reports whether the API key owner has a usable linked token.
func (h *LinkHandler) Status(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	st, err := h.Links.Status(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *LinkHandler) clearState(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
