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

// AuthHandler serves registration, login and the current-user endpoint.
type AuthHandler struct {
	Creds *service.CredentialService
	Log   *zap.Logger
}

func NewAuthHandler(creds *service.CredentialService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Creds: creds, Log: log}
}

type authResp struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      service.UserSummary `json:"user"`
}

func toAuthResp(r service.AuthResult) authResp {
	return authResp{Token: r.Token.Token, ExpiresAt: r.Token.Exp, User: r.User}
}

// Register: create the user and return a session token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Creds.Register(ctx, req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toAuthResp(res))
}

// Login: accept email or username plus password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Creds.Login(ctx, req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toAuthResp(res))
}

// Me returns the identity carried by the session token.
func (h *AuthHandler) Me(c echo.Context) error {
	cl, ok := middleware.Claims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":    cl.UserID,
		"email":      cl.Email,
		"username":   cl.Username,
		"expires_at": cl.ExpiresAt,
	})
}
