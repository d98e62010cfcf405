package middleware

// identity.go holds the context keys set by the auth middleware and the
// helpers handlers use to read them back, plus client key derivation for
// the rate limiter.

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/credential-service/internal/model"
)

const (
	ctxUserID     = "user_id"
	ctxClaims     = "claims"
	ctxAuthMethod = "auth_method"
	ctxRequestID  = "request_id"
)

// Auth methods recorded under the auth_method context key.
const (
	AuthSession = "session"
	AuthAPIKey  = "api_key"
)

// UserID returns the authenticated user id set by SessionAuth or APIKeyAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Claims returns the session claims set by SessionAuth.
func Claims(c echo.Context) (model.SessionClaims, bool) {
	cl, ok := c.Get(ctxClaims).(model.SessionClaims)
	return cl, ok
}

// AuthMethod reports how the caller authenticated: AuthSession, AuthAPIKey,
// or "" for anonymous requests.
func AuthMethod(c echo.Context) string {
	m, _ := c.Get(ctxAuthMethod).(string)
	return m
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}

// ClientKey identifies the caller for rate limiting: the transport peer
// address, then the first X-Forwarded-For entry, then "unknown".
func ClientKey(c echo.Context) string {
	req := c.Request()
	if host := remoteHost(req.RemoteAddr); host != "" {
		return host
	}
	if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); first != "" {
			return first
		}
	}
	return "unknown"
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// bearerToken extracts the credential from "Authorization: Bearer <value>".
func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}
