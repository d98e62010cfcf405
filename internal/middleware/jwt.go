package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/credential-service/internal/model"
)

// SessionVerifier checks a session token.
type SessionVerifier interface {
	Authenticate(token string) (model.SessionClaims, error)
}

// SessionAuth returns an Echo middleware that validates a Bearer session
// token and stores the user id and claims in the context. Handlers read
// them with UserID and Claims.
func SessionAuth(v SessionVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := v.Authenticate(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxClaims, claims)
			c.Set(ctxAuthMethod, AuthSession)
			return next(c)
		}
	}
}
