package middleware

import (
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/gotzkowsky2/kathario-saas-sub000/pkg/context"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/redis"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "kathario_session"

// Session resolves the employee session from the request cookie (or bearer
// token) and loads the tenant and employee into the request context. Requests
// without a valid session are rejected with 401.
func Session(store *redis.SessionStore, logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.Session")
			defer span.End()

			token := ""
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				token = cookie.Value
			}
			if token == "" {
				if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if token == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "login required")
			}

			session, err := store.Get(ctx, token)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Error("Failed to load session")
				return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load session")
			}
			if session == nil {
				return httperror.NewHTTPError(http.StatusUnauthorized, "login required")
			}

			if err := store.Touch(ctx, token); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("Failed to extend session")
			}

			ctx = appctx.SetTenantID(ctx, session.TenantID)
			ctx = appctx.SetEmployeeID(ctx, session.EmployeeID)
			ctx = appctx.SetEmployeeName(ctx, session.EmployeeName)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
