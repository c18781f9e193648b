package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/gotzkowsky2/kathario-saas-sub000/pkg/context"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// AdminClaims are the token claims the admin API cares about.
type AdminClaims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

// AdminAuthentication verifies OIDC bearer tokens for the admin API and loads
// the tenant and operator identity into the request context. The employee
// session flow does not pass through here.
func AdminAuthentication(logger ectologger.Logger, issuer string, clientID string) echo.MiddlewareFunc {
	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		log.Fatalf("oidc provider: %v", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.AdminAuthentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			raw := strings.TrimPrefix(auth, "Bearer ")
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			idToken, err := verifier.Verify(ctx, raw)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			var claims AdminClaims
			if err := idToken.Claims(&claims); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("failed to parse claims")
				return echo.NewHTTPError(http.StatusUnauthorized, "cannot parse claims")
			}

			if claims.TenantID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no tenant")
			}

			ctx = appctx.SetTenantID(ctx, claims.TenantID)
			ctx = appctx.SetEmployeeID(ctx, claims.Sub)
			ctx = appctx.SetEmployeeName(ctx, claims.Name)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
