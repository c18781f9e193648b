// Package middleware provides HTTP middleware for the checklist API.
package middleware

import (
	"github.com/labstack/echo/v4"

	appctx "github.com/gotzkowsky2/kathario-saas-sub000/pkg/context"
)

// TestAuth middleware extracts the tenant and employee from headers when auth
// is disabled. This allows testing the API without Redis-backed sessions.
// Headers:
//   - X-Tenant-ID: The tenant ID
//   - X-Employee-ID: The employee ID
//   - X-Employee-Name: The employee display name
//
// WARNING: Only use this when AUTH_ENABLED=false. Do not enable in production.
func TestAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if tenantID := c.Request().Header.Get("X-Tenant-ID"); tenantID != "" {
				ctx = appctx.SetTenantID(ctx, tenantID)
			}

			if employeeID := c.Request().Header.Get("X-Employee-ID"); employeeID != "" {
				ctx = appctx.SetEmployeeID(ctx, employeeID)
			}

			if name := c.Request().Header.Get("X-Employee-Name"); name != "" {
				ctx = appctx.SetEmployeeName(ctx, name)
			}

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
