package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/services/checklist"
	appctx "github.com/gotzkowsky2/kathario-saas-sub000/pkg/context"
)

var validate = validator.New()

// GetTenantID extracts the tenant ID from the request context
func GetTenantID(c echo.Context) (string, error) {
	tenantID := appctx.GetTenantID(c.Request().Context())
	if tenantID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	return tenantID, nil
}

// GetActor extracts the authenticated employee from the request context
func GetActor(c echo.Context) (checklist.Actor, error) {
	ctx := c.Request().Context()
	id := appctx.GetEmployeeID(ctx)
	if id == "" {
		return checklist.Actor{}, httperror.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	return checklist.Actor{ID: id, Name: appctx.GetEmployeeName(ctx)}, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}
