package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/tenant"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

// TenantHandler exposes the tenant's notification settings
type TenantHandler struct {
	tenants *tenant.Repository
	logger  ectologger.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenants *tenant.Repository, logger ectologger.Logger) *TenantHandler {
	return &TenantHandler{
		tenants: tenants,
		logger:  logger,
	}
}

// Register registers the tenant routes
func (h *TenantHandler) Register(g *echo.Group) {
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
}

// GetSettings returns the tenant's notification settings
func (h *TenantHandler) GetSettings(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	t, err := h.tenants.Get(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, t.NotificationSettings.Data)
}

// UpdateSettingsRequest is the request body for updating notification settings
type UpdateSettingsRequest struct {
	NotifyOnSubmission    bool     `json:"notify_on_submission"`
	SubmissionRecipients  []string `json:"submission_recipients"`
	SubmissionSubjectNote string   `json:"submission_subject_note"`
}

// UpdateSettings replaces the tenant's notification settings
func (h *TenantHandler) UpdateSettings(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.NotifyOnSubmission && len(req.SubmissionRecipients) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "submission_recipients is required when notify_on_submission is enabled")
	}

	ctx := c.Request().Context()
	settings := models.NotificationSettings{
		NotifyOnSubmission:    req.NotifyOnSubmission,
		SubmissionRecipients:  req.SubmissionRecipients,
		SubmissionSubjectNote: req.SubmissionSubjectNote,
	}
	if err := h.tenants.UpdateNotificationSettings(ctx, tenantID, settings); err != nil {
		return err
	}

	h.logger.WithContext(ctx).Info("Updated tenant notification settings")

	return SuccessResponse(c, settings)
}
