package handlers

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/instance"
)

// InstanceHandler handles instance lifecycle endpoints not covered by the
// progress API, namely opening a new run of a template.
type InstanceHandler struct {
	instances *instance.Repository
	logger    ectologger.Logger
}

// NewInstanceHandler creates a new instance handler
func NewInstanceHandler(instances *instance.Repository, logger ectologger.Logger) *InstanceHandler {
	return &InstanceHandler{
		instances: instances,
		logger:    logger,
	}
}

// Register registers the instance routes
func (h *InstanceHandler) Register(g *echo.Group) {
	g.POST("", h.CreateInstance)
	g.GET("/:instanceId", h.GetInstance)
}

// CreateInstanceRequest is the request body for opening a checklist run
type CreateInstanceRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Workplace  string `json:"workplace" validate:"required"`
	TimeSlot   string `json:"time_slot" validate:"required"`
}

// CreateInstance opens a new checklist run for a template
func (h *InstanceHandler) CreateInstance(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req CreateInstanceRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
	}

	ctx := c.Request().Context()
	created, err := h.instances.Create(ctx, tenantID, req.TemplateID, date, req.Workplace, req.TimeSlot)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{"id": created.ID, "template_id": req.TemplateID}).Info("Opened checklist instance")

	return CreatedResponse(c, created)
}

// GetInstance fetches a single checklist instance
func (h *InstanceHandler) GetInstance(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	inst, err := h.instances.Get(c.Request().Context(), tenantID, c.Param("instanceId"))
	if err != nil {
		return err
	}

	return SuccessResponse(c, inst)
}
