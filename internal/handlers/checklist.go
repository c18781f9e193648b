package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/instance"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/services/checklist"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

// progressCacheSeconds bounds how long a progress read may be served from
// cache. Conditional requests revalidate against the ETag.
const progressCacheSeconds = 15

type ProgressService interface {
	GetProgress(ctx context.Context, tenantID, instanceID string) (*checklist.ProgressView, error)
	ToggleItem(ctx context.Context, actor checklist.Actor, tenantID, instanceID, itemID string, isCompleted bool, notes *string) (*checklist.ToggleResult, error)
	ToggleConnection(ctx context.Context, actor checklist.Actor, tenantID, instanceID, connectionID string, isCompleted bool, notes *string) (*checklist.ToggleResult, error)
	Submit(ctx context.Context, actor checklist.Actor, tenantID, instanceID string, notes *string, requireConnectedComplete bool) (*checklist.SubmitResult, error)
	ListInstances(ctx context.Context, tenantID string, filter instance.ListFilter, page, pageSize int) ([]models.ChecklistInstance, error)
}

// ProgressCache holds rendered progress bodies for a few seconds so a screen
// full of polling clients does not rebuild the tree on every request. Writes
// through the toggle and submit endpoints invalidate the entry.
type ProgressCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ChecklistHandler handles the checklist progress API endpoints
type ChecklistHandler struct {
	svc    ProgressService
	cache  ProgressCache
	logger ectologger.Logger
}

// NewChecklistHandler creates a new checklist handler. The cache may be nil.
func NewChecklistHandler(svc ProgressService, cache ProgressCache, logger ectologger.Logger) *ChecklistHandler {
	return &ChecklistHandler{
		svc:    svc,
		cache:  cache,
		logger: logger,
	}
}

// Register registers the checklist routes
func (h *ChecklistHandler) Register(g *echo.Group) {
	g.GET("", h.ListInstances)
	g.GET("/:instanceId/progress", h.GetProgress)
	g.POST("/:instanceId/items/:itemId/toggle", h.ToggleItem)
	g.POST("/:instanceId/connections/:connectionId/toggle", h.ToggleConnection)
	g.POST("/:instanceId/submit", h.Submit)
}

// ListInstances lists the tenant's checklist instances
func (h *ChecklistHandler) ListInstances(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var filter instance.ListFilter
	if v := c.QueryParam("template_id"); v != "" {
		filter.TemplateID = &v
	}
	if v := c.QueryParam("workplace"); v != "" {
		filter.Workplace = &v
	}
	if v := c.QueryParam("time_slot"); v != "" {
		filter.TimeSlot = &v
	}
	if v := c.QueryParam("date"); v != "" {
		date, err := time.Parse("2006-01-02", v)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		}
		filter.Date = &date
	}
	if v := c.QueryParam("submitted"); v != "" {
		submitted, err := strconv.ParseBool(v)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "submitted must be a boolean")
		}
		filter.Submitted = &submitted
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	instances, err := h.svc.ListInstances(c.Request().Context(), tenantID, filter, page, pageSize)
	if err != nil {
		return err
	}

	return SuccessResponse(c, instances)
}

// GetProgress returns the materialized completion tree for an instance
func (h *ChecklistHandler) GetProgress(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	key := progressCacheKey(tenantID, c.Param("instanceId"))

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, key); err == nil && cached != "" {
			return h.respondProgress(c, []byte(cached))
		} else if err != nil && !errors.Is(err, goredis.Nil) {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to read progress cache")
		}
	}

	view, err := h.svc.GetProgress(ctx, tenantID, c.Param("instanceId"))
	if err != nil {
		return err
	}

	body, err := json.Marshal(view)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to encode progress")
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, string(body), progressCacheSeconds*time.Second); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to write progress cache")
		}
	}

	return h.respondProgress(c, body)
}

func (h *ChecklistHandler) respondProgress(c echo.Context, body []byte) error {
	sum := sha256.Sum256(body)
	etag := fmt.Sprintf(`W/"%s"`, hex.EncodeToString(sum[:16]))

	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", progressCacheSeconds))

	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	return c.JSONBlob(http.StatusOK, body)
}

func progressCacheKey(tenantID, instanceID string) string {
	return fmt.Sprintf("progress:%s:%s", tenantID, instanceID)
}

func (h *ChecklistHandler) invalidateProgress(ctx context.Context, tenantID, instanceID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, progressCacheKey(tenantID, instanceID)); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate progress cache")
	}
}

// ToggleRequest is the request body for item and connection toggles
type ToggleRequest struct {
	IsCompleted *bool   `json:"is_completed" validate:"required"`
	Notes       *string `json:"notes,omitempty"`
}

// ToggleItem records completion state for one checklist item
func (h *ChecklistHandler) ToggleItem(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	var req ToggleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.IsCompleted == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "is_completed is required")
	}

	ctx := c.Request().Context()
	result, err := h.svc.ToggleItem(ctx, actor, tenantID, c.Param("instanceId"), c.Param("itemId"), *req.IsCompleted, req.Notes)
	if err != nil {
		return err
	}
	h.invalidateProgress(ctx, tenantID, c.Param("instanceId"))

	return SuccessResponse(c, result)
}

// ToggleConnection records completion state for one connection
func (h *ChecklistHandler) ToggleConnection(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	var req ToggleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.IsCompleted == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "is_completed is required")
	}

	ctx := c.Request().Context()
	result, err := h.svc.ToggleConnection(ctx, actor, tenantID, c.Param("instanceId"), c.Param("connectionId"), *req.IsCompleted, req.Notes)
	if err != nil {
		return err
	}
	h.invalidateProgress(ctx, tenantID, c.Param("instanceId"))

	return SuccessResponse(c, result)
}

// SubmitRequest is the request body for a submission
type SubmitRequest struct {
	Notes                    *string `json:"notes,omitempty"`
	RequireConnectedComplete bool    `json:"require_connected_complete"`
}

// Submit closes out a fully completed instance
func (h *ChecklistHandler) Submit(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	result, err := h.svc.Submit(ctx, actor, tenantID, c.Param("instanceId"), req.Notes, req.RequireConnectedComplete)
	if err != nil {
		return err
	}
	h.invalidateProgress(ctx, tenantID, c.Param("instanceId"))

	return SuccessResponse(c, result)
}
