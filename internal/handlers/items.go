package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/checklistitem"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/connection"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

// ItemHandler handles the item catalog admin endpoints
type ItemHandler struct {
	items       *checklistitem.Repository
	connections *connection.Repository
	logger      ectologger.Logger
}

// NewItemHandler creates a new item catalog handler
func NewItemHandler(items *checklistitem.Repository, connections *connection.Repository, logger ectologger.Logger) *ItemHandler {
	return &ItemHandler{
		items:       items,
		connections: connections,
		logger:      logger,
	}
}

// Register registers the item catalog routes
func (h *ItemHandler) Register(g *echo.Group) {
	g.GET("", h.ListItems)
	g.POST("", h.CreateItem)
	g.PUT("/:id", h.UpdateItem)
	g.DELETE("/:id", h.DeactivateItem)
	g.GET("/:id/connections", h.ListConnections)
	g.POST("/:id/connections", h.CreateConnection)
	g.DELETE("/:id/connections/:connectionId", h.DeleteConnection)
}

// ListItems lists a template's active items
func (h *ItemHandler) ListItems(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	templateID := c.QueryParam("template_id")
	if templateID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "template_id query parameter is required")
	}

	items, err := h.items.ListActiveByTemplate(c.Request().Context(), tenantID, templateID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, items)
}

// CreateItemRequest is the request body for creating a checklist item
type CreateItemRequest struct {
	TemplateID   string  `json:"template_id" validate:"required"`
	ParentID     *string `json:"parent_id,omitempty"`
	Content      string  `json:"content" validate:"required"`
	Instructions *string `json:"instructions,omitempty"`
	SortOrder    int     `json:"sort_order"`
}

// CreateItem creates a new checklist item
func (h *ItemHandler) CreateItem(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if req.ParentID != nil {
		// the parent must exist within the same template
		parent, err := h.items.Get(ctx, tenantID, *req.ParentID)
		if err != nil {
			return err
		}
		if parent.TemplateID != req.TemplateID {
			return httperror.NewHTTPError(http.StatusBadRequest, "parent belongs to a different template")
		}
	}

	created, err := h.items.Create(ctx, tenantID, checklistitem.CreateItemRequest{
		TemplateID:   req.TemplateID,
		ParentID:     req.ParentID,
		Content:      req.Content,
		Instructions: req.Instructions,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{"id": created.ID}).Info("Created checklist item")

	return CreatedResponse(c, created)
}

// UpdateItemRequest is the request body for updating a checklist item
type UpdateItemRequest struct {
	Content      *string `json:"content,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	SortOrder    *int    `json:"sort_order,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
	ParentID     *string `json:"parent_id,omitempty"`
}

// UpdateItem updates a checklist item
func (h *ItemHandler) UpdateItem(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.items.Update(c.Request().Context(), tenantID, c.Param("id"), checklistitem.UpdateItemRequest{
		Content:      req.Content,
		Instructions: req.Instructions,
		SortOrder:    req.SortOrder,
		IsActive:     req.IsActive,
		ParentID:     req.ParentID,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// DeactivateItem soft deletes a checklist item
func (h *ItemHandler) DeactivateItem(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	if err := h.items.Deactivate(c.Request().Context(), tenantID, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ListConnections lists an item's connections
func (h *ItemHandler) ListConnections(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	conns, err := h.connections.ListByItem(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return SuccessResponse(c, conns)
}

// CreateConnectionRequest is the request body for connecting an entity
type CreateConnectionRequest struct {
	ItemType  string `json:"item_type" validate:"required"`
	ItemID    string `json:"item_id" validate:"required"`
	SortOrder int    `json:"sort_order"`
}

// CreateConnection links an auxiliary entity to a checklist item
func (h *ItemHandler) CreateConnection(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind, err := models.ParseConnectedItemKind(req.ItemType)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if _, err := h.items.Get(ctx, tenantID, c.Param("id")); err != nil {
		return err
	}

	created, err := h.connections.Create(ctx, tenantID, c.Param("id"), kind, req.ItemID, req.SortOrder)
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// DeleteConnection removes a connection from an item
func (h *ItemHandler) DeleteConnection(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	if err := h.connections.Delete(c.Request().Context(), tenantID, c.Param("connectionId")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
