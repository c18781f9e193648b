package checklistitem

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/database"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

var itemCols = []string{"id", "tenant_id", "template_id", "parent_id", "content", "instructions", "sort_order", "is_active", "created_at", "updated_at", "deleted_at"}

// Repository handles checklist item persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new checklist item repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateItemRequest carries the fields settable at item creation.
type CreateItemRequest struct {
	TemplateID   string
	ParentID     *string
	Content      string
	Instructions *string
	SortOrder    int
}

// Create creates a new checklist item
func (r *Repository) Create(ctx context.Context, tenantID string, req CreateItemRequest) (*models.ChecklistItem, error) {
	ctx, span := tracing.StartSpan(ctx, "checklistitem.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	item := &models.ChecklistItem{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		TemplateID:   req.TemplateID,
		ParentID:     req.ParentID,
		Content:      req.Content,
		Instructions: req.Instructions,
		SortOrder:    req.SortOrder,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("checklist_items")
	sb.Cols("id", "tenant_id", "template_id", "parent_id", "content", "instructions", "sort_order", "is_active", "created_at", "updated_at")
	sb.Values(item.ID, item.TenantID, item.TemplateID, item.ParentID, item.Content, item.Instructions, item.SortOrder, item.IsActive, item.CreatedAt, item.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create checklist item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create checklist item")
	}

	return item, nil
}

// Get retrieves a checklist item by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.ChecklistItem, error) {
	ctx, span := tracing.StartSpan(ctx, "checklistitem.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemCols...)
	sb.From("checklist_items")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var item models.ChecklistItem
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("checklist item %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get checklist item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get checklist item")
	}

	return &item, nil
}

// ListActiveByTemplate retrieves the active items of a template, ordered by
// sibling order with insertion order breaking ties.
func (r *Repository) ListActiveByTemplate(ctx context.Context, tenantID, templateID string) ([]models.ChecklistItem, error) {
	ctx, span := tracing.StartSpan(ctx, "checklistitem.Repository.ListActiveByTemplate")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemCols...)
	sb.From("checklist_items")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("template_id", templateID),
		sb.Equal("is_active", true),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("sort_order ASC", "created_at ASC")

	query, args := sb.Build()
	var items []models.ChecklistItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list checklist items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list checklist items")
	}

	return items, nil
}

// ListChildren retrieves the active direct children of an item.
func (r *Repository) ListChildren(ctx context.Context, tenantID, parentID string) ([]models.ChecklistItem, error) {
	ctx, span := tracing.StartSpan(ctx, "checklistitem.Repository.ListChildren")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemCols...)
	sb.From("checklist_items")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("parent_id", parentID),
		sb.Equal("is_active", true),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("sort_order ASC", "created_at ASC")

	query, args := sb.Build()
	var items []models.ChecklistItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list child checklist items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list child checklist items")
	}

	return items, nil
}

// UpdateItemRequest carries the mutable item fields.
type UpdateItemRequest struct {
	Content      *string
	Instructions *string
	SortOrder    *int
	IsActive     *bool
	ParentID     *string
}

// Update updates a checklist item
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req UpdateItemRequest) (*models.ChecklistItem, error) {
	ctx, span := tracing.StartSpan(ctx, "checklistitem.Repository.Update")
	defer span.End()

	existing, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		existing.Content = *req.Content
	}
	if req.Instructions != nil {
		existing.Instructions = req.Instructions
	}
	if req.SortOrder != nil {
		existing.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.ParentID != nil {
		existing.ParentID = req.ParentID
	}
	existing.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("checklist_items")
	sb.Set(
		sb.Assign("content", existing.Content),
		sb.Assign("instructions", existing.Instructions),
		sb.Assign("sort_order", existing.SortOrder),
		sb.Assign("is_active", existing.IsActive),
		sb.Assign("parent_id", existing.ParentID),
		sb.Assign("updated_at", existing.UpdatedAt),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update checklist item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update checklist item")
	}

	return existing, nil
}

// Deactivate soft deletes an item. Connections and progress rows keep
// referencing it; reads filter on is_active instead.
func (r *Repository) Deactivate(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "checklistitem.Repository.Deactivate")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("checklist_items")
	sb.Set(
		sb.Assign("is_active", false),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to deactivate checklist item")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate checklist item")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("checklist item %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("Deactivated checklist item")
	return nil
}
