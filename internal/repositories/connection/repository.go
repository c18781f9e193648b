package connection

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

var connectionCols = []string{"id", "tenant_id", "checklist_item_id", "item_type", "item_id", "sort_order", "created_at", "deleted_at"}

// Repository handles connection persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new connection repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create links a checklist item to an auxiliary entity.
func (r *Repository) Create(ctx context.Context, tenantID, checklistItemID string, itemType models.ConnectedItemKind, itemID string, sortOrder int) (*models.Connection, error) {
	ctx, span := tracing.StartSpan(ctx, "connection.Repository.Create")
	defer span.End()

	if !itemType.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid item type %q", itemType)
	}

	conn := &models.Connection{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		ChecklistItemID: checklistItemID,
		ItemType:        itemType,
		ItemID:          itemID,
		SortOrder:       sortOrder,
		CreatedAt:       time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("connections")
	sb.Cols("id", "tenant_id", "checklist_item_id", "item_type", "item_id", "sort_order", "created_at")
	sb.Values(conn.ID, conn.TenantID, conn.ChecklistItemID, conn.ItemType, conn.ItemID, conn.SortOrder, conn.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create connection")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create connection")
	}

	return conn, nil
}

// Get retrieves a connection by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.Connection, error) {
	ctx, span := tracing.StartSpan(ctx, "connection.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connectionCols...)
	sb.From("connections")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var conn models.Connection
	if err := r.db.GetContext(ctx, &conn, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("connection %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get connection")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get connection")
	}

	return &conn, nil
}

// ListByItem retrieves the connections owned by one checklist item, ordered.
func (r *Repository) ListByItem(ctx context.Context, tenantID, checklistItemID string) ([]models.Connection, error) {
	ctx, span := tracing.StartSpan(ctx, "connection.Repository.ListByItem")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connectionCols...)
	sb.From("connections")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("checklist_item_id", checklistItemID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("sort_order ASC", "created_at ASC")

	query, args := sb.Build()
	var conns []models.Connection
	if err := r.db.SelectContext(ctx, &conns, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list connections")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list connections")
	}

	return conns, nil
}

// ListByItems retrieves all connections owned by any of the given items.
func (r *Repository) ListByItems(ctx context.Context, tenantID string, checklistItemIDs []string) ([]models.Connection, error) {
	ctx, span := tracing.StartSpan(ctx, "connection.Repository.ListByItems")
	defer span.End()

	if len(checklistItemIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(checklistItemIDs))
	for _, id := range checklistItemIDs {
		ids = append(ids, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connectionCols...)
	sb.From("connections")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("checklist_item_id", ids...),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("sort_order ASC", "created_at ASC")

	query, args := sb.Build()
	var conns []models.Connection
	if err := r.db.SelectContext(ctx, &conns, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list connections by items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list connections by items")
	}

	return conns, nil
}

// Delete soft deletes a connection
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "connection.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("connections")
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete connection")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete connection")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("connection %s not found", id))
	}

	return nil
}
