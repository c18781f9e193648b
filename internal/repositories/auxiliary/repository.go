package auxiliary

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/database"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// Repository provides read access to the entities a checklist item can be
// connected to. Only the fields needed for display are loaded here, the full
// CRUD surfaces live in their own services.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new auxiliary entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// NameRef is a resolved display name for a connected entity.
type NameRef struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// InventoryNames resolves inventory item ids to display names
func (r *Repository) InventoryNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "auxiliary.Repository.InventoryNames")
	defer span.End()

	return r.names(ctx, tenantID, "inventory_items", "name", ids)
}

// ManualNames resolves manual ids to display titles
func (r *Repository) ManualNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "auxiliary.Repository.ManualNames")
	defer span.End()

	return r.names(ctx, tenantID, "manuals", "title", ids)
}

// PrecautionNames resolves precaution ids to display titles
func (r *Repository) PrecautionNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "auxiliary.Repository.PrecautionNames")
	defer span.End()

	return r.names(ctx, tenantID, "precautions", "title", ids)
}

func (r *Repository) names(ctx context.Context, tenantID, table, nameCol string, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", sb.As(nameCol, "name"))
	sb.From(table)
	sb.Where(
		sb.In("id", values...),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var refs []NameRef
	if err := r.db.SelectContext(ctx, &refs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to resolve names from %s", table)
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve connected entity names")
	}

	names := make(map[string]string, len(refs))
	for _, ref := range refs {
		names[ref.ID] = ref.Name
	}

	return names, nil
}

// GetInventoryItem retrieves one inventory item scoped to the tenant
func (r *Repository) GetInventoryItem(ctx context.Context, tenantID, id string) (*models.InventoryItem, error) {
	ctx, span := tracing.StartSpan(ctx, "auxiliary.Repository.GetInventoryItem")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "unit", "quantity", "is_active", "created_at", "updated_at", "deleted_at")
	sb.From("inventory_items")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var item models.InventoryItem
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "inventory item not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get inventory item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get inventory item")
	}

	return &item, nil
}
