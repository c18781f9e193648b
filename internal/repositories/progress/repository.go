package progress

import (
	"context"
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

var itemProgressCols = []string{"id", "tenant_id", "instance_id", "item_id", "is_completed", "notes", "completed_by", "completed_by_id", "completed_at", "created_at", "updated_at"}

var connProgressCols = []string{"id", "tenant_id", "instance_id", "connection_id", "item_id", "is_completed", "notes", "completed_by", "completed_by_id", "completed_at", "created_at", "updated_at"}

// Repository is the progress ledger: two tables recording explicit completion
// state per (instance, item) and per (instance, connection). Rows are created
// lazily on first toggle and never deleted during normal operation.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new progress ledger repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ItemUpsert carries one item-level ledger write. Notes of nil leaves any
// stored note untouched.
type ItemUpsert struct {
	InstanceID    string
	ItemID        string
	IsCompleted   bool
	Notes         *string
	CompletedBy   *string
	CompletedByID *string
	CompletedAt   *time.Time
}

// UpsertItemProgress creates or updates the row keyed by (instance_id,
// item_id) and returns the stored row.
func (r *Repository) UpsertItemProgress(ctx context.Context, tenantID string, rec ItemUpsert) (*models.ChecklistItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.UpsertItemProgress")
	defer span.End()

	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto("checklist_item_progress")
	ib.Cols("id", "tenant_id", "instance_id", "item_id", "is_completed", "notes", "completed_by", "completed_by_id", "completed_at", "created_at", "updated_at")
	ib.Values(uuid.New().String(), tenantID, rec.InstanceID, rec.ItemID, rec.IsCompleted, rec.Notes, rec.CompletedBy, rec.CompletedByID, rec.CompletedAt, now, now)

	ub := ib.OnConflict("instance_id", "item_id")
	assigns := []string{
		ub.Assign("is_completed", database.Excluded("is_completed")),
		ub.Assign("completed_by", database.Excluded("completed_by")),
		ub.Assign("completed_by_id", database.Excluded("completed_by_id")),
		ub.Assign("completed_at", database.Excluded("completed_at")),
		ub.Assign("updated_at", now),
	}
	if rec.Notes != nil {
		assigns = append(assigns, ub.Assign("notes", database.Excluded("notes")))
	}
	ub.Set(assigns...)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"instance_id": rec.InstanceID,
			"item_id":     rec.ItemID,
		}).Error("Failed to upsert item progress")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert item progress")
	}

	return r.GetItemProgress(ctx, tenantID, rec.InstanceID, rec.ItemID)
}

// GetItemProgress fetches the ledger row for one item, nil when absent.
func (r *Repository) GetItemProgress(ctx context.Context, tenantID, instanceID, itemID string) (*models.ChecklistItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.GetItemProgress")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemProgressCols...)
	sb.From("checklist_item_progress")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
		sb.Equal("item_id", itemID),
	)

	query, args := sb.Build()
	var row models.ChecklistItemProgress
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get item progress")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get item progress")
	}

	return &row, nil
}

// ListItemProgress retrieves every item-level ledger row for an instance.
func (r *Repository) ListItemProgress(ctx context.Context, tenantID, instanceID string) ([]models.ChecklistItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.ListItemProgress")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemProgressCols...)
	sb.From("checklist_item_progress")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
	)

	query, args := sb.Build()
	var rows []models.ChecklistItemProgress
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list item progress")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list item progress")
	}

	return rows, nil
}

// ListItemProgressForItems retrieves the item-level rows for a set of items
// within one instance. Used by the parent walk to count completed children.
func (r *Repository) ListItemProgressForItems(ctx context.Context, tenantID, instanceID string, itemIDs []string) ([]models.ChecklistItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.ListItemProgressForItems")
	defer span.End()

	if len(itemIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemProgressCols...)
	sb.From("checklist_item_progress")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
		sb.In("item_id", ids...),
	)

	query, args := sb.Build()
	var rows []models.ChecklistItemProgress
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list item progress for items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list item progress for items")
	}

	return rows, nil
}

// LedgerCounts aggregates one ledger table for an instance.
type LedgerCounts struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
}

// CountItemProgress aggregates the item-level ledger for an instance.
func (r *Repository) CountItemProgress(ctx context.Context, tenantID, instanceID string) (LedgerCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.CountItemProgress")
	defer span.End()

	return r.countLedger(ctx, tenantID, instanceID, "checklist_item_progress")
}

// CountConnectionProgress aggregates the connection-level ledger for an instance.
func (r *Repository) CountConnectionProgress(ctx context.Context, tenantID, instanceID string) (LedgerCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.CountConnectionProgress")
	defer span.End()

	return r.countLedger(ctx, tenantID, instanceID, "connected_item_progress")
}

func (r *Repository) countLedger(ctx context.Context, tenantID, instanceID, table string) (LedgerCounts, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*) AS total", "COUNT(*) FILTER (WHERE is_completed) AS completed")
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
	)

	query, args := sb.Build()
	var counts LedgerCounts
	if err := r.db.GetContext(ctx, &counts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to count %s", table)
		return LedgerCounts{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count progress")
	}

	return counts, nil
}

// ConnectionUpsert carries one connection-level ledger write.
type ConnectionUpsert struct {
	InstanceID    string
	ConnectionID  string
	ItemID        string
	IsCompleted   bool
	Notes         *string
	CompletedBy   *string
	CompletedByID *string
	CompletedAt   *time.Time
}

// UpsertConnectionProgress creates or updates the row keyed by (instance_id,
// connection_id), denormalizing the owning item, and returns the stored row.
func (r *Repository) UpsertConnectionProgress(ctx context.Context, tenantID string, rec ConnectionUpsert) (*models.ConnectedItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.UpsertConnectionProgress")
	defer span.End()

	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto("connected_item_progress")
	ib.Cols("id", "tenant_id", "instance_id", "connection_id", "item_id", "is_completed", "notes", "completed_by", "completed_by_id", "completed_at", "created_at", "updated_at")
	ib.Values(uuid.New().String(), tenantID, rec.InstanceID, rec.ConnectionID, rec.ItemID, rec.IsCompleted, rec.Notes, rec.CompletedBy, rec.CompletedByID, rec.CompletedAt, now, now)

	ub := ib.OnConflict("instance_id", "connection_id")
	assigns := []string{
		ub.Assign("is_completed", database.Excluded("is_completed")),
		ub.Assign("item_id", database.Excluded("item_id")),
		ub.Assign("completed_by", database.Excluded("completed_by")),
		ub.Assign("completed_by_id", database.Excluded("completed_by_id")),
		ub.Assign("completed_at", database.Excluded("completed_at")),
		ub.Assign("updated_at", now),
	}
	if rec.Notes != nil {
		assigns = append(assigns, ub.Assign("notes", database.Excluded("notes")))
	}
	ub.Set(assigns...)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"instance_id":   rec.InstanceID,
			"connection_id": rec.ConnectionID,
		}).Error("Failed to upsert connection progress")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert connection progress")
	}

	return r.GetConnectionProgress(ctx, tenantID, rec.InstanceID, rec.ConnectionID)
}

// GetConnectionProgress fetches the ledger row for one connection, nil when absent.
func (r *Repository) GetConnectionProgress(ctx context.Context, tenantID, instanceID, connectionID string) (*models.ConnectedItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.GetConnectionProgress")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connProgressCols...)
	sb.From("connected_item_progress")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
		sb.Equal("connection_id", connectionID),
	)

	query, args := sb.Build()
	var row models.ConnectedItemProgress
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get connection progress")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get connection progress")
	}

	return &row, nil
}

// ListConnectionProgress retrieves every connection-level row for an instance.
func (r *Repository) ListConnectionProgress(ctx context.Context, tenantID, instanceID string) ([]models.ConnectedItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.ListConnectionProgress")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connProgressCols...)
	sb.From("connected_item_progress")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
	)

	query, args := sb.Build()
	var rows []models.ConnectedItemProgress
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list connection progress")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list connection progress")
	}

	return rows, nil
}

// ListConnectionProgressByItem retrieves the connection-level rows whose
// denormalized owning item matches. Used by the sibling rule.
func (r *Repository) ListConnectionProgressByItem(ctx context.Context, tenantID, instanceID, itemID string) ([]models.ConnectedItemProgress, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.ListConnectionProgressByItem")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connProgressCols...)
	sb.From("connected_item_progress")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("instance_id", instanceID),
		sb.Equal("item_id", itemID),
	)

	query, args := sb.Build()
	var rows []models.ConnectedItemProgress
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list connection progress by item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list connection progress by item")
	}

	return rows, nil
}
