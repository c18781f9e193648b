package instance

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

var instanceCols = []string{"id", "tenant_id", "template_id", "date", "workplace", "time_slot", "is_completed", "is_submitted", "submitted_at", "completed_at", "completed_by", "completed_by_id", "notes", "created_at", "updated_at"}

// Repository handles checklist instance persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new instance repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create materializes a template run for a date/workplace/time slot.
func (r *Repository) Create(ctx context.Context, tenantID, templateID string, date time.Time, workplace, timeSlot string) (*models.ChecklistInstance, error) {
	ctx, span := tracing.StartSpan(ctx, "instance.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	inst := &models.ChecklistInstance{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		TemplateID: templateID,
		Date:       date,
		Workplace:  workplace,
		TimeSlot:   timeSlot,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("checklist_instances")
	sb.Cols("id", "tenant_id", "template_id", "date", "workplace", "time_slot", "is_completed", "is_submitted", "created_at", "updated_at")
	sb.Values(inst.ID, inst.TenantID, inst.TemplateID, inst.Date, inst.Workplace, inst.TimeSlot, false, false, inst.CreatedAt, inst.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create checklist instance")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create checklist instance")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": inst.ID, "template_id": templateID}).Info("Created checklist instance")
	return inst, nil
}

// Get retrieves an instance by ID. A row owned by another tenant is reported
// as not found so existence never leaks across tenants.
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.ChecklistInstance, error) {
	ctx, span := tracing.StartSpan(ctx, "instance.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(instanceCols...)
	sb.From("checklist_instances")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var inst models.ChecklistInstance
	if err := r.db.GetContext(ctx, &inst, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("checklist instance %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get checklist instance")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get checklist instance")
	}

	return &inst, nil
}

// ListFilter narrows instance listings.
type ListFilter struct {
	TemplateID *string
	Date       *time.Time
	Workplace  *string
	TimeSlot   *string
	Submitted  *bool
}

// List retrieves instances for a tenant, newest first.
func (r *Repository) List(ctx context.Context, tenantID string, filter ListFilter, page, pageSize int) ([]models.ChecklistInstance, error) {
	ctx, span := tracing.StartSpan(ctx, "instance.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(instanceCols...)
	sb.From("checklist_instances")
	where := []string{sb.Equal("tenant_id", tenantID)}
	if filter.TemplateID != nil {
		where = append(where, sb.Equal("template_id", *filter.TemplateID))
	}
	if filter.Date != nil {
		where = append(where, sb.Equal("date", *filter.Date))
	}
	if filter.Workplace != nil {
		where = append(where, sb.Equal("workplace", *filter.Workplace))
	}
	if filter.TimeSlot != nil {
		where = append(where, sb.Equal("time_slot", *filter.TimeSlot))
	}
	if filter.Submitted != nil {
		where = append(where, sb.Equal("is_submitted", *filter.Submitted))
	}
	sb.Where(where...)
	sb.OrderBy("date DESC", "created_at DESC")
	sb.Limit(pageSize).Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var instances []models.ChecklistInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list checklist instances")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list checklist instances")
	}

	return instances, nil
}

// SetCompletion persists the derived instance-level completion flag. Passing
// completed=false clears the completer fields.
func (r *Repository) SetCompletion(ctx context.Context, tenantID, id string, completed bool, completedBy, completedByID *string, completedAt *time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "instance.Repository.SetCompletion")
	defer span.End()

	if !completed {
		completedBy = nil
		completedByID = nil
		completedAt = nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("checklist_instances")
	sb.Set(
		sb.Assign("is_completed", completed),
		sb.Assign("completed_by", completedBy),
		sb.Assign("completed_by_id", completedByID),
		sb.Assign("completed_at", completedAt),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set instance completion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set instance completion")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("checklist instance %s not found", id))
	}

	return nil
}

// MarkSubmitted flags the instance as submitted and stores the report notes.
func (r *Repository) MarkSubmitted(ctx context.Context, tenantID, id string, notes *string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "instance.Repository.MarkSubmitted")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("checklist_instances")
	assigns := []string{
		sb.Assign("is_submitted", true),
		sb.Assign("submitted_at", at),
		sb.Assign("updated_at", time.Now().UTC()),
	}
	if notes != nil {
		assigns = append(assigns, sb.Assign("notes", *notes))
	}
	sb.Set(assigns...)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_submitted", false),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark instance submitted")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark instance submitted")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "checklist instance is already submitted")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("Marked checklist instance submitted")
	return nil
}
