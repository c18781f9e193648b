package employee

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

var employeeCols = []string{"id", "tenant_id", "name", "email", "is_active", "created_at", "deleted_at"}

// Repository provides read access to the tenant employee directory
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new employee repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves an employee by id scoped to the tenant
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(employeeCols...)
	sb.From("employees")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "employee not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get employee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get employee")
	}

	return &emp, nil
}

// GetByEmail retrieves an active employee by email scoped to the tenant
func (r *Repository) GetByEmail(ctx context.Context, tenantID, email string) (*models.Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.GetByEmail")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(employeeCols...)
	sb.From("employees")
	sb.Where(
		sb.Equal("email", email),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "employee not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get employee by email")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get employee")
	}

	return &emp, nil
}

// ListByIDs retrieves the employees matching the given ids. Missing ids are
// simply absent from the result, callers fall back to the stored name.
func (r *Repository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.ListByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(employeeCols...)
	sb.From("employees")
	sb.Where(
		sb.In("id", values...),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list employees by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list employees")
	}

	return employees, nil
}
