package tenant

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/database"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

var tenantCols = []string{"id", "name", "subdomain", "notification_settings", "created_at", "updated_at"}

// Repository provides access to tenant records and their settings
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new tenant repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a tenant by id
func (r *Repository) Get(ctx context.Context, id string) (*models.Tenant, error) {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(tenantCols...)
	sb.From("tenants")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var t models.Tenant
	if err := r.db.GetContext(ctx, &t, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "tenant not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get tenant")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tenant")
	}

	return &t, nil
}

// UpdateNotificationSettings replaces the tenant notification settings
func (r *Repository) UpdateNotificationSettings(ctx context.Context, id string, settings models.NotificationSettings) error {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.UpdateNotificationSettings")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("tenants")
	ub.Set(
		ub.Assign("notification_settings", database.JSONB[models.NotificationSettings]{Data: settings}),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update tenant notification settings")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tenant")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read rows affected")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tenant")
	}
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "tenant not found")
	}

	return nil
}
