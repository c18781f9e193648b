// Package checklist implements the checklist progress engine: per-instance
// completion trees, toggle propagation, and the submission gate.
package checklist

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/instance"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/progress"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/events"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

type ItemRepository interface {
	Get(ctx context.Context, tenantID string, id string) (*models.ChecklistItem, error)
	ListActiveByTemplate(ctx context.Context, tenantID, templateID string) ([]models.ChecklistItem, error)
	ListChildren(ctx context.Context, tenantID, parentID string) ([]models.ChecklistItem, error)
}

type ConnectionRepository interface {
	Get(ctx context.Context, tenantID string, id string) (*models.Connection, error)
	ListByItem(ctx context.Context, tenantID, checklistItemID string) ([]models.Connection, error)
	ListByItems(ctx context.Context, tenantID string, checklistItemIDs []string) ([]models.Connection, error)
}

type InstanceRepository interface {
	Get(ctx context.Context, tenantID string, id string) (*models.ChecklistInstance, error)
	List(ctx context.Context, tenantID string, filter instance.ListFilter, page, pageSize int) ([]models.ChecklistInstance, error)
	SetCompletion(ctx context.Context, tenantID, id string, completed bool, completedBy, completedByID *string, completedAt *time.Time) error
	MarkSubmitted(ctx context.Context, tenantID, id string, notes *string, at time.Time) error
}

type LedgerRepository interface {
	UpsertItemProgress(ctx context.Context, tenantID string, rec progress.ItemUpsert) (*models.ChecklistItemProgress, error)
	UpsertConnectionProgress(ctx context.Context, tenantID string, rec progress.ConnectionUpsert) (*models.ConnectedItemProgress, error)
	GetItemProgress(ctx context.Context, tenantID, instanceID, itemID string) (*models.ChecklistItemProgress, error)
	GetConnectionProgress(ctx context.Context, tenantID, instanceID, connectionID string) (*models.ConnectedItemProgress, error)
	ListItemProgress(ctx context.Context, tenantID, instanceID string) ([]models.ChecklistItemProgress, error)
	ListItemProgressForItems(ctx context.Context, tenantID, instanceID string, itemIDs []string) ([]models.ChecklistItemProgress, error)
	ListConnectionProgress(ctx context.Context, tenantID, instanceID string) ([]models.ConnectedItemProgress, error)
	ListConnectionProgressByItem(ctx context.Context, tenantID, instanceID, itemID string) ([]models.ConnectedItemProgress, error)
	CountItemProgress(ctx context.Context, tenantID, instanceID string) (progress.LedgerCounts, error)
	CountConnectionProgress(ctx context.Context, tenantID, instanceID string) (progress.LedgerCounts, error)
}

type EmployeeRepository interface {
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Employee, error)
}

type TenantRepository interface {
	Get(ctx context.Context, id string) (*models.Tenant, error)
}

type ConnectionNameResolver interface {
	ResolveNames(ctx context.Context, tenantID string, connections []models.Connection) (map[string]string, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to []string, subject, html string) error
}

type EventEmitter interface {
	EmitChecklistSubmitted(ctx context.Context, tenantID, instanceID, templateID string, data events.SubmissionData) error
	EmitChecklistCompleted(ctx context.Context, tenantID, instanceID, templateID string, completedBy string, completedAt time.Time) error
}

// Actor is the authenticated employee performing a toggle or submission.
type Actor struct {
	ID   string
	Name string
}

// Service wires the stores into the progress engine. All methods are tenant
// scoped; a row owned by another tenant is indistinguishable from a missing
// one.
type Service struct {
	items       ItemRepository
	connections ConnectionRepository
	instances   InstanceRepository
	ledger      LedgerRepository
	employees   EmployeeRepository
	tenants     TenantRepository
	resolver    ConnectionNameResolver
	mailer      Mailer
	emitter     EventEmitter
	logger      ectologger.Logger
}

// NewService creates a new checklist progress service. Mailer and emitter are
// optional, nil disables the corresponding submission side effect.
func NewService(
	items ItemRepository,
	connections ConnectionRepository,
	instances InstanceRepository,
	ledger LedgerRepository,
	employees EmployeeRepository,
	tenants TenantRepository,
	resolver ConnectionNameResolver,
	mailer Mailer,
	emitter EventEmitter,
	logger ectologger.Logger,
) *Service {
	return &Service{
		items:       items,
		connections: connections,
		instances:   instances,
		ledger:      ledger,
		employees:   employees,
		tenants:     tenants,
		resolver:    resolver,
		mailer:      mailer,
		emitter:     emitter,
		logger:      logger,
	}
}

// ConnectionView is one connection with its resolved progress state.
type ConnectionView struct {
	ConnectionID string                   `json:"connection_id"`
	ItemType     models.ConnectedItemKind `json:"item_type"`
	ItemID       string                   `json:"item_id"`
	Name         string                   `json:"name,omitempty"`
	IsCompleted  bool                     `json:"is_completed"`
	Notes        *string                  `json:"notes,omitempty"`
	CompletedBy  *string                  `json:"completed_by,omitempty"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// ItemNode is one node of the materialized completion tree.
type ItemNode struct {
	ID           string           `json:"id"`
	Content      string           `json:"content"`
	Instructions *string          `json:"instructions,omitempty"`
	SortOrder    int              `json:"sort_order"`
	IsCompleted  bool             `json:"is_completed"`
	Notes        *string          `json:"notes,omitempty"`
	CompletedBy  *string          `json:"completed_by,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Connections  []ConnectionView `json:"connections"`
	Children     []*ItemNode      `json:"children"`
}

// Summary carries the aggregate completion counters for an instance.
type Summary struct {
	TotalMain          int `json:"total_main"`
	CompletedMain      int `json:"completed_main"`
	TotalConnected     int `json:"total_connected"`
	CompletedConnected int `json:"completed_connected"`
	Percentage         int `json:"percentage"`
}

// FlatItem is one row of the flat item listing returned beside the tree.
type FlatItem struct {
	ID          string  `json:"id"`
	ParentID    *string `json:"parent_id,omitempty"`
	Content     string  `json:"content"`
	IsCompleted bool    `json:"is_completed"`
	IsLeaf      bool    `json:"is_leaf"`
}

// ProgressView is the full read model for one instance.
type ProgressView struct {
	Instance *models.ChecklistInstance `json:"instance"`
	Tree     []*ItemNode               `json:"tree"`
	Items    []FlatItem                `json:"items"`
	Summary  Summary                   `json:"summary"`
}

// ToggleResult reports a persisted toggle.
type ToggleResult struct {
	Success    bool   `json:"success"`
	ProgressID string `json:"progress_id"`
}

// SubmitResult reports a submission and its notification side effect.
type SubmitResult struct {
	Success             bool `json:"success"`
	EmailSent           bool `json:"email_sent"`
	EmailRecipientCount int  `json:"email_recipient_count"`
}

// ListInstances returns the tenant's instances, newest first.
func (s *Service) ListInstances(ctx context.Context, tenantID string, filter instance.ListFilter, page, pageSize int) ([]models.ChecklistInstance, error) {
	return s.instances.List(ctx, tenantID, filter, page, pageSize)
}
