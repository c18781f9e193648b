package checklist

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/instance"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/progress"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/events"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

// memStore is an in-memory stand-in for every repository the service needs.
// It reproduces the tenant-scoping behavior of the SQL layer, a row owned by
// another tenant reads as not found.
type memStore struct {
	items      []models.ChecklistItem
	conns      []models.Connection
	instances  map[string]*models.ChecklistInstance
	itemRows   map[string]*models.ChecklistItemProgress
	connRows   map[string]*models.ConnectedItemProgress
	employees  []models.Employee
	tenantRows map[string]*models.Tenant
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		instances:  map[string]*models.ChecklistInstance{},
		itemRows:   map[string]*models.ChecklistItemProgress{},
		connRows:   map[string]*models.ConnectedItemProgress{},
		tenantRows: map[string]*models.Tenant{},
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("gen-%d", m.nextID)
}

func itemKey(instanceID, itemID string) string {
	return instanceID + "|" + itemID
}

func (m *memStore) addItem(tenantID, templateID, id string, parentID *string, content string, order int) {
	m.items = append(m.items, models.ChecklistItem{
		ID:         id,
		TenantID:   tenantID,
		TemplateID: templateID,
		ParentID:   parentID,
		Content:    content,
		SortOrder:  order,
		IsActive:   true,
	})
}

func (m *memStore) deactivateItem(id string) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].IsActive = false
		}
	}
}

func (m *memStore) addConnection(tenantID, id, itemID string, kind models.ConnectedItemKind, targetID string, order int) {
	m.conns = append(m.conns, models.Connection{
		ID:              id,
		TenantID:        tenantID,
		ChecklistItemID: itemID,
		ItemType:        kind,
		ItemID:          targetID,
		SortOrder:       order,
	})
}

func (m *memStore) addInstance(tenantID, templateID, id string) {
	m.instances[id] = &models.ChecklistInstance{
		ID:         id,
		TenantID:   tenantID,
		TemplateID: templateID,
		Date:       time.Now().UTC(),
		Workplace:  "kitchen",
		TimeSlot:   "closing",
	}
}

func (m *memStore) Get(ctx context.Context, tenantID string, id string) (*models.ChecklistItem, error) {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].TenantID == tenantID {
			return &m.items[i], nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "checklist item not found")
}

func (m *memStore) ListActiveByTemplate(ctx context.Context, tenantID, templateID string) ([]models.ChecklistItem, error) {
	var out []models.ChecklistItem
	for _, item := range m.items {
		if item.TenantID == tenantID && item.TemplateID == templateID && item.IsActive {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) ListChildren(ctx context.Context, tenantID, parentID string) ([]models.ChecklistItem, error) {
	var out []models.ChecklistItem
	for _, item := range m.items {
		if item.TenantID == tenantID && item.ParentID != nil && *item.ParentID == parentID && item.IsActive {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

type connStore struct{ m *memStore }

func (c connStore) Get(ctx context.Context, tenantID string, id string) (*models.Connection, error) {
	for i := range c.m.conns {
		if c.m.conns[i].ID == id && c.m.conns[i].TenantID == tenantID {
			return &c.m.conns[i], nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "connection not found")
}

func (c connStore) ListByItem(ctx context.Context, tenantID, checklistItemID string) ([]models.Connection, error) {
	var out []models.Connection
	for _, conn := range c.m.conns {
		if conn.TenantID == tenantID && conn.ChecklistItemID == checklistItemID {
			out = append(out, conn)
		}
	}
	return out, nil
}

func (c connStore) ListByItems(ctx context.Context, tenantID string, checklistItemIDs []string) ([]models.Connection, error) {
	wanted := map[string]bool{}
	for _, id := range checklistItemIDs {
		wanted[id] = true
	}
	var out []models.Connection
	for _, conn := range c.m.conns {
		if conn.TenantID == tenantID && wanted[conn.ChecklistItemID] {
			out = append(out, conn)
		}
	}
	return out, nil
}

type instanceStore struct{ m *memStore }

func (s instanceStore) Get(ctx context.Context, tenantID string, id string) (*models.ChecklistInstance, error) {
	inst, ok := s.m.instances[id]
	if !ok || inst.TenantID != tenantID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "checklist instance not found")
	}
	return inst, nil
}

func (s instanceStore) List(ctx context.Context, tenantID string, filter instance.ListFilter, page, pageSize int) ([]models.ChecklistInstance, error) {
	var out []models.ChecklistInstance
	for _, inst := range s.m.instances {
		if inst.TenantID == tenantID {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (s instanceStore) SetCompletion(ctx context.Context, tenantID, id string, completed bool, completedBy, completedByID *string, completedAt *time.Time) error {
	inst, ok := s.m.instances[id]
	if !ok || inst.TenantID != tenantID {
		return httperror.NewHTTPError(http.StatusNotFound, "checklist instance not found")
	}
	inst.IsCompleted = completed
	inst.CompletedBy = completedBy
	inst.CompletedByID = completedByID
	inst.CompletedAt = completedAt
	return nil
}

func (s instanceStore) MarkSubmitted(ctx context.Context, tenantID, id string, notes *string, at time.Time) error {
	inst, ok := s.m.instances[id]
	if !ok || inst.TenantID != tenantID {
		return httperror.NewHTTPError(http.StatusNotFound, "checklist instance not found")
	}
	if inst.IsSubmitted {
		return httperror.NewHTTPError(http.StatusBadRequest, "checklist instance is already submitted")
	}
	inst.IsSubmitted = true
	inst.SubmittedAt = &at
	if notes != nil {
		inst.Notes = notes
	}
	return nil
}

type ledgerStore struct{ m *memStore }

func (l ledgerStore) UpsertItemProgress(ctx context.Context, tenantID string, rec progress.ItemUpsert) (*models.ChecklistItemProgress, error) {
	key := itemKey(rec.InstanceID, rec.ItemID)
	row, ok := l.m.itemRows[key]
	if !ok {
		row = &models.ChecklistItemProgress{
			ID:         l.m.id(),
			TenantID:   tenantID,
			InstanceID: rec.InstanceID,
			ItemID:     rec.ItemID,
			CreatedAt:  time.Now().UTC(),
		}
		l.m.itemRows[key] = row
	}
	row.IsCompleted = rec.IsCompleted
	row.CompletedBy = rec.CompletedBy
	row.CompletedByID = rec.CompletedByID
	row.CompletedAt = rec.CompletedAt
	if rec.Notes != nil {
		row.Notes = rec.Notes
	}
	row.UpdatedAt = time.Now().UTC()
	return row, nil
}

func (l ledgerStore) UpsertConnectionProgress(ctx context.Context, tenantID string, rec progress.ConnectionUpsert) (*models.ConnectedItemProgress, error) {
	key := itemKey(rec.InstanceID, rec.ConnectionID)
	row, ok := l.m.connRows[key]
	if !ok {
		row = &models.ConnectedItemProgress{
			ID:           l.m.id(),
			TenantID:     tenantID,
			InstanceID:   rec.InstanceID,
			ConnectionID: rec.ConnectionID,
			CreatedAt:    time.Now().UTC(),
		}
		l.m.connRows[key] = row
	}
	row.ItemID = rec.ItemID
	row.IsCompleted = rec.IsCompleted
	row.CompletedBy = rec.CompletedBy
	row.CompletedByID = rec.CompletedByID
	row.CompletedAt = rec.CompletedAt
	if rec.Notes != nil {
		row.Notes = rec.Notes
	}
	row.UpdatedAt = time.Now().UTC()
	return row, nil
}

func (l ledgerStore) GetItemProgress(ctx context.Context, tenantID, instanceID, itemID string) (*models.ChecklistItemProgress, error) {
	row, ok := l.m.itemRows[itemKey(instanceID, itemID)]
	if !ok || row.TenantID != tenantID {
		return nil, nil
	}
	return row, nil
}

func (l ledgerStore) GetConnectionProgress(ctx context.Context, tenantID, instanceID, connectionID string) (*models.ConnectedItemProgress, error) {
	row, ok := l.m.connRows[itemKey(instanceID, connectionID)]
	if !ok || row.TenantID != tenantID {
		return nil, nil
	}
	return row, nil
}

func (l ledgerStore) ListItemProgress(ctx context.Context, tenantID, instanceID string) ([]models.ChecklistItemProgress, error) {
	var out []models.ChecklistItemProgress
	for _, row := range l.m.itemRows {
		if row.TenantID == tenantID && row.InstanceID == instanceID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (l ledgerStore) ListItemProgressForItems(ctx context.Context, tenantID, instanceID string, itemIDs []string) ([]models.ChecklistItemProgress, error) {
	wanted := map[string]bool{}
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var out []models.ChecklistItemProgress
	for _, row := range l.m.itemRows {
		if row.TenantID == tenantID && row.InstanceID == instanceID && wanted[row.ItemID] {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (l ledgerStore) ListConnectionProgress(ctx context.Context, tenantID, instanceID string) ([]models.ConnectedItemProgress, error) {
	var out []models.ConnectedItemProgress
	for _, row := range l.m.connRows {
		if row.TenantID == tenantID && row.InstanceID == instanceID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (l ledgerStore) ListConnectionProgressByItem(ctx context.Context, tenantID, instanceID, itemID string) ([]models.ConnectedItemProgress, error) {
	var out []models.ConnectedItemProgress
	for _, row := range l.m.connRows {
		if row.TenantID == tenantID && row.InstanceID == instanceID && row.ItemID == itemID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (l ledgerStore) CountItemProgress(ctx context.Context, tenantID, instanceID string) (progress.LedgerCounts, error) {
	var counts progress.LedgerCounts
	for _, row := range l.m.itemRows {
		if row.TenantID == tenantID && row.InstanceID == instanceID {
			counts.Total++
			if row.IsCompleted {
				counts.Completed++
			}
		}
	}
	return counts, nil
}

func (l ledgerStore) CountConnectionProgress(ctx context.Context, tenantID, instanceID string) (progress.LedgerCounts, error) {
	var counts progress.LedgerCounts
	for _, row := range l.m.connRows {
		if row.TenantID == tenantID && row.InstanceID == instanceID {
			counts.Total++
			if row.IsCompleted {
				counts.Completed++
			}
		}
	}
	return counts, nil
}

type employeeStore struct{ m *memStore }

func (e employeeStore) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Employee, error) {
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Employee
	for _, emp := range e.m.employees {
		if emp.TenantID == tenantID && wanted[emp.ID] {
			out = append(out, emp)
		}
	}
	return out, nil
}

type tenantStore struct{ m *memStore }

func (t tenantStore) Get(ctx context.Context, id string) (*models.Tenant, error) {
	tnt, ok := t.m.tenantRows[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "tenant not found")
	}
	return tnt, nil
}

type stubResolver struct {
	names map[string]string
}

func (r stubResolver) ResolveNames(ctx context.Context, tenantID string, connections []models.Connection) (map[string]string, error) {
	if r.names == nil {
		return map[string]string{}, nil
	}
	return r.names, nil
}

type recordingMailer struct {
	sent [][]string
	err  error
}

func (m *recordingMailer) SendEmail(ctx context.Context, to []string, subject, html string) error {
	m.sent = append(m.sent, to)
	return m.err
}

type recordingEmitter struct {
	submitted []events.SubmissionData
	completed int
}

func (e *recordingEmitter) EmitChecklistSubmitted(ctx context.Context, tenantID, instanceID, templateID string, data events.SubmissionData) error {
	e.submitted = append(e.submitted, data)
	return nil
}

func (e *recordingEmitter) EmitChecklistCompleted(ctx context.Context, tenantID, instanceID, templateID string, completedBy string, completedAt time.Time) error {
	e.completed++
	return nil
}
