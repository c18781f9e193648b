package checklist

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/progress"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// ToggleItem records an explicit completion state for one item, walks the
// parent chain recomputing each ancestor from its children's ledger rows, and
// refreshes the instance-level completion flag.
//
// The engine does not reject toggles on non-leaf items. A later child or
// connection toggle recomputes and overwrites whatever was set here.
func (s *Service) ToggleItem(ctx context.Context, actor Actor, tenantID, instanceID, itemID string, isCompleted bool, notes *string) (*ToggleResult, error) {
	ctx, span := tracing.StartSpan(ctx, "checklist.Service.ToggleItem")
	defer span.End()

	if instanceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "instance_id is required")
	}
	if itemID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "item_id is required")
	}

	inst, err := s.instances.Get(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	item, err := s.items.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}

	row, err := s.writeItemProgress(ctx, actor, tenantID, instanceID, itemID, isCompleted, notes)
	if err != nil {
		return nil, err
	}

	if err := s.walkParents(ctx, actor, tenantID, instanceID, item.ParentID); err != nil {
		return nil, err
	}

	if err := s.refreshInstanceCompletion(ctx, actor, tenantID, inst.ID, inst.TemplateID, inst.IsCompleted); err != nil {
		return nil, err
	}

	return &ToggleResult{Success: true, ProgressID: row.ID}, nil
}

// writeItemProgress upserts one item ledger row. Re-applying the state a row
// already holds keeps its original completer and timestamp.
func (s *Service) writeItemProgress(ctx context.Context, actor Actor, tenantID, instanceID, itemID string, isCompleted bool, notes *string) (*models.ChecklistItemProgress, error) {
	rec := progress.ItemUpsert{
		InstanceID:  instanceID,
		ItemID:      itemID,
		IsCompleted: isCompleted,
		Notes:       notes,
	}

	existing, err := s.ledger.GetItemProgress(ctx, tenantID, instanceID, itemID)
	if err != nil {
		return nil, err
	}

	if isCompleted {
		if existing != nil && existing.IsCompleted {
			rec.CompletedBy = existing.CompletedBy
			rec.CompletedByID = existing.CompletedByID
			rec.CompletedAt = existing.CompletedAt
		} else {
			now := time.Now().UTC()
			rec.CompletedBy = &actor.Name
			rec.CompletedByID = &actor.ID
			rec.CompletedAt = &now
		}
	}

	return s.ledger.UpsertItemProgress(ctx, tenantID, rec)
}

// walkParents recomputes each ancestor's explicit ledger row from its direct
// children's rows, starting at the given parent and stopping at the root.
// Connections are deliberately ignored here; connection-driven completion is
// derived at read time and only ever persisted one level by ToggleConnection.
func (s *Service) walkParents(ctx context.Context, actor Actor, tenantID, instanceID string, parentID *string) error {
	ctx, span := tracing.StartSpan(ctx, "checklist.Service.walkParents")
	defer span.End()

	for parentID != nil {
		children, err := s.items.ListChildren(ctx, tenantID, *parentID)
		if err != nil {
			return err
		}

		childIDs := make([]string, 0, len(children))
		for _, child := range children {
			childIDs = append(childIDs, child.ID)
		}

		rows, err := s.ledger.ListItemProgressForItems(ctx, tenantID, instanceID, childIDs)
		if err != nil {
			return err
		}

		completed := 0
		for _, row := range rows {
			if row.IsCompleted {
				completed++
			}
		}
		allDone := len(children) > 0 && completed == len(children)

		if _, err := s.writeItemProgress(ctx, actor, tenantID, instanceID, *parentID, allDone, nil); err != nil {
			return err
		}

		parent, err := s.items.Get(ctx, tenantID, *parentID)
		if err != nil {
			return err
		}
		parentID = parent.ParentID
	}

	return nil
}

// refreshInstanceCompletion recomputes the persisted instance flag from the
// item ledger alone. Connection rows do not participate here. The completion
// event fires only when the flag transitions from false to true, wasCompleted
// carries the state the instance held before this toggle.
func (s *Service) refreshInstanceCompletion(ctx context.Context, actor Actor, tenantID, instanceID, templateID string, wasCompleted bool) error {
	ctx, span := tracing.StartSpan(ctx, "checklist.Service.refreshInstanceCompletion")
	defer span.End()

	counts, err := s.ledger.CountItemProgress(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}

	if counts.Total > 0 && counts.Completed == counts.Total {
		now := time.Now().UTC()
		if err := s.instances.SetCompletion(ctx, tenantID, instanceID, true, &actor.Name, &actor.ID, &now); err != nil {
			return err
		}
		if s.emitter != nil && !wasCompleted {
			if err := s.emitter.EmitChecklistCompleted(ctx, tenantID, instanceID, templateID, actor.Name, now); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit completion event")
			}
		}
		return nil
	}

	return s.instances.SetCompletion(ctx, tenantID, instanceID, false, nil, nil, nil)
}

// ToggleConnection records completion for one connection and persists the
// owning item's derived state when every sibling connection is complete. The
// write stops at the owning item, ancestors above it pick the change up at
// read time or on the next item-level toggle.
func (s *Service) ToggleConnection(ctx context.Context, actor Actor, tenantID, instanceID, connectionID string, isCompleted bool, notes *string) (*ToggleResult, error) {
	ctx, span := tracing.StartSpan(ctx, "checklist.Service.ToggleConnection")
	defer span.End()

	if instanceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "instance_id is required")
	}
	if connectionID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "connection_id is required")
	}

	if _, err := s.instances.Get(ctx, tenantID, instanceID); err != nil {
		return nil, err
	}

	conn, err := s.connections.Get(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}

	rec := progress.ConnectionUpsert{
		InstanceID:   instanceID,
		ConnectionID: connectionID,
		ItemID:       conn.ChecklistItemID,
		IsCompleted:  isCompleted,
		Notes:        notes,
	}

	existing, err := s.ledger.GetConnectionProgress(ctx, tenantID, instanceID, connectionID)
	if err != nil {
		return nil, err
	}

	if isCompleted {
		if existing != nil && existing.IsCompleted {
			rec.CompletedBy = existing.CompletedBy
			rec.CompletedByID = existing.CompletedByID
			rec.CompletedAt = existing.CompletedAt
		} else {
			now := time.Now().UTC()
			rec.CompletedBy = &actor.Name
			rec.CompletedByID = &actor.ID
			rec.CompletedAt = &now
		}
	}

	row, err := s.ledger.UpsertConnectionProgress(ctx, tenantID, rec)
	if err != nil {
		return nil, err
	}

	siblings, err := s.connections.ListByItem(ctx, tenantID, conn.ChecklistItemID)
	if err != nil {
		return nil, err
	}

	siblingRows, err := s.ledger.ListConnectionProgressByItem(ctx, tenantID, instanceID, conn.ChecklistItemID)
	if err != nil {
		return nil, err
	}

	completedByConn := map[string]bool{}
	for _, sr := range siblingRows {
		completedByConn[sr.ConnectionID] = sr.IsCompleted
	}

	allDone := len(siblings) > 0
	for _, sibling := range siblings {
		if !completedByConn[sibling.ID] {
			allDone = false
			break
		}
	}

	if _, err := s.writeItemProgress(ctx, actor, tenantID, instanceID, conn.ChecklistItemID, allDone, nil); err != nil {
		return nil, err
	}

	return &ToggleResult{Success: true, ProgressID: row.ID}, nil
}
