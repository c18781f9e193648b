package checklist

import (
	"context"
	"math"
	"net/http"
	"sort"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// GetProgress materializes the completion tree for one instance: active items
// stitched with their connections and both progress ledgers, completion
// derived bottom-up, aggregate counters accumulated along the way.
func (s *Service) GetProgress(ctx context.Context, tenantID, instanceID string) (*ProgressView, error) {
	ctx, span := tracing.StartSpan(ctx, "checklist.Service.GetProgress")
	defer span.End()

	if tenantID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}
	if instanceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "instance_id is required")
	}

	inst, err := s.instances.Get(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListActiveByTemplate(ctx, tenantID, inst.TemplateID)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	conns, err := s.connections.ListByItems(ctx, tenantID, itemIDs)
	if err != nil {
		return nil, err
	}

	itemRows, err := s.ledger.ListItemProgress(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	connRows, err := s.ledger.ListConnectionProgress(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	names, err := s.resolver.ResolveNames(ctx, tenantID, conns)
	if err != nil {
		return nil, err
	}

	resolveName, err := s.completerNames(ctx, tenantID, itemRows, connRows)
	if err != nil {
		return nil, err
	}

	b := &treeBuilder{
		childrenByParent: map[string][]models.ChecklistItem{},
		connsByItem:      map[string][]models.Connection{},
		itemProg:         map[string]*models.ChecklistItemProgress{},
		connProg:         map[string]*models.ConnectedItemProgress{},
		names:            names,
		resolveName:      resolveName,
		nodes:            map[string]*ItemNode{},
	}

	active := make(map[string]bool, len(items))
	for _, item := range items {
		active[item.ID] = true
	}

	// An item whose parent has been deactivated is promoted to a root so it
	// still renders and counts.
	var roots []models.ChecklistItem
	for _, item := range items {
		if item.ParentID == nil || !active[*item.ParentID] {
			roots = append(roots, item)
			continue
		}
		b.childrenByParent[*item.ParentID] = append(b.childrenByParent[*item.ParentID], item)
	}
	for _, conn := range conns {
		b.connsByItem[conn.ChecklistItemID] = append(b.connsByItem[conn.ChecklistItemID], conn)
	}
	for _, group := range b.connsByItem {
		sort.SliceStable(group, func(i, j int) bool { return group[i].SortOrder < group[j].SortOrder })
	}
	for i := range itemRows {
		b.itemProg[itemRows[i].ItemID] = &itemRows[i]
	}
	for i := range connRows {
		b.connProg[connRows[i].ConnectionID] = &connRows[i]
	}

	tree := make([]*ItemNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, b.build(root))
	}

	denominator := b.summary.TotalMain + b.summary.TotalConnected
	if denominator > 0 {
		completed := b.summary.CompletedMain + b.summary.CompletedConnected
		b.summary.Percentage = int(math.Round(100 * float64(completed) / float64(denominator)))
	}

	flat := make([]FlatItem, 0, len(items))
	for _, item := range items {
		node := b.nodes[item.ID]
		flat = append(flat, FlatItem{
			ID:          item.ID,
			ParentID:    item.ParentID,
			Content:     item.Content,
			IsCompleted: node.IsCompleted,
			IsLeaf:      len(node.Children) == 0 && len(node.Connections) == 0,
		})
	}

	return &ProgressView{
		Instance: inst,
		Tree:     tree,
		Items:    flat,
		Summary:  b.summary,
	}, nil
}

type treeBuilder struct {
	childrenByParent map[string][]models.ChecklistItem
	connsByItem      map[string][]models.Connection
	itemProg         map[string]*models.ChecklistItemProgress
	connProg         map[string]*models.ConnectedItemProgress
	names            map[string]string
	resolveName      func(by, byID *string) *string
	nodes            map[string]*ItemNode
	summary          Summary
}

// build constructs one node bottom-up so completion can be derived from the
// already-built children. Precedence for the derived flag: an explicit ledger
// row wins, then AND over connections, then AND over children, else false.
func (b *treeBuilder) build(item models.ChecklistItem) *ItemNode {
	node := &ItemNode{
		ID:           item.ID,
		Content:      item.Content,
		Instructions: item.Instructions,
		SortOrder:    item.SortOrder,
		Connections:  []ConnectionView{},
		Children:     []*ItemNode{},
	}
	b.nodes[item.ID] = node

	for _, conn := range b.connsByItem[item.ID] {
		view := ConnectionView{
			ConnectionID: conn.ID,
			ItemType:     conn.ItemType,
			ItemID:       conn.ItemID,
			Name:         b.names[conn.ID],
		}
		if row := b.connProg[conn.ID]; row != nil {
			view.IsCompleted = row.IsCompleted
			view.Notes = row.Notes
			view.CompletedBy = b.resolveName(row.CompletedBy, row.CompletedByID)
			view.CompletedAt = row.CompletedAt
		}
		node.Connections = append(node.Connections, view)

		b.summary.TotalConnected++
		if view.IsCompleted {
			b.summary.CompletedConnected++
		}
	}

	for _, child := range b.childrenByParent[item.ID] {
		node.Children = append(node.Children, b.build(child))
	}

	row := b.itemProg[item.ID]
	switch {
	case row != nil:
		node.IsCompleted = row.IsCompleted
		node.Notes = row.Notes
		node.CompletedBy = b.resolveName(row.CompletedBy, row.CompletedByID)
		node.CompletedAt = row.CompletedAt
	case len(node.Connections) > 0:
		done := true
		for _, conn := range node.Connections {
			if !conn.IsCompleted {
				done = false
				break
			}
		}
		node.IsCompleted = done
	case len(node.Children) > 0:
		done := true
		for _, child := range node.Children {
			if !child.IsCompleted {
				done = false
				break
			}
		}
		node.IsCompleted = done
	}

	// Only true leaves count toward the main total, a node with children or
	// connections is represented by them.
	if len(node.Children) == 0 && len(node.Connections) == 0 {
		b.summary.TotalMain++
		if node.IsCompleted {
			b.summary.CompletedMain++
		}
	}

	return node
}
