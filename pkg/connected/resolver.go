package connected

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// NameSource resolves entity ids of one kind to display names.
type NameSource interface {
	InventoryNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
	ManualNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
	PrecautionNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
}

// Resolver batches display-name lookups for connections across their target
// tables. Entities that no longer exist are simply absent from the result.
type Resolver struct {
	source NameSource
	logger ectologger.Logger
}

// NewResolver creates a new connected entity name resolver
func NewResolver(source NameSource, logger ectologger.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger,
	}
}

// ResolveNames returns a display name per connection id. Lookups are grouped
// per kind so each target table is queried at most once.
func (r *Resolver) ResolveNames(ctx context.Context, tenantID string, connections []models.Connection) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "connected.Resolver.ResolveNames")
	defer span.End()

	byKind := map[models.ConnectedItemKind][]string{}
	for _, conn := range connections {
		byKind[conn.ItemType] = append(byKind[conn.ItemType], conn.ItemID)
	}

	namesByKind := map[models.ConnectedItemKind]map[string]string{}
	for kind, ids := range byKind {
		var (
			names map[string]string
			err   error
		)
		switch kind {
		case models.ConnectedItemKindInventory:
			names, err = r.source.InventoryNames(ctx, tenantID, ids)
		case models.ConnectedItemKindManual:
			names, err = r.source.ManualNames(ctx, tenantID, ids)
		case models.ConnectedItemKindPrecaution:
			names, err = r.source.PrecautionNames(ctx, tenantID, ids)
		default:
			r.logger.WithContext(ctx).WithFields(map[string]any{"item_type": kind}).Warn("Skipping connection with unknown item type")
			continue
		}
		if err != nil {
			return nil, err
		}
		namesByKind[kind] = names
	}

	resolved := make(map[string]string, len(connections))
	for _, conn := range connections {
		if name, ok := namesByKind[conn.ItemType][conn.ItemID]; ok {
			resolved[conn.ID] = name
		}
	}

	return resolved, nil
}
