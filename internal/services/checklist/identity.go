package checklist

import (
	"context"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

// completerNames builds the display-name resolver for a batch of progress
// rows. CompletedByID takes precedence when it maps to a current employee.
// Older rows may hold an employee ID in CompletedBy itself; those are
// substituted with the employee's current name, everything else passes
// through as an already-resolved name.
func (s *Service) completerNames(ctx context.Context, tenantID string, itemRows []models.ChecklistItemProgress, connRows []models.ConnectedItemProgress) (func(by, byID *string) *string, error) {
	seen := map[string]bool{}
	var candidates []string
	add := func(v *string) {
		if v == nil || *v == "" || seen[*v] {
			return
		}
		seen[*v] = true
		candidates = append(candidates, *v)
	}
	for i := range itemRows {
		add(itemRows[i].CompletedBy)
		add(itemRows[i].CompletedByID)
	}
	for i := range connRows {
		add(connRows[i].CompletedBy)
		add(connRows[i].CompletedByID)
	}

	employees, err := s.employees.ListByIDs(ctx, tenantID, candidates)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(employees))
	for _, emp := range employees {
		byID[emp.ID] = emp.Name
	}

	return func(by, id *string) *string {
		if id != nil {
			if name, ok := byID[*id]; ok {
				return &name
			}
		}
		if by == nil {
			return nil
		}
		if name, ok := byID[*by]; ok {
			return &name
		}
		return by
	}, nil
}
