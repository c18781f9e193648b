package models

import (
	"fmt"
	"time"
)

// ConnectedItemKind tags the kind of auxiliary entity a connection points at.
// The reference is weak: no foreign key spans the three tables.
type ConnectedItemKind string

const (
	ConnectedItemKindInventory  ConnectedItemKind = "inventory"
	ConnectedItemKindManual     ConnectedItemKind = "manual"
	ConnectedItemKindPrecaution ConnectedItemKind = "precaution"
)

// Valid reports whether the kind is one of the known variants.
func (k ConnectedItemKind) Valid() bool {
	switch k {
	case ConnectedItemKindInventory, ConnectedItemKindManual, ConnectedItemKindPrecaution:
		return true
	}
	return false
}

// ParseConnectedItemKind converts a wire value into a kind.
func ParseConnectedItemKind(s string) (ConnectedItemKind, error) {
	k := ConnectedItemKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown connected item type %q", s)
	}
	return k, nil
}

// Connection links one checklist item to an auxiliary entity. Multiple
// connections per item are allowed; connections do not nest.
type Connection struct {
	ID              string            `db:"id" json:"id"`
	TenantID        string            `db:"tenant_id" json:"tenant_id"`
	ChecklistItemID string            `db:"checklist_item_id" json:"checklist_item_id"`
	ItemType        ConnectedItemKind `db:"item_type" json:"item_type"`
	ItemID          string            `db:"item_id" json:"item_id"`
	SortOrder       int               `db:"sort_order" json:"sort_order"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	DeletedAt       *time.Time        `db:"deleted_at" json:"deleted_at,omitempty"`
}
