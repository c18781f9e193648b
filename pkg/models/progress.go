package models

import "time"

// ChecklistItemProgress is the explicit completion record for one item within
// one instance, unique per (instance_id, item_id). Absence of a row means the
// item has not been explicitly completed. CompletedBy holds the completer's
// display name at write time; CompletedByID keeps the stable employee ID
// alongside it so renames don't orphan history.
type ChecklistItemProgress struct {
	ID            string     `db:"id" json:"id"`
	TenantID      string     `db:"tenant_id" json:"tenant_id"`
	InstanceID    string     `db:"instance_id" json:"instance_id"`
	ItemID        string     `db:"item_id" json:"item_id"`
	IsCompleted   bool       `db:"is_completed" json:"is_completed"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CompletedBy   *string    `db:"completed_by" json:"completed_by,omitempty"`
	CompletedByID *string    `db:"completed_by_id" json:"completed_by_id,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ConnectedItemProgress is the completion record for one connection within
// one instance, unique per (instance_id, connection_id). ItemID denormalizes
// the owning checklist item so sibling aggregates need no join.
type ConnectedItemProgress struct {
	ID            string     `db:"id" json:"id"`
	TenantID      string     `db:"tenant_id" json:"tenant_id"`
	InstanceID    string     `db:"instance_id" json:"instance_id"`
	ConnectionID  string     `db:"connection_id" json:"connection_id"`
	ItemID        string     `db:"item_id" json:"item_id"`
	IsCompleted   bool       `db:"is_completed" json:"is_completed"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CompletedBy   *string    `db:"completed_by" json:"completed_by,omitempty"`
	CompletedByID *string    `db:"completed_by_id" json:"completed_by_id,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
