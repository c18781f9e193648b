package models

import "time"

// ChecklistTemplate is the reusable definition a checklist instance is
// generated from, scoped to a workplace and time slot.
type ChecklistTemplate struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	Workplace string     `db:"workplace" json:"workplace"`
	TimeSlot  string     `db:"time_slot" json:"time_slot"`
	Category  *string    `db:"category" json:"category,omitempty"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ChecklistItem is one node of a template's item tree. ParentID forms the
// hierarchy; SortOrder orders siblings ascending, ties broken by insertion.
type ChecklistItem struct {
	ID           string     `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	TemplateID   string     `db:"template_id" json:"template_id"`
	ParentID     *string    `db:"parent_id" json:"parent_id,omitempty"`
	Content      string     `db:"content" json:"content"`
	Instructions *string    `db:"instructions" json:"instructions,omitempty"`
	SortOrder    int        `db:"sort_order" json:"sort_order"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ChecklistInstance is one dated materialization of a template. IsCompleted
// is derived from the item-level progress ledger and persisted for queries.
type ChecklistInstance struct {
	ID            string     `db:"id" json:"id"`
	TenantID      string     `db:"tenant_id" json:"tenant_id"`
	TemplateID    string     `db:"template_id" json:"template_id"`
	Date          time.Time  `db:"date" json:"date"`
	Workplace     string     `db:"workplace" json:"workplace"`
	TimeSlot      string     `db:"time_slot" json:"time_slot"`
	IsCompleted   bool       `db:"is_completed" json:"is_completed"`
	IsSubmitted   bool       `db:"is_submitted" json:"is_submitted"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy   *string    `db:"completed_by" json:"completed_by,omitempty"`
	CompletedByID *string    `db:"completed_by_id" json:"completed_by_id,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
