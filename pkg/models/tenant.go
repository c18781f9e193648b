package models

import (
	"time"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/database"
)

// NotificationSettings controls the submission report emails for a tenant.
type NotificationSettings struct {
	NotifyOnSubmission    bool     `json:"notify_on_submission"`
	SubmissionRecipients  []string `json:"submission_recipients"`
	SubmissionSubjectNote string   `json:"submission_subject_note,omitempty"`
}

// Tenant is one restaurant/organization. Every domain row carries its ID.
type Tenant struct {
	ID                   string                                       `db:"id" json:"id"`
	Name                 string                                       `db:"name" json:"name"`
	Subdomain            string                                       `db:"subdomain" json:"subdomain"`
	NotificationSettings database.JSONB[NotificationSettings]         `db:"notification_settings" json:"notification_settings"`
	CreatedAt            time.Time                                    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time                                    `db:"updated_at" json:"updated_at"`
}

// Employee is a member of a tenant's staff.
type Employee struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	Email     string     `db:"email" json:"email"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
