// Package events handles event emission for checklist lifecycle changes
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/kafka"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for checklist instances
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// SubmissionData is the payload carried by a checklist.submitted event
type SubmissionData struct {
	SchemaVersion string     `json:"schema_version"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	SubmittedBy   string     `json:"submitted_by,omitempty"`
	SubmittedByID string     `json:"submitted_by_id,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	Percentage    int        `json:"percentage"`
	EmailSent     bool       `json:"email_sent"`
}

// EmitChecklistSubmitted emits a checklist.submitted event
func (e *Emitter) EmitChecklistSubmitted(ctx context.Context, tenantID, instanceID, templateID string, data SubmissionData) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitChecklistSubmitted")
	defer span.End()

	data.SchemaVersion = SchemaVersion
	payload, _ := json.Marshal(data)

	event := &kafka.ChecklistEvent{
		EventType:  "checklist.submitted",
		TenantID:   tenantID,
		InstanceID: instanceID,
		TemplateID: templateID,
		Data:       payload,
	}

	if err := e.producer.PublishChecklistEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit checklist.submitted event")
		return err
	}

	return nil
}

// EmitChecklistCompleted emits a checklist.completed event
func (e *Emitter) EmitChecklistCompleted(ctx context.Context, tenantID, instanceID, templateID string, completedBy string, completedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitChecklistCompleted")
	defer span.End()

	payload, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"completed_by":   completedBy,
		"completed_at":   completedAt,
	})

	event := &kafka.ChecklistEvent{
		EventType:  "checklist.completed",
		TenantID:   tenantID,
		InstanceID: instanceID,
		TemplateID: templateID,
		Data:       payload,
	}

	if err := e.producer.PublishChecklistEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit checklist.completed event")
		return err
	}

	return nil
}
