package checklist

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/events"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// Submit closes out an instance. Every item ledger row must be complete, and
// with requireConnectedComplete every connection row as well. The report
// email and the submitted event are best effort, their failure never fails
// the submission.
func (s *Service) Submit(ctx context.Context, actor Actor, tenantID, instanceID string, notes *string, requireConnectedComplete bool) (*SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "checklist.Service.Submit")
	defer span.End()

	if instanceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "instance_id is required")
	}

	inst, err := s.instances.Get(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	itemCounts, err := s.ledger.CountItemProgress(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if itemCounts.Total == 0 || itemCounts.Completed != itemCounts.Total {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "checklist is not complete")
	}

	connCounts, err := s.ledger.CountConnectionProgress(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if requireConnectedComplete && connCounts.Completed != connCounts.Total {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "connected items are not complete")
	}

	now := time.Now().UTC()
	if err := s.instances.MarkSubmitted(ctx, tenantID, instanceID, notes, now); err != nil {
		return nil, err
	}

	result := &SubmitResult{Success: true}
	result.EmailSent, result.EmailRecipientCount = s.sendSubmissionReport(ctx, actor, tenantID, inst.Workplace, inst.TimeSlot, now)

	if s.emitter != nil {
		data := events.SubmissionData{
			SubmittedAt:   now,
			SubmittedBy:   actor.Name,
			SubmittedByID: actor.ID,
			Notes:         notes,
			Percentage:    100,
			EmailSent:     result.EmailSent,
		}
		if err := s.emitter.EmitChecklistSubmitted(ctx, tenantID, instanceID, inst.TemplateID, data); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit submission event")
		}
	}

	return result, nil
}

// sendSubmissionReport mails the tenant's configured recipients. Returns
// whether the mail went out and to how many recipients; any failure is
// logged and reported, never returned.
func (s *Service) sendSubmissionReport(ctx context.Context, actor Actor, tenantID, workplace, timeSlot string, submittedAt time.Time) (bool, int) {
	if s.mailer == nil {
		return false, 0
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to load tenant settings for submission report")
		return false, 0
	}

	settings := tenant.NotificationSettings.GetValue()
	if !settings.NotifyOnSubmission || len(settings.SubmissionRecipients) == 0 {
		return false, 0
	}

	subject := fmt.Sprintf("Checklist submitted: %s %s (%s)", workplace, timeSlot, submittedAt.Format("2006-01-02"))
	if settings.SubmissionSubjectNote != "" {
		subject = fmt.Sprintf("%s - %s", subject, settings.SubmissionSubjectNote)
	}

	body := fmt.Sprintf(
		"<p>%s submitted the %s checklist for %s at %s.</p>",
		html.EscapeString(actor.Name),
		html.EscapeString(timeSlot),
		html.EscapeString(workplace),
		submittedAt.Format(time.RFC3339),
	)

	if err := s.mailer.SendEmail(ctx, settings.SubmissionRecipients, subject, body); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to send submission report")
		return false, len(settings.SubmissionRecipients)
	}

	return true, len(settings.SubmissionRecipients)
}
