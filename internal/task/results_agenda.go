package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// handleSummarizeResult replaces the meeting's subjects and highlights inside
// a transaction (delete-then-recreate, so a replay leaves exactly one set and
// readers never observe a half-deleted state). For processAgenda results it
// additionally cascades into meeting-notification creation and auto-send
// according to the administrative body's notification policy.
func (s *Service) handleSummarizeResult(ctx context.Context, t *domain.Task, result json.RawMessage, fromAgenda bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("task_id", t.ID)

	var parsed SummarizeResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse subject extraction result: %w", err)
	}

	subjects := make([]*domain.Subject, 0, len(parsed.Subjects))
	highlights := make([]*domain.Highlight, 0)
	for i, sub := range parsed.Subjects {
		subjectID := fmt.Sprintf("%s-subj-%d", t.CouncilMeetingID, i)
		subjects = append(subjects, &domain.Subject{
			ID:               subjectID,
			CityID:           t.CityID,
			CouncilMeetingID: t.CouncilMeetingID,
			Name:             sub.Name,
			Description:      sub.Description,
			AgendaItemIndex:  sub.AgendaItemIndex,
			TopicID:          sub.TopicID,
			LocationText:     sub.LocationText,
		})

		for j, h := range sub.Highlights {
			highlights = append(highlights, &domain.Highlight{
				ID:               fmt.Sprintf("%s-hl-%d-%d", t.CouncilMeetingID, i, j),
				CityID:           t.CityID,
				CouncilMeetingID: t.CouncilMeetingID,
				SubjectID:        subjectID,
				Name:             h.Name,
				UtteranceIDs:     h.UtteranceIDs,
			})
		}
	}

	err := s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.subjects.WithTx(tx).ReplaceForMeeting(ctx, t.CityID, t.CouncilMeetingID, subjects, highlights)
	})
	if err != nil {
		return fmt.Errorf("failed to replace subjects for meeting %s: %w", t.CouncilMeetingID, err)
	}

	log.Info("subjects replaced",
		"subject_count", len(subjects),
		"highlight_count", len(highlights),
		"from_agenda", fromAgenda)

	if !fromAgenda {
		return nil
	}

	return s.cascadeAgendaNotifications(ctx, t, subjects)
}

// cascadeAgendaNotifications applies the administrative body's notification
// policy after an agenda is processed: none skips, manual creates a draft
// notification, autoSend creates and immediately marks it sent.
func (s *Service) cascadeAgendaNotifications(ctx context.Context, t *domain.Task, subjects []*domain.Subject) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("task_id", t.ID)

	meeting, err := s.meetings.GetMeeting(ctx, t.CityID, t.CouncilMeetingID)
	if err != nil {
		return fmt.Errorf("failed to load meeting for notification cascade: %w", err)
	}

	if meeting.AdministrativeBodyID == "" {
		log.Debug("meeting has no administrative body, skipping notification cascade")
		return nil
	}

	body, err := s.meetings.GetAdministrativeBody(ctx, meeting.AdministrativeBodyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("administrative body missing, skipping notification cascade",
				"administrative_body_id", meeting.AdministrativeBodyID)
			return nil
		}
		return fmt.Errorf("failed to load administrative body: %w", err)
	}

	if body.NotificationPolicy == domain.NotificationPolicyNone || body.NotificationPolicy == "" {
		return nil
	}

	subjectIDs := make([]string, 0, len(subjects))
	for _, sub := range subjects {
		subjectIDs = append(subjectIDs, sub.ID)
	}

	notification := &domain.MeetingNotification{
		ID:               uuid.New(),
		CityID:           t.CityID,
		CouncilMeetingID: t.CouncilMeetingID,
		SubjectIDs:       subjectIDs,
		CreatedAt:        s.now(),
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create meeting notification: %w", err)
	}
	s.notifyMeetingNotification(ctx, events.TypeMeetingNotificationCreated, notification)

	if body.NotificationPolicy == domain.NotificationPolicyAutoSend {
		if err := s.notifications.MarkSent(ctx, notification.ID); err != nil {
			return fmt.Errorf("failed to mark meeting notification sent: %w", err)
		}
		s.notifyMeetingNotification(ctx, events.TypeMeetingNotificationSent, notification)
	}

	log.Info("agenda notification cascade applied",
		"policy", body.NotificationPolicy,
		"subject_count", len(subjectIDs))
	return nil
}

// notifyMeetingNotification emits a meeting-notification event, best-effort.
func (s *Service) notifyMeetingNotification(ctx context.Context, eventType string, n *domain.MeetingNotification) {
	if s.emitter == nil {
		return
	}

	event, err := events.NewEvent(eventType, events.MeetingNotificationPayload{
		NotificationID:   n.ID,
		CityID:           n.CityID,
		CouncilMeetingID: n.CouncilMeetingID,
		SubjectCount:     len(n.SubjectIDs),
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to build meeting notification event", "error", err)
		return
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to emit meeting notification event",
			"event_type", eventType,
			"notification_id", n.ID,
			"error", err)
	}
}
