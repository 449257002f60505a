package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// SkipReason says why the backoff check refused to poll a meeting now.
type SkipReason string

// Backoff skip reasons.
const (
	SkipExceededMaxWindow SkipReason = "exceeded_max_window"
	SkipWithinMinInterval SkipReason = "within_min_interval"
)

// BatchResult summarizes one run of PollDecisionsForRecentMeetings.
type BatchResult struct {
	Candidates int
	Dispatched int
	Skipped    int
	Failed     int
}

// PollStatus is one meeting's poll eligibility, for admin views.
type PollStatus struct {
	FirstPolledAt   *time.Time `json:"first_polled_at,omitempty"`
	LastPolledAt    *time.Time `json:"last_polled_at,omitempty"`
	PollCount       int        `json:"poll_count"`
	DecisionsLinked int        `json:"decisions_linked"`
	SkipReason      SkipReason `json:"skip_reason,omitempty"`
}

// ShouldSkipPolling applies the backoff policy for one meeting and returns a
// non-empty reason when polling should be skipped now.
//
// A never-polled meeting is always eligible. Once MaxPollingDays have passed
// since the first successful poll, automatic polling stops permanently (the
// manual entry point stays available). In between, the tier whose AfterDays
// threshold is the largest value at or below the elapsed days decides the
// minimum interval since the last poll.
func ShouldSkipPolling(now time.Time, firstPollAt, lastPollAt *time.Time) SkipReason {
	if firstPollAt == nil {
		return ""
	}

	daysSinceFirst := int(now.Sub(*firstPollAt).Hours() / 24)
	if daysSinceFirst >= MaxPollingDays {
		return SkipExceededMaxWindow
	}

	// Step function: tiers are ordered ascending, take the last applicable.
	tier := backoffTiers[0]
	for _, bt := range backoffTiers {
		if daysSinceFirst >= bt.AfterDays {
			tier = bt
		}
	}

	if tier.MinIntervalDays == 0 {
		return ""
	}

	if lastPollAt != nil {
		daysSinceLast := now.Sub(*lastPollAt).Hours() / 24
		if daysSinceLast < float64(tier.MinIntervalDays) {
			return SkipWithinMinInterval
		}
	}

	return ""
}

// PollDecisionsForRecentMeetings is the cron-triggered batch run: it walks
// recent meetings that still have undecided agenda subjects in
// registry-enabled cities, applies the backoff check, and dispatches
// pollDecisions tasks for the survivors up to a per-run cap.
//
// Per-meeting failures are counted and logged individually; one meeting's
// dispatch error never aborts the batch.
func (s *Service) PollDecisionsForRecentMeetings(ctx context.Context) (*BatchResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("component", "decision_polling")
	now := s.now()

	candidates, err := s.meetings.ListPollCandidates(ctx, now.Add(-recentMeetingWindow), candidateFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list poll candidates: %w", err)
	}

	result := &BatchResult{Candidates: len(candidates)}

	for _, candidate := range candidates {
		if result.Dispatched >= dispatchCapPerRun {
			break
		}

		window, err := s.tasks.PollWindow(ctx, candidate.CityID, candidate.MeetingID)
		if err != nil {
			result.Failed++
			log.Error("failed to aggregate poll history",
				"city_id", candidate.CityID,
				"council_meeting_id", candidate.MeetingID,
				"error", err)
			continue
		}

		if reason := ShouldSkipPolling(now, window.FirstPolledAt, window.LastPolledAt); reason != "" {
			result.Skipped++
			pollSkips.WithLabelValues(string(reason)).Inc()
			log.Debug("skipping meeting poll",
				"city_id", candidate.CityID,
				"council_meeting_id", candidate.MeetingID,
				"skip_reason", reason)
			continue
		}

		if _, err := s.RequestPollDecisions(ctx, candidate.CityID, candidate.MeetingID); err != nil {
			result.Failed++
			log.Error("failed to dispatch poll for meeting",
				"city_id", candidate.CityID,
				"council_meeting_id", candidate.MeetingID,
				"error", err)
			continue
		}

		result.Dispatched++
	}

	log.Info("decision polling batch finished",
		"candidates", result.Candidates,
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

// RequestPollDecisions builds and dispatches a pollDecisions task for every
// still-unlinked eligible subject of the meeting. Fails if the meeting, its
// city's registry identifier, or all eligible subjects are missing.
//
// The dispatch is forced: repeated polling is governed by the backoff policy
// and the single-subject rate limiter, not by the succeeded-once guard.
func (s *Service) RequestPollDecisions(ctx context.Context, cityID, meetingID string) (*domain.Task, error) {
	meeting, err := s.meetings.GetMeeting(ctx, cityID, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load meeting %s: %w", meetingID, err)
	}

	city, err := s.meetings.GetCity(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load city %s: %w", cityID, err)
	}
	if city.RegistryID == "" {
		return nil, fmt.Errorf("city %s has no registry identifier configured", cityID)
	}

	subjects, err := s.subjects.ListUnlinkedEligible(ctx, cityID, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible subjects: %w", err)
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("meeting %s has no eligible subjects without decisions", meetingID)
	}

	request := PollDecisionsRequest{
		MeetingDate: meeting.Date,
		RegistryID:  city.RegistryID,
		Subjects:    make([]PollSubject, 0, len(subjects)),
	}

	if meeting.AdministrativeBodyID != "" {
		body, err := s.meetings.GetAdministrativeBody(ctx, meeting.AdministrativeBodyID)
		if err == nil && len(body.RegistryUnitIDs) > 0 {
			request.UnitIDs = body.RegistryUnitIDs
		}
	}

	for _, sub := range subjects {
		ps := PollSubject{ID: sub.ID, Name: sub.Name}
		if sub.AgendaItemIndex != nil {
			ps.AgendaItemIndex = *sub.AgendaItemIndex
		}
		request.Subjects = append(request.Subjects, ps)
	}

	return s.StartTask(ctx, domain.TaskTypePollDecisions, request, cityID, meetingID, StartOptions{Force: true})
}

// RequestPollDecisionForSubject is the on-demand entry point behind the
// "check for decision" button. A subject that already has a linked decision
// is refused with store.ErrDuplicate. It rate-limits per meeting: a
// pollDecisions task created within the cooldown and still pending
// short-circuits with that task instead of dispatching a duplicate. A fresh
// dispatch covers all
// unlinked subjects of the meeting, not just the requested one, so the
// meeting's last-polled time stays consistent for every subject.
func (s *Service) RequestPollDecisionForSubject(ctx context.Context, subjectID string) (*domain.Task, BlockedReason, error) {
	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load subject %s: %w", subjectID, err)
	}

	if _, err := s.decisions.GetBySubject(ctx, subjectID); err == nil {
		return nil, "", fmt.Errorf("subject %s already has a linked decision: %w", subjectID, store.ErrDuplicate)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check for existing decision: %w", err)
	}

	recent, err := s.tasks.FindPendingCreatedAfter(
		ctx,
		domain.TaskTypePollDecisions,
		subject.CityID,
		subject.CouncilMeetingID,
		s.now().Add(-subjectPollCooldown),
	)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check for recent poll: %w", err)
	}
	if recent != nil {
		return recent, BlockedAlreadyRunning, nil
	}

	t, err := s.RequestPollDecisions(ctx, subject.CityID, subject.CouncilMeetingID)
	if err != nil {
		return nil, "", err
	}
	return t, "", nil
}

// handlePollDecisionsResult upserts a Decision for each registry match,
// after verifying the referenced subject actually belongs to this task's own
// scope. A worker returning stale or cross-meeting subject IDs must never
// create decisions outside the task's meeting; mismatches are logged and
// skipped.
func (s *Service) handlePollDecisionsResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("task_id", t.ID)

	var parsed PollDecisionsResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse pollDecisions result: %w", err)
	}

	var linked, mismatched int
	for _, match := range parsed.Matches {
		subject, err := s.subjects.GetByID(ctx, match.SubjectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				mismatched++
				log.Warn("poll match references unknown subject, skipping",
					"subject_id", match.SubjectID)
				continue
			}
			return fmt.Errorf("failed to load subject %s: %w", match.SubjectID, err)
		}

		if subject.CityID != t.CityID || subject.CouncilMeetingID != t.CouncilMeetingID {
			mismatched++
			log.Warn("poll match references subject outside task scope, skipping",
				"subject_id", match.SubjectID,
				"subject_city_id", subject.CityID,
				"subject_meeting_id", subject.CouncilMeetingID)
			continue
		}

		decision, err := domain.NewDecision(match.SubjectID, match.DocumentURL)
		if err != nil {
			return fmt.Errorf("invalid decision for subject %s: %w", match.SubjectID, err)
		}
		decision.ProtocolNumber = match.ProtocolNumber
		decision.OfficialID = match.OfficialID
		decision.Title = match.Title
		decision.IssueDate = match.IssueDate
		taskID := t.ID
		decision.TaskID = &taskID

		if err := s.decisions.UpsertBySubject(ctx, decision); err != nil {
			return fmt.Errorf("failed to upsert decision for subject %s: %w", match.SubjectID, err)
		}

		if err := s.subjects.LinkDecision(ctx, match.SubjectID, decision.ID); err != nil {
			return fmt.Errorf("failed to link decision to subject %s: %w", match.SubjectID, err)
		}
		linked++
	}

	log.Info("poll decisions applied", "linked", linked, "mismatched", mismatched)
	return nil
}

// GetPollingHistoryForMeeting returns all pollDecisions tasks for a meeting,
// newest first.
func (s *Service) GetPollingHistoryForMeeting(ctx context.Context, cityID, meetingID string) ([]*domain.Task, error) {
	return s.tasks.ListByScope(ctx, domain.TaskTypePollDecisions, cityID, meetingID)
}

// GetLastPollTimeForMeeting returns the most recent successful poll time for
// a meeting, or nil if it was never polled.
func (s *Service) GetLastPollTimeForMeeting(ctx context.Context, cityID, meetingID string) (*time.Time, error) {
	window, err := s.tasks.PollWindow(ctx, cityID, meetingID)
	if err != nil {
		return nil, err
	}
	return window.LastPolledAt, nil
}

// GetPollingStatusForMeeting reports the meeting's poll history, how many of
// its subjects already have decisions, and what the backoff policy would
// decide right now.
func (s *Service) GetPollingStatusForMeeting(ctx context.Context, cityID, meetingID string) (*PollStatus, error) {
	window, err := s.tasks.PollWindow(ctx, cityID, meetingID)
	if err != nil {
		return nil, err
	}

	linked, err := s.decisions.CountForMeeting(ctx, cityID, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to count linked decisions: %w", err)
	}

	return &PollStatus{
		FirstPolledAt:   window.FirstPolledAt,
		LastPolledAt:    window.LastPolledAt,
		PollCount:       window.PollCount,
		DecisionsLinked: linked,
		SkipReason:      ShouldSkipPolling(s.now(), window.FirstPolledAt, window.LastPolledAt),
	}, nil
}

// GetPollingStats returns the per-city polling report for admin dashboards.
func (s *Service) GetPollingStats(ctx context.Context) ([]store.CityPollStats, error) {
	return s.tasks.PollStatsByCity(ctx)
}
