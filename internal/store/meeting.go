package store

import (
	"context"
	"time"

	"github.com/civora/civora-api/internal/domain"
)

// PollCandidate is one meeting the decision-polling scheduler may dispatch
// for: it is recent, its city has a registry identifier, and it has at least
// one agenda subject with no linked decision.
type PollCandidate struct {
	CityID     string
	MeetingID  string
	RegistryID string
	Date       time.Time
}

// MeetingStore defines read access to cities, meetings and administrative bodies.
type MeetingStore interface {
	// GetCity loads a city by ID. Returns ErrCityNotFound if missing.
	GetCity(ctx context.Context, cityID string) (*domain.City, error)

	// GetMeeting loads a meeting scoped to its city.
	// Returns ErrMeetingNotFound if missing.
	GetMeeting(ctx context.Context, cityID, meetingID string) (*domain.CouncilMeeting, error)

	// GetAdministrativeBody loads an administrative body by ID.
	// Returns ErrBodyNotFound if missing.
	GetAdministrativeBody(ctx context.Context, bodyID string) (*domain.AdministrativeBody, error)

	// ListPollCandidates returns meetings dated after the given time, in
	// cities with a registry identifier, having at least one eligible subject
	// with no linked decision. Ordered by meeting date descending, capped at
	// limit rows.
	ListPollCandidates(ctx context.Context, since time.Time, limit int) ([]PollCandidate, error)
}
