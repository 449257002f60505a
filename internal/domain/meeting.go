package domain

import (
	"time"

	"github.com/google/uuid"
)

// City is the top-level tenant of the platform. RegistryID, when set, is the
// city's identifier in the external decision registry and makes its meetings
// eligible for automatic decision polling.
type City struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RegistryID string `json:"registry_id,omitempty"`
}

// CouncilMeeting is one recorded session of a city's council.
type CouncilMeeting struct {
	ID                   string    `json:"id"`
	CityID               string    `json:"city_id"`
	Name                 string    `json:"name"`
	Date                 time.Time `json:"date"`
	AdministrativeBodyID string    `json:"administrative_body_id,omitempty"`
	MediaURL             string    `json:"media_url,omitempty"`
}

// NotificationPolicy controls what happens to meeting notifications after an
// agenda is processed for an administrative body.
type NotificationPolicy string

const (
	NotificationPolicyNone     NotificationPolicy = "none"
	NotificationPolicyManual   NotificationPolicy = "manual"
	NotificationPolicyAutoSend NotificationPolicy = "autoSend"
)

// AdministrativeBody groups meetings under a council, committee or community
// and carries the notification policy applied when its agendas are processed.
type AdministrativeBody struct {
	ID                 string             `json:"id"`
	CityID             string             `json:"city_id"`
	Name               string             `json:"name"`
	NotificationPolicy NotificationPolicy `json:"notification_policy"`
	RegistryUnitIDs    []string           `json:"registry_unit_ids,omitempty"`
}

// Subject is one item discussed in a meeting. AgendaItemIndex is set for
// subjects that came from the agenda; only those are eligible for decision
// polling. DecisionID links the subject to a discovered decision.
type Subject struct {
	ID               string     `json:"id"`
	CityID           string     `json:"city_id"`
	CouncilMeetingID string     `json:"council_meeting_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	AgendaItemIndex  *int       `json:"agenda_item_index,omitempty"`
	TopicID          string     `json:"topic_id,omitempty"`
	LocationText     string     `json:"location_text,omitempty"`
	DecisionID       *uuid.UUID `json:"decision_id,omitempty"`
}

// Highlight is a noteworthy moment of a meeting, optionally tied to a subject
// and optionally rendered to a video by a generateHighlight task.
type Highlight struct {
	ID               string `json:"id"`
	CityID           string `json:"city_id"`
	CouncilMeetingID string `json:"council_meeting_id"`
	SubjectID        string `json:"subject_id,omitempty"`
	Name             string `json:"name"`
	VideoURL         string `json:"video_url,omitempty"`
	UtteranceIDs     []string
}

// SpeakerSegment is a contiguous stretch of one speaker's speech in a
// meeting's transcript.
type SpeakerSegment struct {
	ID               string  `json:"id"`
	CouncilMeetingID string  `json:"council_meeting_id"`
	CityID           string  `json:"city_id"`
	StartTimestamp   float64 `json:"start_timestamp"`
	EndTimestamp     float64 `json:"end_timestamp"`
	SpeakerTagID     string  `json:"speaker_tag_id,omitempty"`
}

// SpeakerTag labels a voice in a transcript and may be matched to a known
// person once identified.
type SpeakerTag struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	PersonID string `json:"person_id,omitempty"`
}

// Utterance is one sentence-level piece of a speaker segment.
type Utterance struct {
	ID             string  `json:"id"`
	SegmentID      string  `json:"segment_id"`
	Text           string  `json:"text"`
	StartTimestamp float64 `json:"start_timestamp"`
	EndTimestamp   float64 `json:"end_timestamp"`
	Uncertain      bool    `json:"uncertain"`
}

// PodcastPart is one section of a meeting's generated podcast digest.
type PodcastPart struct {
	ID               string `json:"id"`
	CouncilMeetingID string `json:"council_meeting_id"`
	CityID           string `json:"city_id"`
	Index            int    `json:"index"`
	Text             string `json:"text,omitempty"`
	AudioSegmentURL  string `json:"audio_segment_url,omitempty"`
	Duration         *float64
}

// Voiceprint is a speaker-identification embedding derived from a segment of
// a known person's speech.
type Voiceprint struct {
	ID              uuid.UUID `json:"id"`
	PersonID        string    `json:"person_id"`
	SourceSegmentID string    `json:"source_segment_id"`
	Embedding       []float64 `json:"embedding"`
	CreatedAt       time.Time `json:"created_at"`
}

// Person is an elected official or other recurring speaker.
type Person struct {
	ID     string `json:"id"`
	CityID string `json:"city_id"`
	Name   string `json:"name"`
}

// MeetingNotification is a per-meeting digest created when an agenda is
// processed under a body whose policy requests notifications.
type MeetingNotification struct {
	ID               uuid.UUID  `json:"id"`
	CityID           string     `json:"city_id"`
	CouncilMeetingID string     `json:"council_meeting_id"`
	SubjectIDs       []string   `json:"subject_ids"`
	CreatedAt        time.Time  `json:"created_at"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
}
