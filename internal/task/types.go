package task

import (
	"encoding/json"
	"time"

	"github.com/civora/civora-api/internal/domain"
)

// UpdateStatus tags the variant of a worker callback.
type UpdateStatus string

// Callback variants sent by the worker.
const (
	UpdateStatusProcessing UpdateStatus = "processing"
	UpdateStatusSuccess    UpdateStatus = "success"
	UpdateStatusError      UpdateStatus = "error"
)

// Update is the callback payload the worker POSTs to this service. Exactly
// one variant applies depending on Status: processing carries stage/progress,
// success carries the result, error carries the failure detail.
type Update struct {
	Status          UpdateStatus    `json:"status"`
	Stage           string          `json:"stage,omitempty"`
	ProgressPercent *int            `json:"progressPercent,omitempty"`
	Version         *int            `json:"version,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// StartOptions modifies dispatch behavior.
type StartOptions struct {
	// Force bypasses the idempotency guard entirely.
	Force bool
}

// BlockedReason says why the idempotency guard refused a dispatch.
type BlockedReason string

// Guard rejection reasons.
const (
	BlockedAlreadySucceeded BlockedReason = "already_succeeded"
	BlockedAlreadyRunning   BlockedReason = "already_running"
)

// IdempotencyResult is the guard's verdict for one prospective dispatch.
type IdempotencyResult struct {
	Proceed       bool
	ExistingTask  *domain.Task
	BlockedReason BlockedReason
}

// Result payload shapes, one per task type. These mirror the worker's output
// contract; fields the handlers do not consume are omitted.

// TranscribeResult is the transcript produced by a transcribe task.
type TranscribeResult struct {
	Segments []TranscriptSegment `json:"segments"`
}

// TranscriptSegment is one speaker turn in a transcript.
type TranscriptSegment struct {
	SpeakerLabel   string                `json:"speakerLabel"`
	PersonID       string                `json:"personId,omitempty"`
	StartTimestamp float64               `json:"startTimestamp"`
	EndTimestamp   float64               `json:"endTimestamp"`
	Utterances     []TranscriptUtterance `json:"utterances"`
}

// TranscriptUtterance is one sentence-level piece of a segment.
type TranscriptUtterance struct {
	Text           string  `json:"text"`
	StartTimestamp float64 `json:"startTimestamp"`
	EndTimestamp   float64 `json:"endTimestamp"`
	Uncertain      bool    `json:"uncertain,omitempty"`
}

// SummarizeResult is the subject/highlight extraction produced by summarize
// and processAgenda tasks.
type SummarizeResult struct {
	Subjects []SubjectExtraction `json:"subjects"`
}

// SubjectExtraction is one extracted subject with its highlights.
type SubjectExtraction struct {
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	AgendaItemIndex *int                  `json:"agendaItemIndex,omitempty"`
	TopicID         string                `json:"topicId,omitempty"`
	LocationText    string                `json:"locationText,omitempty"`
	Highlights      []HighlightExtraction `json:"highlights,omitempty"`
}

// HighlightExtraction is one extracted highlight.
type HighlightExtraction struct {
	Name         string   `json:"name"`
	UtteranceIDs []string `json:"utteranceIds,omitempty"`
}

// FixTranscriptResult lists utterance patches produced by a fixTranscript task.
type FixTranscriptResult struct {
	UpdatedUtterances []UtterancePatch `json:"updatedUtterances"`
}

// UtterancePatch replaces one utterance's text.
type UtterancePatch struct {
	UtteranceID   string `json:"utteranceId"`
	Text          string `json:"text"`
	MarkUncertain bool   `json:"markUncertain,omitempty"`
}

// PodcastSpecResult is the podcast digest produced by a generatePodcastSpec task.
type PodcastSpecResult struct {
	Parts []PodcastPartSpec `json:"parts"`
}

// PodcastPartSpec is one section of the podcast digest.
type PodcastPartSpec struct {
	Index           int      `json:"index"`
	Text            string   `json:"text,omitempty"`
	AudioSegmentURL string   `json:"audioSegmentUrl,omitempty"`
	Duration        *float64 `json:"duration,omitempty"`
}

// SplitMediaFileResult maps produced audio segments back to podcast parts.
type SplitMediaFileResult struct {
	Segments []MediaSegment `json:"segments"`
}

// MediaSegment is one produced audio file.
type MediaSegment struct {
	PartID   string  `json:"partId"`
	AudioURL string  `json:"audioUrl"`
	Duration float64 `json:"duration"`
}

// GenerateHighlightResult carries the rendered highlight video.
type GenerateHighlightResult struct {
	HighlightID string `json:"highlightId"`
	VideoURL    string `json:"videoUrl"`
}

// GenerateVoiceprintResult carries a speaker-identification embedding.
type GenerateVoiceprintResult struct {
	PersonID        string    `json:"personId"`
	SourceSegmentID string    `json:"sourceSegmentId"`
	Embedding       []float64 `json:"embedding"`
}

// SyncElasticsearchResult reports what the worker indexed. The sync itself
// happens worker-side; the handler only records the outcome.
type SyncElasticsearchResult struct {
	IndexedSubjects int `json:"indexedSubjects"`
	IndexedSpeeches int `json:"indexedSpeeches"`
}

// PollDecisionsResult lists registry matches found by a pollDecisions task.
type PollDecisionsResult struct {
	Matches []DecisionMatch `json:"matches"`
}

// DecisionMatch links one registry document to a meeting subject.
type DecisionMatch struct {
	SubjectID      string     `json:"subjectId"`
	DocumentURL    string     `json:"documentUrl"`
	ProtocolNumber string     `json:"protocolNumber,omitempty"`
	OfficialID     string     `json:"officialId,omitempty"`
	Title          string     `json:"title,omitempty"`
	IssueDate      *time.Time `json:"issueDate,omitempty"`
}

// PollDecisionsRequest is the payload dispatched to the worker for a
// pollDecisions task.
type PollDecisionsRequest struct {
	MeetingDate time.Time     `json:"meetingDate"`
	RegistryID  string        `json:"registryId"`
	UnitIDs     []string      `json:"unitIds,omitempty"`
	Subjects    []PollSubject `json:"subjects"`
	CallbackURL string        `json:"callbackUrl,omitempty"`
}

// PollSubject is one subject the worker should look up in the registry.
type PollSubject struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AgendaItemIndex int    `json:"agendaItemIndex"`
}

// responseEnvelope is what gets persisted into a task's response body when a
// result handler fails after a success callback: the worker's original result
// plus the processing error, so the compensated failure stays inspectable.
type responseEnvelope struct {
	Result          json.RawMessage `json:"result"`
	ProcessingError string          `json:"processingError"`
}
