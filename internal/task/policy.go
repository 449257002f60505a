package task

import (
	"time"

	"github.com/civora/civora-api/internal/domain"
)

// guardedTypes is the fixed policy table of pipeline task types subject to
// the idempotency guard: meant to run at most once successfully per scope.
// generateHighlight, generateVoiceprint and splitMediaFile legitimately run
// multiple times concurrently for different targets within the same meeting
// and bypass the guard entirely.
var guardedTypes = map[domain.TaskType]bool{
	domain.TaskTypeTranscribe:          true,
	domain.TaskTypeSummarize:           true,
	domain.TaskTypeFixTranscript:       true,
	domain.TaskTypeProcessAgenda:       true,
	domain.TaskTypeGeneratePodcastSpec: true,
	domain.TaskTypeSyncElasticsearch:   true,
	domain.TaskTypePollDecisions:       true,
	domain.TaskTypeHumanReview:         true,
}

// IsGuardedType reports whether the idempotency guard applies to the type.
func IsGuardedType(taskType domain.TaskType) bool {
	return guardedTypes[taskType]
}

// Decision-polling policy constants.
const (
	// MaxPollingDays is the hard ceiling: once this many days have passed
	// since the first successful poll, automatic polling stops permanently.
	MaxPollingDays = 90

	// recentMeetingWindow bounds which meetings the batch run considers.
	recentMeetingWindow = 90 * 24 * time.Hour

	// candidateFetchLimit is how many candidate meetings one batch run loads;
	// larger than the dispatch cap to leave room for backoff skips.
	candidateFetchLimit = 50

	// dispatchCapPerRun bounds worker load per batch invocation.
	dispatchCapPerRun = 10

	// subjectPollCooldown is the rate limit for the single-subject on-demand
	// entry point: a pending pollDecisions task younger than this blocks a
	// new dispatch.
	subjectPollCooldown = 5 * time.Minute
)

// backoffTier maps "days since first poll" to the minimum interval between
// polls. Tiers are ordered by AfterDays ascending and only get stricter.
type backoffTier struct {
	AfterDays       int
	MinIntervalDays int
}

// backoffTiers is the declining-frequency polling curve: every invocation for
// the first week, then daily, then every 3 days after a month, then weekly
// after two months, until MaxPollingDays cuts polling off entirely.
var backoffTiers = []backoffTier{
	{AfterDays: 0, MinIntervalDays: 0},
	{AfterDays: 7, MinIntervalDays: 1},
	{AfterDays: 30, MinIntervalDays: 3},
	{AfterDays: 60, MinIntervalDays: 7},
}
