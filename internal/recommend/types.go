// Package recommend suggests jobs to users from application overlap with
// similar users, blended with content scores and re-ranked by hiring outcomes.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcome is the final state of an application.
type Outcome string

const (
	OutcomeHired             Outcome = "hired"
	OutcomeInterviewed       Outcome = "interviewed"
	OutcomeRejectedEmployer  Outcome = "rejected_employer"
	OutcomeRejectedCandidate Outcome = "rejected_candidate"
	OutcomeWithdrawn         Outcome = "withdrawn"
)

// Recommendation sources.
const (
	SourcePopular       = "popular"
	SourceCollaborative = "collaborative"
	SourceHybrid        = "hybrid"
)

var (
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrInvalidLimit   = errors.New("limit must be positive")
)

// ParseOutcome validates a raw outcome value.
func ParseOutcome(raw string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(raw))); o {
	case OutcomeHired, OutcomeInterviewed, OutcomeRejectedEmployer, OutcomeRejectedCandidate, OutcomeWithdrawn:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, raw)
}

// Application is one candidate applying to one job.
type Application struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"job_id"`
	CandidateID int64     `json:"candidate_id"`
	UserID      int64     `json:"user_id"`
	TenantID    int64     `json:"tenant_id"`
	MatchScore  float64   `json:"match_score"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedbackRecord is an append-only outcome of an application.
type FeedbackRecord struct {
	ApplicationID int64             `json:"application_id"`
	JobID         int64             `json:"job_id"`
	CandidateID   int64             `json:"candidate_id"`
	Outcome       Outcome           `json:"outcome"`
	OriginalScore float64           `json:"original_score"`
	TenantID      int64             `json:"tenant_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

// JobCount is a job with its number of applications.
type JobCount struct {
	JobID int64
	Count int
}

// Recommendation is a suggested job for a user.
type Recommendation struct {
	JobID  int64   `json:"job_id"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
	Boost  float64 `json:"boost,omitempty"`
}

// Store is the application and feedback store.
type Store interface {
	ListApplicationsByUser(ctx context.Context, userID int64) ([]Application, error)
	// ListApplicantsForJob returns the ids of users who applied to jobID.
	ListApplicantsForJob(ctx context.Context, jobID int64) ([]int64, error)
	GetApplication(ctx context.Context, id int64) (*Application, error)
	// AppendFeedback stores a record. A repeated application+outcome replaces the earlier one.
	AppendFeedback(ctx context.Context, record FeedbackRecord) error
	ListFeedback(ctx context.Context) ([]FeedbackRecord, error)
	// PopularJobs returns jobs by application count descending, ties by job id ascending.
	PopularJobs(ctx context.Context, limit int) ([]JobCount, error)
}
