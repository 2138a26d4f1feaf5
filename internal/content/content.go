// Package content holds the plain records the core reads from the content
// store, plus the adapters that build them from loosely typed rows.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Job statuses.
const (
	JobPublished = "published"
	JobClosed    = "closed"
	JobDraft     = "draft"
)

// Remote types.
const (
	RemoteOnsite = "onsite"
	RemoteHybrid = "hybrid"
	RemoteFull   = "remote"
)

// Job is a job posting.
type Job struct {
	ID              int64      `mapstructure:"id" json:"id"`
	TenantID        int64      `mapstructure:"tenant_id" json:"tenant_id"`
	Title           string     `mapstructure:"title" json:"title"`
	Description     string     `mapstructure:"description" json:"description"`
	RequiredSkills  []string   `mapstructure:"required_skills" json:"required_skills"`
	PreferredSkills []string   `mapstructure:"preferred_skills" json:"preferred_skills"`
	ExperienceLevel string     `mapstructure:"experience_level" json:"experience_level"`
	City            string     `mapstructure:"city" json:"city"`
	RemoteType      string     `mapstructure:"remote_type" json:"remote_type"`
	SalaryMin       *float64   `mapstructure:"salary_min" json:"salary_min,omitempty"`
	SalaryMax       *float64   `mapstructure:"salary_max" json:"salary_max,omitempty"`
	Status          string     `mapstructure:"status" json:"status"`
	Vertical        string     `mapstructure:"vertical" json:"vertical"`
	URL             string     `mapstructure:"url" json:"url"`
	UpdatedAt       *time.Time `mapstructure:"updated_at" json:"updated_at,omitempty"`
}

// Published reports whether the posting is live.
func (j Job) Published() bool {
	return j.Status == "" || j.Status == JobPublished
}

// IndexText is the text embedded for the posting.
func (j Job) IndexText() string {
	parts := []string{j.Title, j.Description}
	if len(j.RequiredSkills) > 0 {
		parts = append(parts, "Required skills: "+strings.Join(j.RequiredSkills, ", "))
	}
	if len(j.PreferredSkills) > 0 {
		parts = append(parts, "Preferred skills: "+strings.Join(j.PreferredSkills, ", "))
	}
	if j.ExperienceLevel != "" {
		parts = append(parts, "Experience level: "+j.ExperienceLevel)
	}
	return joinNonEmpty(parts)
}

// Candidate is a candidate profile.
type Candidate struct {
	ID                int64      `mapstructure:"id" json:"id"`
	UserID            int64      `mapstructure:"user_id" json:"user_id"`
	TenantID          int64      `mapstructure:"tenant_id" json:"tenant_id"`
	Headline          string     `mapstructure:"headline" json:"headline"`
	Summary           string     `mapstructure:"summary" json:"summary"`
	Skills            []string   `mapstructure:"skills" json:"skills"`
	ExperienceYears   float64    `mapstructure:"experience_years" json:"experience_years"`
	City              string     `mapstructure:"city" json:"city"`
	WillingToRelocate bool       `mapstructure:"willing_to_relocate" json:"willing_to_relocate"`
	DesiredSalaryMin  *float64   `mapstructure:"desired_salary_min" json:"desired_salary_min,omitempty"`
	DesiredSalaryMax  *float64   `mapstructure:"desired_salary_max" json:"desired_salary_max,omitempty"`
	AvailabilityDate  *time.Time `mapstructure:"availability_date" json:"availability_date,omitempty"`
	Certifications    int        `mapstructure:"certifications" json:"certifications"`
	CoursesCompleted  int        `mapstructure:"courses_completed" json:"courses_completed"`
	ProfileComplete   bool       `mapstructure:"profile_complete" json:"profile_complete"`
	Active            bool       `mapstructure:"active" json:"active"`
}

// IndexText is the text embedded for the profile.
func (c Candidate) IndexText() string {
	parts := []string{c.Headline, c.Summary}
	if len(c.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(c.Skills, ", "))
	}
	if c.ExperienceYears > 0 {
		parts = append(parts, fmt.Sprintf("Experience: %.1f years", c.ExperienceYears))
	}
	return joinNonEmpty(parts)
}

// Document is a knowledge-base entity (FAQ, policy, article, course page...).
type Document struct {
	EntityType  string `mapstructure:"entity_type" json:"entity_type"`
	ID          int64  `mapstructure:"id" json:"id"`
	TenantID    int64  `mapstructure:"tenant_id" json:"tenant_id"`
	SharedType  string `mapstructure:"shared_type" json:"shared_type"`
	PlanLevel   string `mapstructure:"plan_level" json:"plan_level"`
	Vertical    string `mapstructure:"vertical" json:"vertical"`
	AccessLevel string `mapstructure:"access_level" json:"access_level"`
	Title       string `mapstructure:"title" json:"title"`
	Body        string `mapstructure:"body" json:"body"`
	URL         string `mapstructure:"url" json:"url"`
	Published   bool   `mapstructure:"published" json:"published"`
}

// Store is the read-only content/entity store.
type Store interface {
	GetJob(ctx context.Context, id int64) (*Job, error)
	GetCandidate(ctx context.Context, id int64) (*Candidate, error)
	GetCandidateByUser(ctx context.Context, userID int64) (*Candidate, error)
	GetDocument(ctx context.Context, entityType string, id int64) (*Document, error)
	ListActiveCandidates(ctx context.Context, tenantID int64) ([]Candidate, error)
	ListJobs(ctx context.Context) ([]Job, error)
	ListCandidates(ctx context.Context) ([]Candidate, error)
	ListDocuments(ctx context.Context) ([]Document, error)
}

func joinNonEmpty(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
