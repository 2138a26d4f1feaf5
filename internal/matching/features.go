package matching

import (
	"strings"
	"time"

	"github.com/spigell/talentcore/internal/content"
)

// ExperienceLevel is the seniority a job asks for.
type ExperienceLevel string

const (
	LevelEntry  ExperienceLevel = "entry"
	LevelJunior ExperienceLevel = "junior"
	LevelMid    ExperienceLevel = "mid"
	LevelSenior ExperienceLevel = "senior"
	LevelLead   ExperienceLevel = "lead"
)

// RemoteType is the work arrangement of a job.
type RemoteType string

const (
	Onsite RemoteType = content.RemoteOnsite
	Hybrid RemoteType = content.RemoteHybrid
	Remote RemoteType = content.RemoteFull
)

var skillAliases = map[string]string{
	"golang":     "go",
	"go lang":    "go",
	"js":         "javascript",
	"ts":         "typescript",
	"k8s":        "kubernetes",
	"postgres":   "postgresql",
	"psql":       "postgresql",
	"react.js":   "react",
	"reactjs":    "react",
	"node":       "node.js",
	"nodejs":     "node.js",
	"vue.js":     "vue",
	"vuejs":      "vue",
	"ms excel":   "excel",
	"gcp":        "google cloud",
	"amazon aws": "aws",
}

// SkillSet is a set of normalized skill ids.
type SkillSet map[string]struct{}

// NewSkillSet normalizes and deduplicates names.
func NewSkillSet(names ...string) SkillSet {
	set := make(SkillSet, len(names))
	for _, name := range names {
		if id := NormalizeSkill(name); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Has reports whether id (already normalized) is in the set.
func (s SkillSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// NormalizeSkill maps a free-form skill name to its canonical id.
func NormalizeSkill(name string) string {
	id := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if canonical, ok := skillAliases[id]; ok {
		return canonical
	}
	return id
}

// JobFeatures is the scoring snapshot of a job posting.
type JobFeatures struct {
	ID              int64
	TenantID        int64
	RequiredSkills  SkillSet
	PreferredSkills SkillSet
	ExperienceLevel ExperienceLevel
	City            string
	RemoteType      RemoteType
	SalaryMin       *float64
	SalaryMax       *float64
}

// CandidateFeatures is the scoring snapshot of a candidate profile.
type CandidateFeatures struct {
	ID                int64
	TenantID          int64
	Skills            SkillSet
	ExperienceYears   float64
	City              string
	WillingToRelocate bool
	DesiredSalaryMin  *float64
	DesiredSalaryMax  *float64
	AvailabilityDate  *time.Time
}

// BoostFactors are the profile signals feeding the hybrid boost term.
type BoostFactors struct {
	Certifications   int
	CoursesCompleted int
	ProfileComplete  bool
}

// JobFeaturesOf builds the scoring snapshot of job.
func JobFeaturesOf(job *content.Job) JobFeatures {
	return JobFeatures{
		ID:              job.ID,
		TenantID:        job.TenantID,
		RequiredSkills:  NewSkillSet(job.RequiredSkills...),
		PreferredSkills: NewSkillSet(job.PreferredSkills...),
		ExperienceLevel: ExperienceLevel(strings.ToLower(strings.TrimSpace(job.ExperienceLevel))),
		City:            job.City,
		RemoteType:      RemoteType(strings.ToLower(strings.TrimSpace(job.RemoteType))),
		SalaryMin:       job.SalaryMin,
		SalaryMax:       job.SalaryMax,
	}
}

// CandidateFeaturesOf builds the scoring snapshot of candidate.
func CandidateFeaturesOf(candidate *content.Candidate) CandidateFeatures {
	return CandidateFeatures{
		ID:                candidate.ID,
		TenantID:          candidate.TenantID,
		Skills:            NewSkillSet(candidate.Skills...),
		ExperienceYears:   candidate.ExperienceYears,
		City:              candidate.City,
		WillingToRelocate: candidate.WillingToRelocate,
		DesiredSalaryMin:  candidate.DesiredSalaryMin,
		DesiredSalaryMax:  candidate.DesiredSalaryMax,
		AvailabilityDate:  candidate.AvailabilityDate,
	}
}

// BoostOf extracts the boost signals of candidate.
func BoostOf(candidate *content.Candidate) BoostFactors {
	return BoostFactors{
		Certifications:   candidate.Certifications,
		CoursesCompleted: candidate.CoursesCompleted,
		ProfileComplete:  candidate.ProfileComplete,
	}
}
