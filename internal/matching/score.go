package matching

import (
	"math"
	"strings"
	"time"
)

// ScoreType tells how a MatchResult was produced.
type ScoreType string

const (
	ScoreRule   ScoreType = "rule"
	ScoreHybrid ScoreType = "hybrid"
)

// Breakdown keys.
const (
	FactorRequiredSkills  = "required_skills"
	FactorExperience      = "experience"
	FactorLocation        = "location"
	FactorSalary          = "salary"
	FactorPreferredSkills = "preferred_skills"
	FactorAvailability    = "availability"

	TermRule     = "rule"
	TermSemantic = "semantic"
	TermBoost    = "boost"
)

// MatchResult is a 0-100 score with its per-factor breakdown.
type MatchResult struct {
	SubjectID int64              `json:"subject_id"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
	ScoreType ScoreType          `json:"score_type"`
}

func (r MatchResult) clone() MatchResult {
	breakdown := make(map[string]float64, len(r.Breakdown))
	for k, v := range r.Breakdown {
		breakdown[k] = v
	}
	r.Breakdown = breakdown
	return r
}

// Scorer computes rule and hybrid scores under a Policy.
type Scorer struct {
	policy Policy
	now    func() time.Time
}

// NewScorer returns a Scorer. A nil clock means time.Now.
func NewScorer(policy Policy, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{policy: policy, now: now}
}

// Policy returns the active policy.
func (s *Scorer) Policy() Policy {
	return s.policy
}

// ScoreRule scores candidate against job from the six rule factors.
func (s *Scorer) ScoreRule(job JobFeatures, candidate CandidateFeatures) MatchResult {
	w := s.policy.Rule
	breakdown := map[string]float64{
		FactorRequiredSkills:  skillOverlap(job.RequiredSkills, candidate.Skills),
		FactorExperience:      s.experienceFit(job.ExperienceLevel, candidate.ExperienceYears),
		FactorLocation:        locationMatch(job, candidate),
		FactorSalary:          salaryAlignment(job.SalaryMin, job.SalaryMax, candidate.DesiredSalaryMin, candidate.DesiredSalaryMax),
		FactorPreferredSkills: skillOverlap(job.PreferredSkills, candidate.Skills),
		FactorAvailability:    availability(candidate.AvailabilityDate, s.now()),
	}

	total := w.RequiredSkills*breakdown[FactorRequiredSkills] +
		w.Experience*breakdown[FactorExperience] +
		w.Location*breakdown[FactorLocation] +
		w.Salary*breakdown[FactorSalary] +
		w.PreferredSkills*breakdown[FactorPreferredSkills] +
		w.Availability*breakdown[FactorAvailability]

	return MatchResult{
		SubjectID: candidate.ID,
		Score:     clamp(total),
		Breakdown: breakdown,
		ScoreType: ScoreRule,
	}
}

// ScoreHybrid blends a 0-100 rule score, a 0-100 semantic score and the boost term.
// Callers without a semantic score must use the rule result instead.
func (s *Scorer) ScoreHybrid(ruleScore, semanticScore float64, boost BoostFactors) MatchResult {
	w := s.policy.Hybrid
	rule := clamp(ruleScore)
	semantic := clamp(semanticScore)
	boostScore := BoostScore(boost)

	return MatchResult{
		Score: clamp(w.Semantic*semantic + w.Rule*rule + w.Boost*boostScore),
		Breakdown: map[string]float64{
			TermRule:     rule,
			TermSemantic: semantic,
			TermBoost:    boostScore,
		},
		ScoreType: ScoreHybrid,
	}
}

// BoostScore turns profile signals into a 0-100 term.
func BoostScore(b BoostFactors) float64 {
	score := 10*float64(max(b.Certifications, 0)) + 5*float64(max(b.CoursesCompleted, 0))
	if b.ProfileComplete {
		score += 10
	}
	return math.Min(100, score)
}

func skillOverlap(wanted, have SkillSet) float64 {
	if len(wanted) == 0 {
		return 100
	}

	matched := 0
	for skill := range wanted {
		if have.Has(skill) {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(wanted))
}

func (s *Scorer) experienceFit(level ExperienceLevel, years float64) float64 {
	target, ok := s.policy.ExperienceYears[level]
	if !ok {
		return 50
	}

	sigma := s.policy.ExperienceSigma
	diff := years - target
	return 100 * math.Exp(-(diff*diff)/(2*sigma*sigma))
}

func locationMatch(job JobFeatures, candidate CandidateFeatures) float64 {
	switch {
	case job.RemoteType == Remote:
		return 100
	case sameCity(job.City, candidate.City):
		return 100
	case job.RemoteType == Hybrid && candidate.WillingToRelocate:
		return 70
	case candidate.WillingToRelocate:
		return 50
	default:
		return 0
	}
}

func sameCity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// salaryAlignment scores how well the candidate's expectation fits the offered range.
func salaryAlignment(jobMin, jobMax, candMin, candMax *float64) float64 {
	jLo, jHi, ok := salaryBounds(jobMin, jobMax)
	if !ok {
		return 50
	}
	cLo, cHi, ok := salaryBounds(candMin, candMax)
	if !ok {
		return 50
	}

	if cHi <= jLo {
		return 100
	}

	overlap := math.Min(jHi, cHi) - math.Max(jLo, cLo)
	if overlap < 0 {
		return 0
	}

	narrower := math.Min(jHi-jLo, cHi-cLo)
	if narrower <= 0 {
		return 100
	}
	return clamp(100 * overlap / narrower)
}

func salaryBounds(lo, hi *float64) (float64, float64, bool) {
	switch {
	case lo == nil && hi == nil:
		return 0, 0, false
	case lo == nil:
		return *hi, *hi, true
	case hi == nil:
		return *lo, *lo, true
	case *lo > *hi:
		return *hi, *lo, true
	default:
		return *lo, *hi, true
	}
}

func availability(date *time.Time, now time.Time) float64 {
	if date == nil {
		return 50
	}

	days := math.Ceil(date.Sub(now).Hours() / 24)
	switch {
	case days <= 0:
		return 100
	case days <= 7:
		return 90
	case days <= 14:
		return 80
	case days <= 30:
		return 60
	case days <= 60:
		return 40
	default:
		return 20
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
