package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return NewScorer(DefaultPolicy(), func() time.Time { return fixedNow })
}

func money(v float64) *float64 { return &v }

func TestRequiredSkillsScenario(t *testing.T) {
	job := JobFeatures{RequiredSkills: NewSkillSet("Go", "SQL")}
	candidate := CandidateFeatures{Skills: NewSkillSet("go")}

	result := newTestScorer().ScoreRule(job, candidate)
	assert.InDelta(t, 50.0, result.Breakdown[FactorRequiredSkills], 1e-9)
	assert.Equal(t, ScoreRule, result.ScoreType)
}

func TestEmptyRequiredSkillsAlwaysFull(t *testing.T) {
	scorer := newTestScorer()
	for _, skills := range [][]string{nil, {"go"}, {"rust", "c", "zig"}} {
		result := scorer.ScoreRule(JobFeatures{}, CandidateFeatures{Skills: NewSkillSet(skills...)})
		assert.Equal(t, 100.0, result.Breakdown[FactorRequiredSkills])
		assert.Equal(t, 100.0, result.Breakdown[FactorPreferredSkills])
	}
}

func TestSkillAliases(t *testing.T) {
	job := JobFeatures{RequiredSkills: NewSkillSet("Golang", "K8s", "Postgres")}
	candidate := CandidateFeatures{Skills: NewSkillSet("go", "kubernetes", "PostgreSQL")}

	assert.Equal(t, 100.0, newTestScorer().ScoreRule(job, candidate).Breakdown[FactorRequiredSkills])
}

func TestExperienceFit(t *testing.T) {
	scorer := newTestScorer()

	senior := scorer.ScoreRule(JobFeatures{ExperienceLevel: LevelSenior}, CandidateFeatures{ExperienceYears: 6})
	assert.InDelta(t, 100.0, senior.Breakdown[FactorExperience], 0.1)

	offByTwo := scorer.ScoreRule(JobFeatures{ExperienceLevel: LevelSenior}, CandidateFeatures{ExperienceYears: 4})
	assert.InDelta(t, 60.65, offByTwo.Breakdown[FactorExperience], 0.01)

	unknown := scorer.ScoreRule(JobFeatures{ExperienceLevel: "wizard"}, CandidateFeatures{ExperienceYears: 4})
	assert.Equal(t, 50.0, unknown.Breakdown[FactorExperience])
}

func TestLocationMatch(t *testing.T) {
	tests := []struct {
		name      string
		job       JobFeatures
		candidate CandidateFeatures
		want      float64
	}{
		{"remote", JobFeatures{RemoteType: Remote, City: "Sevilla"}, CandidateFeatures{City: "Madrid"}, 100},
		{"same city", JobFeatures{RemoteType: Onsite, City: "Sevilla"}, CandidateFeatures{City: " sevilla "}, 100},
		{"hybrid relocatable", JobFeatures{RemoteType: Hybrid, City: "Sevilla"}, CandidateFeatures{City: "Madrid", WillingToRelocate: true}, 70},
		{"onsite relocatable", JobFeatures{RemoteType: Onsite, City: "Sevilla"}, CandidateFeatures{City: "Madrid", WillingToRelocate: true}, 50},
		{"no match", JobFeatures{RemoteType: Onsite, City: "Sevilla"}, CandidateFeatures{City: "Madrid"}, 0},
		{"blank cities never match", JobFeatures{RemoteType: Onsite}, CandidateFeatures{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, locationMatch(tt.job, tt.candidate))
		})
	}
}

func TestSalaryAlignment(t *testing.T) {
	tests := []struct {
		name                       string
		jobMin, jobMax, cMin, cMax *float64
		want                       float64
	}{
		{"job unknown", nil, nil, money(10), money(20), 50},
		{"candidate unknown", money(10), money(20), nil, nil, 50},
		{"contained", money(30000), money(50000), money(35000), money(40000), 100},
		{"half overlap", money(30000), money(40000), money(35000), money(45000), 50},
		{"disjoint above", money(30000), money(40000), money(50000), money(60000), 0},
		{"expects less than offered", money(30000), money(40000), money(20000), money(25000), 100},
		{"single bound inside", money(30000), money(40000), money(32000), nil, 100},
		{"single bound above", money(30000), money(40000), money(42000), nil, 0},
		{"swapped bounds", money(40000), money(30000), money(35000), money(45000), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, salaryAlignment(tt.jobMin, tt.jobMax, tt.cMin, tt.cMax), 1e-9)
		})
	}
}

func TestAvailability(t *testing.T) {
	day := 24 * time.Hour
	at := func(d time.Duration) *time.Time {
		v := fixedNow.Add(d)
		return &v
	}

	assert.Equal(t, 50.0, availability(nil, fixedNow))
	assert.Equal(t, 100.0, availability(at(-3*day), fixedNow))
	assert.Equal(t, 100.0, availability(at(0), fixedNow))
	assert.Equal(t, 90.0, availability(at(7*day), fixedNow))
	assert.Equal(t, 80.0, availability(at(10*day), fixedNow))
	assert.Equal(t, 60.0, availability(at(30*day), fixedNow))
	assert.Equal(t, 40.0, availability(at(45*day), fixedNow))
	assert.Equal(t, 20.0, availability(at(90*day), fixedNow))
}

func TestScoreRuleTotalIsWeightedSum(t *testing.T) {
	job := JobFeatures{
		RequiredSkills:  NewSkillSet("go", "sql"),
		PreferredSkills: NewSkillSet("docker"),
		ExperienceLevel: LevelMid,
		RemoteType:      Remote,
		SalaryMin:       money(30000),
		SalaryMax:       money(40000),
	}
	candidate := CandidateFeatures{
		ID:               9,
		Skills:           NewSkillSet("go", "sql", "docker"),
		ExperienceYears:  3,
		DesiredSalaryMin: money(32000),
		DesiredSalaryMax: money(38000),
	}

	result := newTestScorer().ScoreRule(job, candidate)
	// availability is unspecified (50); everything else is a perfect fit
	assert.InDelta(t, 0.95*100+0.05*50, result.Score, 1e-9)
	assert.Equal(t, int64(9), result.SubjectID)
	assert.Len(t, result.Breakdown, 6)
}

func TestScoreHybrid(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.ScoreHybrid(80, 60, BoostFactors{Certifications: 2, CoursesCompleted: 1, ProfileComplete: true})
	assert.InDelta(t, 0.4*60+0.5*80+0.1*35, result.Score, 1e-9)
	assert.Equal(t, ScoreHybrid, result.ScoreType)
	assert.Equal(t, 35.0, result.Breakdown[TermBoost])

	capped := BoostScore(BoostFactors{Certifications: 20, CoursesCompleted: 20, ProfileComplete: true})
	assert.Equal(t, 100.0, capped)
}

func TestScoreHybridIsMonotonic(t *testing.T) {
	scorer := newTestScorer()
	boost := BoostFactors{Certifications: 1}

	for fixed := 0.0; fixed <= 100; fixed += 25 {
		prevRule, prevSemantic := -1.0, -1.0
		for v := -10.0; v <= 110; v += 5 {
			byRule := scorer.ScoreHybrid(v, fixed, boost).Score
			bySemantic := scorer.ScoreHybrid(fixed, v, boost).Score
			require.GreaterOrEqual(t, byRule, prevRule)
			require.GreaterOrEqual(t, bySemantic, prevSemantic)
			prevRule, prevSemantic = byRule, bySemantic
		}

		prevBoost := -1.0
		for certs := 0; certs <= 12; certs++ {
			score := scorer.ScoreHybrid(fixed, fixed, BoostFactors{Certifications: certs}).Score
			require.GreaterOrEqual(t, score, prevBoost)
			prevBoost = score
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	broken := DefaultPolicy()
	broken.Hybrid.Rule = 0.9
	assert.Error(t, broken.Validate())

	negative := DefaultPolicy()
	negative.Rule.Salary = -0.15
	negative.Rule.RequiredSkills = 0.65
	assert.Error(t, negative.Validate())
}
