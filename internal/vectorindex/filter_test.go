package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestMatches(t *testing.T) {
	payload := Payload{
		KeyTenantID:    int64(7),
		KeySharedType:  SharedPlan,
		KeyPlanLevel:   "growth",
		KeyVertical:    "empleo",
		KeyAccessLevel: AccessPublic,
		"salary":       3500.0,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"nil matches all", nil, true},
		{"empty and matches all", AllOf(), true},
		{"value across numeric types", Eq(KeyTenantID, 7), true},
		{"value mismatch", Eq(KeyTenantID, 8), false},
		{"string value", Eq(KeySharedType, SharedPlan), true},
		{"missing key", Eq("missing", "x"), false},
		{"any hit", In(KeyPlanLevel, "starter", "growth"), true},
		{"any miss", In(KeyPlanLevel, "pro", "enterprise"), false},
		{"not missing key", Negate(Eq("missing", "x")), true},
		{"or", AnyOf(Eq(KeyVertical, "salud"), Eq(KeyVertical, "empleo")), true},
		{"and short circuit", AllOf(Eq(KeyVertical, "empleo"), Eq(KeyPlanLevel, "pro")), false},
		{"range inside", Range{Key: "salary", Gte: ptr(3000), Lte: ptr(4000)}, true},
		{"range outside", Range{Key: "salary", Gte: ptr(4000)}, false},
		{"range on string", Range{Key: KeyVertical, Gte: ptr(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.filter, payload))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := AllOf(
		AnyOf(Eq(KeyTenantID, 1), In(KeyPlanLevel, "starter")),
		Negate(Eq(KeyAccessLevel, AccessPrivate)),
		Range{Key: "salary", Lte: ptr(10)},
	)
	assert.NoError(t, Validate(valid))
	assert.NoError(t, Validate(nil))

	invalid := []Filter{
		AnyOf(),
		Not{},
		Eq("", "x"),
		Eq("bad key", "x"),
		Eq("k", []string{"x"}),
		MatchAny{Key: "k"},
		Range{Key: "k"},
		AllOf(Eq("k';drop", 1)),
	}
	for _, f := range invalid {
		assert.ErrorIs(t, Validate(f), ErrInvalidFilter, "%#v", f)
	}
}

func TestScalarString(t *testing.T) {
	assert.Equal(t, "5", ScalarString(int64(5)))
	assert.Equal(t, "5", ScalarString(5.0))
	assert.Equal(t, "2.5", ScalarString(float32(2.5)))
	assert.Equal(t, "true", ScalarString(true))
	assert.Equal(t, "pro", ScalarString("pro"))
}

func TestPointIDs(t *testing.T) {
	assert.Equal(t, "job_12_chunk_0", JobChunkID(12, 0))
	assert.Equal(t, "candidate_9", CandidatePointID(9))
	assert.Equal(t, "faq_3_chunk_2", DocumentChunkID("faq", 3, 2))
}
