package vectorindex

import (
	"fmt"
	"strconv"
)

// Payload keys carried by every point.
const (
	KeyTenantID   = "tenant_id"
	KeySharedType = "shared_type"
	KeyPlanLevel  = "plan_level"
	KeyVertical   = "vertical"
	KeyEntityType = "entity_type"
	KeyEntityID   = "entity_id"

	KeyAccessLevel = "access_level"
	KeyText        = "text"
	KeySourceURL   = "source_url"
	KeySourceTitle = "source_title"
	KeyChunkIndex  = "chunk_index"
)

// Shared types, from narrowest to broadest visibility.
const (
	SharedTenant   = "tenant"
	SharedPlan     = "plan"
	SharedVertical = "vertical"
	SharedPlatform = "platform"
)

// Access levels.
const (
	AccessPublic  = "public"
	AccessPrivate = "private"
)

// Logical collections.
const (
	CollectionJobs       = "jobs"
	CollectionCandidates = "candidates"
	CollectionKnowledge  = "knowledge_base"
)

// Entity types stored in the matching collections.
const (
	EntityJob       = "job"
	EntityCandidate = "candidate"
)

// RequiredKeys must be present on every upserted point.
var RequiredKeys = []string{KeyTenantID, KeySharedType, KeyPlanLevel, KeyVertical, KeyEntityType, KeyEntityID}

// Payload holds scalar metadata attached to a point.
type Payload map[string]any

// String returns the payload value at key as a string, or "".
func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return ScalarString(v)
}

// Int64 returns the payload value at key as an int64.
func (p Payload) Int64(key string) (int64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	if f, ok := toFloat(v); ok {
		return int64(f), true
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// JobChunkID names the n-th chunk of a job posting.
func JobChunkID(jobID int64, chunk int) string {
	return fmt.Sprintf("job_%d_chunk_%d", jobID, chunk)
}

// CandidatePointID names the single point of a candidate profile.
func CandidatePointID(candidateID int64) string {
	return fmt.Sprintf("candidate_%d", candidateID)
}

// DocumentChunkID names the n-th chunk of a knowledge entity.
func DocumentChunkID(entityType string, entityID int64, chunk int) string {
	return fmt.Sprintf("%s_%d_chunk_%d", entityType, entityID, chunk)
}

// EntityFilter selects every point that belongs to one entity.
func EntityFilter(entityType string, entityID int64) Filter {
	return AllOf(Eq(KeyEntityType, entityType), Eq(KeyEntityID, entityID))
}
