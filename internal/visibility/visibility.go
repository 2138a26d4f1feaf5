// Package visibility derives the caller's visibility scope and builds the
// tenant-cascade filter applied to knowledge searches.
package visibility

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/talentcore/internal/vectorindex"
)

// ErrUnknownPlan is returned for plan levels outside PlanOrder.
var ErrUnknownPlan = errors.New("unknown plan level")

// PlanOrder is the total ordering of subscription plans, lowest first.
var PlanOrder = []string{"starter", "growth", "pro", "enterprise"}

// Context is the visibility scope of one request.
type Context struct {
	TenantID        *int64
	Vertical        string
	PlanLevel       string
	AccessiblePlans []string
}

// Anonymous returns the scope of a caller without a tenant.
func Anonymous() Context {
	return Context{}
}

// NewContext resolves a caller's scope. A tenant without a plan is treated as starter.
func NewContext(tenantID *int64, vertical, planLevel string) (Context, error) {
	if tenantID == nil {
		return Context{Vertical: strings.TrimSpace(vertical)}, nil
	}

	plan := strings.ToLower(strings.TrimSpace(planLevel))
	if plan == "" {
		plan = PlanOrder[0]
	}

	plans, err := AccessiblePlans(plan)
	if err != nil {
		return Context{}, err
	}

	id := *tenantID
	return Context{
		TenantID:        &id,
		Vertical:        strings.TrimSpace(vertical),
		PlanLevel:       plan,
		AccessiblePlans: plans,
	}, nil
}

// AccessiblePlans returns the prefix of PlanOrder up to and including plan.
func AccessiblePlans(plan string) ([]string, error) {
	idx := slices.Index(PlanOrder, plan)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	return slices.Clone(PlanOrder[:idx+1]), nil
}

// IsAnonymous reports whether the context has no tenant.
func (c Context) IsAnonymous() bool {
	return c.TenantID == nil
}

// Build returns the search filter for c.
//
// Anonymous callers see platform content only. Tenants see the union of their
// own content, content shared with their accessible plans, content shared with
// their vertical and platform content, minus any private point owned by
// another tenant.
func Build(c Context) vectorindex.Filter {
	if c.IsAnonymous() {
		return vectorindex.AllOf(
			vectorindex.Eq(vectorindex.KeySharedType, vectorindex.SharedPlatform),
			vectorindex.Negate(vectorindex.Eq(vectorindex.KeyAccessLevel, vectorindex.AccessPrivate)),
		)
	}

	tenant := *c.TenantID
	tiers := []vectorindex.Filter{
		vectorindex.Eq(vectorindex.KeyTenantID, tenant),
	}

	if len(c.AccessiblePlans) > 0 {
		tiers = append(tiers, vectorindex.AllOf(
			vectorindex.Eq(vectorindex.KeySharedType, vectorindex.SharedPlan),
			vectorindex.In(vectorindex.KeyPlanLevel, c.AccessiblePlans...),
		))
	}

	if c.Vertical != "" {
		tiers = append(tiers, vectorindex.AllOf(
			vectorindex.Eq(vectorindex.KeySharedType, vectorindex.SharedVertical),
			vectorindex.Eq(vectorindex.KeyVertical, c.Vertical),
		))
	}

	tiers = append(tiers, vectorindex.Eq(vectorindex.KeySharedType, vectorindex.SharedPlatform))

	return vectorindex.AllOf(
		vectorindex.AnyOf(tiers...),
		vectorindex.Negate(vectorindex.AllOf(
			vectorindex.Eq(vectorindex.KeyAccessLevel, vectorindex.AccessPrivate),
			vectorindex.Negate(vectorindex.Eq(vectorindex.KeyTenantID, tenant)),
		)),
	)
}
