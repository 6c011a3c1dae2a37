package sim

import "fmt"

// AgeCategory selects which preventive-course policy variant applies.
type AgeCategory int

const (
	AgeAdult AgeCategory = iota
	AgeBanded
)

func (c AgeCategory) String() string {
	if c == AgeBanded {
		return "age_banded"
	}
	return "adult"
}

// AgeCategoryOf returns the category for the given age. Patients younger than
// AgeBandedUntil months use the age-banded variant.
func (t *Tables) AgeCategoryOf(ageMonths int) AgeCategory {
	if ageMonths < t.AgeBandedUntil {
		return AgeBanded
	}
	return AgeAdult
}

// PolicyProvider supplies preventive-course decisions for one age category.
// A patient holds one provider and swaps it only when its category changes, so
// call sites never branch on age.
type PolicyProvider interface {
	Category() AgeCategory
	ProphStart(s *PatientState, sched *ProphSchedule) ProphDecision
	ProphStop(s *PatientState, sched *ProphSchedule) ProphDecision
}

// AdultProvider evaluates the flat AND/OR rules.
type AdultProvider struct{}

func (AdultProvider) Category() AgeCategory { return AgeAdult }

func (AdultProvider) ProphStart(s *PatientState, sched *ProphSchedule) ProphDecision {
	return EvaluateProphStart(s, sched)
}

func (AdultProvider) ProphStop(s *PatientState, sched *ProphSchedule) ProphDecision {
	return EvaluateProphStop(s, sched)
}

// AgeBandedProvider evaluates a schedule's expression trees. Schedules without
// an age-banded policy fall back to the flat rules.
type AgeBandedProvider struct {
	AdultProvider
}

func (AgeBandedProvider) Category() AgeCategory { return AgeBanded }

func (p AgeBandedProvider) ProphStart(s *PatientState, sched *ProphSchedule) ProphDecision {
	policy := sched.AgeBanded
	if policy == nil {
		return p.AdultProvider.ProphStart(s, sched)
	}
	if !policy.start.Eval(s, sched.target).Passed() {
		return ProphNoChange
	}
	if s.History.Has(sched.target) {
		return ProphStartSecondary
	}
	return ProphStartPrimary
}

func (p AgeBandedProvider) ProphStop(s *PatientState, sched *ProphSchedule) ProphDecision {
	policy := sched.AgeBanded
	if policy == nil {
		return p.AdultProvider.ProphStop(s, sched)
	}
	if !s.Proph[sched.target].Active {
		return ProphNoChange
	}
	if policy.stop.Eval(s, sched.target).Passed() {
		return ProphStopCriteria
	}
	return ProphNoChange
}

// NewPolicyProvider returns the provider for a category.
// Panics on an unknown category.
func NewPolicyProvider(category AgeCategory) PolicyProvider {
	switch category {
	case AgeAdult:
		return AdultProvider{}
	case AgeBanded:
		return AgeBandedProvider{}
	default:
		panic(fmt.Sprintf("unknown age category %d", int(category)))
	}
}
