package sim

// Criterion is a set of optional single-value checks used by preventive-course
// policies. Each configured field is one criterion; nil fields are skipped.
type Criterion struct {
	CD4            *Bound        `yaml:"cd4"`
	MinCD4         *Bound        `yaml:"min_cd4"` // lowest CD4 ever observed
	AgeMonths      *Bound        `yaml:"age_months"`
	MonthsOnCourse *Bound        `yaml:"months_on_course"`
	History        *IllnessCount `yaml:"history"`
}

// Evaluate combines the configured checks with OR or AND semantics. target is
// the illness whose course is being evaluated.
func (c *Criterion) Evaluate(s *PatientState, target Illness, useOr bool) Verdict {
	ps := &s.Proph[target]
	return Combine(useOr,
		c.CD4.Check(s.ObservedCD4, s.HasObservedCD4),
		c.MinCD4.Check(s.MinObservedCD4, s.HasObservedCD4),
		c.AgeMonths.Check(float64(s.AgeMonths), true),
		c.MonthsOnCourse.Check(float64(s.Month-ps.StartMonth), ps.Active),
		c.History.Check(s.Episodes),
	)
}

// ProphRule is a flat AND/OR rule over one Criterion set.
type ProphRule struct {
	Criterion `yaml:",inline"`
	UseOr     bool `yaml:"use_or"`
}

// Passes reports whether the rule is satisfied. A rule with nothing
// configured never passes.
func (r *ProphRule) Passes(s *PatientState, target Illness) bool {
	return r.Evaluate(s, target, r.UseOr).Passed()
}

// ProphPolicy holds the start and stop rules of one course variant
// (primary: no prior episode, secondary: after an episode).
type ProphPolicy struct {
	Start ProphRule `yaml:"start"`
	Stop  ProphRule `yaml:"stop"`
}

// ExprPolicy is the age-banded variant: start and stop are depth-2
// expression trees instead of flat rules.
type ExprPolicy struct {
	Start ExprSpec `yaml:"start"`
	Stop  ExprSpec `yaml:"stop"`

	start *Expr
	stop  *Expr
}

// build compiles both trees. Called by Validate.
func (p *ExprPolicy) build() {
	p.start = p.Start.Tree()
	p.stop = p.Stop.Tree()
}

// EvaluateProphStart evaluates a flat preventive start. A patient with a prior
// episode of the target illness is evaluated against the secondary rule.
func EvaluateProphStart(s *PatientState, sched *ProphSchedule) ProphDecision {
	if s.History.Has(sched.target) {
		if sched.Secondary.Start.Passes(s, sched.target) {
			return ProphStartSecondary
		}
		return ProphNoChange
	}
	if sched.Primary.Start.Passes(s, sched.target) {
		return ProphStartPrimary
	}
	return ProphNoChange
}

// EvaluateProphStop evaluates the stop rule of the active course's variant.
func EvaluateProphStop(s *PatientState, sched *ProphSchedule) ProphDecision {
	ps := &s.Proph[sched.target]
	if !ps.Active {
		return ProphNoChange
	}
	policy := &sched.Primary
	if ps.Secondary {
		policy = &sched.Secondary
	}
	if policy.Stop.Passes(s, sched.target) {
		return ProphStopCriteria
	}
	return ProphNoChange
}
