package sim

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Bundle is the YAML policy bundle: run settings plus the policy tables.
// Nil run fields mean "not set in YAML"; CLI flags fill them in.
type Bundle struct {
	Run    RunConfig `yaml:"run"`
	Tables Tables    `yaml:"tables"`
}

// RunConfig holds optional run settings.
type RunConfig struct {
	Seed     *int64 `yaml:"seed"`
	Patients *int   `yaml:"patients"`
	Months   *int   `yaml:"months"`
	Workers  *int   `yaml:"workers"`
}

// LoadBundle reads and parses a YAML policy bundle. The tables are not
// validated; call Tables.Validate before simulating.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy bundle: %w", err)
	}
	return ParseBundle(data)
}

// ParseBundle parses a YAML policy bundle with strict field checking, so a
// misspelled key is an error rather than a silently unconfigured criterion.
func ParseBundle(data []byte) (*Bundle, error) {
	var bundle Bundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing policy bundle: %w", err)
	}
	return &bundle, nil
}

// ValidBoolOps is the set of recognized expression operators.
var ValidBoolOps = map[BoolOp]bool{OpAnd: true, OpOr: true}

// ValidGroupings is the set of recognized expression groupings. Empty means left.
var ValidGroupings = map[Grouping]bool{"": true, GroupLeft: true, GroupRight: true}

// ValidAxes is the set of recognized confirmation axes. Empty means none.
var ValidAxes = map[Axis]bool{AxisNone: true, AxisCD4: true, AxisHVL: true}

// Validate checks every table and resolves illness names to indices. It must
// succeed before the tables are used; afterwards they are read-only.
func (t *Tables) Validate() error {
	if err := t.validateIllnesses(); err != nil {
		return err
	}
	if err := t.validateNatural(); err != nil {
		return fmt.Errorf("natural_history: %w", err)
	}
	if err := t.validateAgeBands(); err != nil {
		return fmt.Errorf("age_bands: %w", err)
	}
	for k := range t.Regimens {
		if err := t.validateRegimen(&t.Regimens[k]); err != nil {
			return fmt.Errorf("regimens[%d] %q: %w", k, t.Regimens[k].Name, err)
		}
	}
	t.prophIndex = make([]int, len(t.Illnesses))
	for i := range t.prophIndex {
		t.prophIndex[i] = -1
	}
	for k := range t.Proph {
		if err := t.validateProph(k); err != nil {
			return fmt.Errorf("proph[%d] %q: %w", k, t.Proph[k].Illness, err)
		}
	}
	if err := t.validateCare(); err != nil {
		return fmt.Errorf("care: %w", err)
	}
	if r := t.Interruption; r != nil {
		if r.AfterSuppressedMonths < 1 {
			return fmt.Errorf("interruption: after_suppressed_months must be >= 1, got %d", r.AfterSuppressedMonths)
		}
		if r.MaxCycles < 0 {
			return fmt.Errorf("interruption: max_cycles must be non-negative, got %d", r.MaxCycles)
		}
	}
	c := &t.Costs
	if c.AnnualDiscountRate < 0 {
		return fmt.Errorf("costs: annual_discount_rate must be non-negative, got %f", c.AnnualDiscountRate)
	}
	if c.VisitCost < 0 || c.CD4TestCost < 0 || c.HVLTestCost < 0 || c.DeathCost < 0 {
		return errors.New("costs: unit costs must be non-negative")
	}
	if t.AgeBandedUntil < 0 {
		return fmt.Errorf("age_banded_until_months must be non-negative, got %d", t.AgeBandedUntil)
	}
	return nil
}

func (t *Tables) validateIllnesses() error {
	if len(t.Illnesses) == 0 {
		return errors.New("illnesses: at least one illness is required")
	}
	if len(t.Illnesses) > maxIllnesses {
		return fmt.Errorf("illnesses: at most %d illnesses are supported, got %d", maxIllnesses, len(t.Illnesses))
	}
	t.illnessIndex = make(map[string]Illness, len(t.Illnesses))
	for k := range t.Illnesses {
		spec := &t.Illnesses[k]
		if spec.Name == "" {
			return fmt.Errorf("illnesses[%d]: name is required", k)
		}
		if _, dup := t.illnessIndex[spec.Name]; dup {
			return fmt.Errorf("illnesses[%d]: duplicate name %q", k, spec.Name)
		}
		t.illnessIndex[spec.Name] = Illness(k)
		if err := checkProbs(spec.ProbNoHistory, NumCD4Strata); err != nil {
			return fmt.Errorf("illness %q prob_no_history: %w", spec.Name, err)
		}
		if err := checkProbs(spec.ProbWithHistory, NumCD4Strata); err != nil {
			return fmt.Errorf("illness %q prob_with_history: %w", spec.Name, err)
		}
		if spec.Severe {
			if err := checkNonNegative(spec.SevereMortalityRatio, NumCD4Strata); err != nil {
				return fmt.Errorf("illness %q severe_mortality_ratio: %w", spec.Name, err)
			}
		}
		if err := checkProb(spec.DetectionProb); err != nil {
			return fmt.Errorf("illness %q detection_prob: %w", spec.Name, err)
		}
		if spec.Cost < 0 {
			return fmt.Errorf("illness %q cost must be non-negative, got %f", spec.Name, spec.Cost)
		}
	}
	return nil
}

func (t *Tables) validateNatural() error {
	nh := &t.Natural
	if err := checkProb(nh.Prevalence); err != nil {
		return fmt.Errorf("prevalence: %w", err)
	}
	if err := checkProb(nh.MonthlyIncidence); err != nil {
		return fmt.Errorf("monthly_incidence: %w", err)
	}
	if err := checkProbs(nh.InitialHVL, NumHVLStrata); err != nil {
		return fmt.Errorf("initial_hvl: %w", err)
	}
	sum := 0.0
	for _, w := range nh.InitialHVL {
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("initial_hvl must sum to 1, got %f", sum)
	}
	if len(nh.CD4DeclineMean) != NumHVLStrata {
		return fmt.Errorf("cd4_decline_mean needs %d values, got %d", NumHVLStrata, len(nh.CD4DeclineMean))
	}
	if err := checkNonNegative(nh.CD4MortalityRate, NumCD4Strata); err != nil {
		return fmt.Errorf("cd4_mortality_rate: %w", err)
	}
	if nh.FractionOfBenefit != nil {
		if err := checkProb(*nh.FractionOfBenefit); err != nil {
			return fmt.Errorf("fraction_of_benefit: %w", err)
		}
	}
	if nh.InitialAgeStdDev < 0 || nh.InitialCD4StdDev < 0 || nh.CD4DeclineStdDev < 0 || nh.ResponseFactorStdDev < 0 {
		return errors.New("standard deviations must be non-negative")
	}
	if nh.ResistanceMortalityMultiplier < 0 {
		return fmt.Errorf("resistance_mortality_multiplier must be non-negative, got %f", nh.ResistanceMortalityMultiplier)
	}
	return nil
}

func (t *Tables) validateAgeBands() error {
	if len(t.AgeBands) == 0 {
		return errors.New("at least one band is required")
	}
	for k, band := range t.AgeBands {
		if k > 0 && band.UpperMonths <= t.AgeBands[k-1].UpperMonths {
			return fmt.Errorf("upper_months must increase, band %d has %d", k, band.UpperMonths)
		}
		if band.BackgroundMortality < 0 || band.SevereIllnessMultiplier < 0 {
			return fmt.Errorf("band %d: rates must be non-negative", k)
		}
	}
	return nil
}

func (t *Tables) validateRegimen(r *RegimenLine) error {
	for name, p := range map[string]float64{
		"monthly_fail_prob":     r.MonthlyFailProb,
		"major_toxicity_prob":   r.MajorToxicityProb,
		"chronic_toxicity_prob": r.ChronicToxicityProb,
	} {
		if err := checkProb(p); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if r.MonthlyCost < 0 || r.CD4GainStdDev < 0 {
		return errors.New("monthly_cost and cd4_gain_stddev must be non-negative")
	}
	multiplier, err := t.perIllness(r.IllnessRateMultiplier, 1)
	if err != nil {
		return fmt.Errorf("illness_rate_multiplier: %w", err)
	}
	for i, m := range multiplier {
		if m < 0 {
			return fmt.Errorf("illness_rate_multiplier %q must be non-negative, got %f", t.IllnessName(Illness(i)), m)
		}
	}
	r.rateMultiplier = multiplier

	start := &r.Start
	if err := checkBounds(start.CD4, start.HVL); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if j := start.CD4AndHVL; j != nil {
		if err := checkBounds(j.CD4, j.HVL); err != nil {
			return fmt.Errorf("start.cd4_and_hvl: %w", err)
		}
	}
	if err := t.resolveCount(start.IllnessesSinceLastRegimen); err != nil {
		return fmt.Errorf("start.illnesses_since_last_regimen: %w", err)
	}
	if h := start.CD4WithHistory; h != nil {
		if err := checkBounds(&h.CD4); err != nil {
			return fmt.Errorf("start.cd4_with_history: %w", err)
		}
		if err := t.resolveCount(&h.History); err != nil {
			return fmt.Errorf("start.cd4_with_history: %w", err)
		}
	}

	fail := &r.Fail
	if fail.MinMonthsOnRegimen < 0 {
		return fmt.Errorf("fail.min_months_on_regimen must be non-negative, got %d", fail.MinMonthsOnRegimen)
	}
	if c := fail.Clinical; c != nil {
		if err := t.resolveCount(&c.Count); err != nil {
			return fmt.Errorf("fail.clinical: %w", err)
		}
		if !ValidAxes[c.Confirm] {
			return fmt.Errorf("fail.clinical: unknown confirm axis %q", c.Confirm)
		}
	}
	if im := fail.Immunologic; im != nil {
		if im.MinTests < 1 {
			return fmt.Errorf("fail.immunologic: min_tests must be >= 1, got %d", im.MinTests)
		}
		if err := checkProb(im.FractionOfPeak); err != nil {
			return fmt.Errorf("fail.immunologic.fraction_of_peak: %w", err)
		}
		if !ValidAxes[im.Confirm] {
			return fmt.Errorf("fail.immunologic: unknown confirm axis %q", im.Confirm)
		}
	}
	if v := fail.Virologic; v != nil {
		if v.MinTests < 1 {
			return fmt.Errorf("fail.virologic: min_tests must be >= 1, got %d", v.MinTests)
		}
		if v.MinStratum <= HVLSuppressed || v.MinStratum > HVLAbove100k {
			return fmt.Errorf("fail.virologic: min_stratum must be in [%d, %d], got %d", HVLBelow500, HVLAbove100k, v.MinStratum)
		}
		if !ValidAxes[v.Confirm] {
			return fmt.Errorf("fail.virologic: unknown confirm axis %q", v.Confirm)
		}
	}

	stop := &r.Stop
	if stop.MaxMonthsOnRegimen != nil && *stop.MaxMonthsOnRegimen < 0 {
		return errors.New("stop.max_months_on_regimen must be non-negative")
	}
	if stop.MaxMonthsSinceFailure != nil && *stop.MaxMonthsSinceFailure < 0 {
		return errors.New("stop.max_months_since_failure must be non-negative")
	}
	if stop.MinMonthsSinceFailure < 0 {
		return errors.New("stop.min_months_since_failure must be non-negative")
	}
	if err := checkBounds(stop.CD4AfterFailure); err != nil {
		return fmt.Errorf("stop.cd4_after_failure: %w", err)
	}
	return nil
}

func (t *Tables) validateProph(k int) error {
	sched := &t.Proph[k]
	target, ok := t.IllnessByName(sched.Illness)
	if !ok {
		return fmt.Errorf("unknown illness %q", sched.Illness)
	}
	if t.prophIndex[target] >= 0 {
		return errors.New("duplicate schedule for illness")
	}
	sched.target = target
	t.prophIndex[target] = k

	if len(sched.Lines) == 0 {
		return errors.New("at least one course line is required")
	}
	for l := range sched.Lines {
		line := &sched.Lines[l]
		efficacy, err := t.perIllness(line.Efficacy, 0)
		if err != nil {
			return fmt.Errorf("lines[%d] efficacy: %w", l, err)
		}
		for _, eff := range efficacy {
			if err := checkProb(eff); err != nil {
				return fmt.Errorf("lines[%d] efficacy: %w", l, err)
			}
		}
		line.efficacy = efficacy
		for name, p := range map[string]float64{
			"resistance_prob":     line.ResistanceProb,
			"resistance_penalty":  line.ResistancePenalty,
			"major_toxicity_prob": line.MajorToxicityProb,
		} {
			if err := checkProb(p); err != nil {
				return fmt.Errorf("lines[%d] %s: %w", l, name, err)
			}
		}
		if line.MonthlyCost < 0 {
			return fmt.Errorf("lines[%d] monthly_cost must be non-negative", l)
		}
	}

	for name, rule := range map[string]*ProphRule{
		"primary.start":   &sched.Primary.Start,
		"primary.stop":    &sched.Primary.Stop,
		"secondary.start": &sched.Secondary.Start,
		"secondary.stop":  &sched.Secondary.Stop,
	} {
		if err := t.resolveCriterion(&rule.Criterion); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if p := sched.AgeBanded; p != nil {
		for name, spec := range map[string]*ExprSpec{"age_banded.start": &p.Start, "age_banded.stop": &p.Stop} {
			if err := t.validateExpr(spec); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		p.build()
	}
	return nil
}

func (t *Tables) validateExpr(e *ExprSpec) error {
	if !ValidBoolOps[e.Op1] {
		return fmt.Errorf("unknown op1 %q", e.Op1)
	}
	if !ValidBoolOps[e.Op2] {
		return fmt.Errorf("unknown op2 %q", e.Op2)
	}
	if !ValidGroupings[e.Group] {
		return fmt.Errorf("unknown group %q", e.Group)
	}
	for name, c := range map[string]*Criterion{"a": &e.A, "b": &e.B, "c": &e.C} {
		if err := t.resolveCriterion(c); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (t *Tables) validateCare() error {
	c := &t.Care
	for name, p := range map[string]float64{
		"monthly_detection_prob":       c.MonthlyDetectionProb,
		"linkage_prob":                 c.LinkageProb,
		"lost_prob":                    c.LostProb,
		"return_prob":                  c.ReturnProb,
		"proph_non_compliance_prob":    c.ProphNonComplianceProb,
		"proph_non_compliance_penalty": c.ProphNonCompliancePenalty,
	} {
		if err := checkProb(p); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.VisitInterval < 0 || c.CD4TestInterval < 0 || c.HVLTestInterval < 0 {
		return errors.New("intervals must be non-negative")
	}
	if c.CD4TestStdDev < 0 {
		return fmt.Errorf("cd4_test_stddev must be non-negative, got %f", c.CD4TestStdDev)
	}
	return nil
}

// resolveCriterion checks bounds and resolves the history count of c.
func (t *Tables) resolveCriterion(c *Criterion) error {
	if err := checkBounds(c.CD4, c.MinCD4, c.AgeMonths, c.MonthsOnCourse); err != nil {
		return err
	}
	return t.resolveCount(c.History)
}

// resolveCount maps the illness names of c to its set. A count built with
// NewIllnessCount and no names keeps its set.
func (t *Tables) resolveCount(c *IllnessCount) error {
	if c == nil {
		return nil
	}
	if c.MinCount < 1 {
		return fmt.Errorf("min_count must be >= 1, got %d", c.MinCount)
	}
	if len(c.Illnesses) == 0 {
		if c.set == 0 {
			return errors.New("illnesses must not be empty")
		}
		return nil
	}
	var set IllnessSet
	for _, name := range c.Illnesses {
		i, ok := t.IllnessByName(name)
		if !ok {
			return fmt.Errorf("unknown illness %q", name)
		}
		set = set.With(i)
	}
	c.set = set
	return nil
}

// perIllness expands a name-keyed map into an illness-indexed slice.
func (t *Tables) perIllness(byName map[string]float64, fallback float64) ([]float64, error) {
	out := make([]float64, len(t.Illnesses))
	for i := range out {
		out[i] = fallback
	}
	for name, v := range byName {
		i, ok := t.IllnessByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown illness %q", name)
		}
		out[i] = v
	}
	return out, nil
}

func checkProb(p float64) error {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return fmt.Errorf("probability must be in [0, 1], got %f", p)
	}
	return nil
}

func checkProbs(ps []float64, n int) error {
	if len(ps) != n {
		return fmt.Errorf("needs %d values, got %d", n, len(ps))
	}
	for _, p := range ps {
		if err := checkProb(p); err != nil {
			return err
		}
	}
	return nil
}

func checkNonNegative(vs []float64, n int) error {
	if len(vs) != n {
		return fmt.Errorf("needs %d values, got %d", n, len(vs))
	}
	for _, v := range vs {
		if v < 0 {
			return fmt.Errorf("values must be non-negative, got %f", v)
		}
	}
	return nil
}

func checkBounds(bounds ...*Bound) error {
	for _, b := range bounds {
		if b != nil && b.Lower > b.Upper {
			return fmt.Errorf("bound lower %g exceeds upper %g", b.Lower, b.Upper)
		}
	}
	return nil
}
