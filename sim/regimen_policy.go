package sim

// StartPolicy decides whether a regimen line starts. Branches are evaluated in
// a fixed priority order and the first satisfied one wins; the order decides
// which evidence is recorded as the trigger and must not change.
type StartPolicy struct {
	CD4                       *Bound          `yaml:"cd4"`
	HVL                       *Bound          `yaml:"hvl"`
	CD4AndHVL                 *JointBound     `yaml:"cd4_and_hvl"`
	IllnessesSinceLastRegimen *IllnessCount   `yaml:"illnesses_since_last_regimen"`
	CD4WithHistory            *CD4WithHistory `yaml:"cd4_with_history"`
}

// JointBound combines a CD4 and an HVL bound with AND or OR semantics.
type JointBound struct {
	CD4   *Bound `yaml:"cd4"`
	HVL   *Bound `yaml:"hvl"`
	UseOr bool   `yaml:"use_or"`
}

// CD4WithHistory requires a CD4 bound and an illness history together.
type CD4WithHistory struct {
	CD4     Bound        `yaml:"cd4"`
	History IllnessCount `yaml:"history"`
}

// FailPolicy decides whether a regimen line is observably failed.
type FailPolicy struct {
	MinMonthsOnRegimen int                 `yaml:"min_months_on_regimen"`
	Clinical           *ClinicalFailure    `yaml:"clinical"`
	Immunologic        *ImmunologicFailure `yaml:"immunologic"`
	Virologic          *VirologicFailure   `yaml:"virologic"`
}

// ClinicalFailure counts qualifying illnesses since the line started.
type ClinicalFailure struct {
	Count   IllnessCount `yaml:"count"`
	Confirm Axis         `yaml:"confirm"`
}

// ImmunologicFailure counts consecutive failing CD4 tests. A test fails when
// it drops below FractionOfPeak of the on-line peak, or below the pre-line
// baseline when BelowBaseline is set.
type ImmunologicFailure struct {
	MinTests       int     `yaml:"min_tests"`
	FractionOfPeak float64 `yaml:"fraction_of_peak"`
	BelowBaseline  bool    `yaml:"below_baseline"`
	Confirm        Axis    `yaml:"confirm"`
}

// VirologicFailure counts consecutive HVL tests at or above MinStratum.
type VirologicFailure struct {
	MinTests   int        `yaml:"min_tests"`
	MinStratum HVLStratum `yaml:"min_stratum"`
	Confirm    Axis       `yaml:"confirm"`
}

// StopPolicy decides whether an active regimen line stops.
type StopPolicy struct {
	MaxMonthsOnRegimen      *int `yaml:"max_months_on_regimen"`
	OnMajorToxicity         bool `yaml:"on_major_toxicity"`
	SwitchOnChronicToxicity bool `yaml:"switch_on_chronic_toxicity"`

	// The criteria below only apply once failure has been observed and at
	// least MinMonthsSinceFailure months have passed.
	MinMonthsSinceFailure     int    `yaml:"min_months_since_failure"`
	ImmediateOnFailure        bool   `yaml:"immediate_on_failure"`
	CD4AfterFailure           *Bound `yaml:"cd4_after_failure"`
	SevereIllnessAfterFailure bool   `yaml:"severe_illness_after_failure"`
	MaxMonthsSinceFailure     *int   `yaml:"max_months_since_failure"`
}

// EvaluateStart returns the first satisfied start branch, in order: CD4
// bounds, HVL bounds, joint CD4/HVL bounds, qualifying illnesses since the
// last regimen, CD4 bounds with illness history. Observed (tested) values are
// used, never the true ones.
func EvaluateStart(s *PatientState, p *StartPolicy) StartBranch {
	cd4 := func(b *Bound) Verdict { return b.Check(s.ObservedCD4, s.HasObservedCD4) }
	hvl := func(b *Bound) Verdict { return b.Check(float64(s.ObservedHVL), s.HasObservedHVL) }

	if cd4(p.CD4).Passed() {
		return StartCD4
	}
	if hvl(p.HVL).Passed() {
		return StartHVL
	}
	if j := p.CD4AndHVL; j != nil && Combine(j.UseOr, cd4(j.CD4), hvl(j.HVL)).Passed() {
		return StartCD4AndHVL
	}
	if p.IllnessesSinceLastRegimen.Check(s.SinceLastRegimen).Passed() {
		return StartIllnessCount
	}
	if h := p.CD4WithHistory; h != nil && Combine(false, cd4(&h.CD4), h.History.Check(s.Episodes)).Passed() {
		return StartCD4WithHistory
	}
	return StartNotMet
}

// EvaluateFail returns the first satisfied failure kind, in order: clinical,
// immunologic, virologic. Each kind may require the other axis to confirm.
func EvaluateFail(s *PatientState, p *FailPolicy) FailureKind {
	r := &s.Regimen
	if !r.Active || s.MonthsOnRegimen() < p.MinMonthsOnRegimen {
		return NotFailed
	}
	if c := p.Clinical; c != nil && c.Count.Check(s.OnRegimen).Passed() && confirmedOn(s, c.Confirm) {
		return FailedClinical
	}
	if im := p.Immunologic; im != nil && im.MinTests > 0 && r.ImmunologicFailTests >= im.MinTests && confirmedOn(s, im.Confirm) {
		return FailedImmunologic
	}
	if v := p.Virologic; v != nil && v.MinTests > 0 && r.VirologicFailTests >= v.MinTests && confirmedOn(s, v.Confirm) {
		return FailedVirologic
	}
	return NotFailed
}

// EvaluateStop returns the first satisfied stop reason. A patient with no
// active regimen is never stopped, so re-evaluating right after a stop yields
// NotStopped.
func EvaluateStop(s *PatientState, p *StopPolicy) StopKind {
	r := &s.Regimen
	if !r.Active {
		return NotStopped
	}
	if p.MaxMonthsOnRegimen != nil && s.MonthsOnRegimen() > *p.MaxMonthsOnRegimen {
		return StopMaxDuration
	}
	if p.OnMajorToxicity && r.MajorToxicity {
		return StopMajorToxicity
	}
	if p.SwitchOnChronicToxicity && r.ChronicToxicity {
		return StopChronicToxicity
	}

	if r.ObservedFailure == NotFailed {
		return NotStopped
	}
	sinceFailure := s.Month - r.FailMonth
	if sinceFailure < p.MinMonthsSinceFailure {
		return NotStopped
	}
	if p.ImmediateOnFailure {
		return StopOnFailure
	}
	if p.CD4AfterFailure.Check(s.ObservedCD4, s.HasObservedCD4).Passed() {
		return StopCD4AfterFailure
	}
	if p.SevereIllnessAfterFailure && r.SevereIllnessSinceFailure {
		return StopSevereIllnessAfterFailure
	}
	if p.MaxMonthsSinceFailure != nil && sinceFailure > *p.MaxMonthsSinceFailure {
		return StopMaxMonthsSinceFailure
	}
	return NotStopped
}

// immunologicTestFails reports whether an observed CD4 meets the active
// line's immunologic failure threshold.
func immunologicTestFails(r *RegimenState, p *ImmunologicFailure, observed float64) bool {
	if p == nil {
		return false
	}
	if p.FractionOfPeak > 0 && r.PeakObservedCD4 > 0 && observed < p.FractionOfPeak*r.PeakObservedCD4 {
		return true
	}
	return p.BelowBaseline && r.HasBaseline && observed < r.BaselineCD4
}

// virologicTestFails reports whether an observed HVL stratum meets the active
// line's virologic failure threshold.
func virologicTestFails(p *VirologicFailure, observed HVLStratum) bool {
	return p != nil && observed >= p.MinStratum
}
