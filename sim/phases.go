package sim

// Phase names one step of the monthly sequence.
type Phase int

const (
	PhaseBegin Phase = iota
	PhaseProgression
	PhaseIllness
	PhaseMortality
	PhaseCare
	PhaseTesting
	PhaseVisit
	PhasePolicy
	PhaseEnd
)

var phaseNames = map[Phase]string{
	PhaseBegin:       "begin",
	PhaseProgression: "progression",
	PhaseIllness:     "illness",
	PhaseMortality:   "mortality",
	PhaseCare:        "care",
	PhaseTesting:     "testing",
	PhaseVisit:       "visit",
	PhasePolicy:      "policy",
	PhaseEnd:         "end",
}

func (p Phase) String() string { return phaseNames[p] }

// progress advances infection and the true biomarkers by one month. An
// uninfected patient may acquire an infection instead.
func (ms *MonthScheduler) progress(m Mutator) {
	s := m.state()
	if !s.Infected() {
		if Bernoulli(ms.rng, StreamInfection, s.ID, ms.tables.Natural.MonthlyIncidence) {
			cd4, setpoint := drawInfection(ms.tables, ms.rng, s.ID)
			m.Infect(cd4, setpoint, "incident")
		}
		return
	}

	r := &s.Regimen
	if r.Active && !r.TrueFailure && Bernoulli(ms.rng, StreamRegimenFailure, s.ID, ms.tables.Regimens[r.Line].MonthlyFailProb) {
		m.SetTrueFailure()
	}

	nh := &ms.tables.Natural
	if r.Active && !r.TrueFailure {
		line := &ms.tables.Regimens[r.Line]
		gain := ms.rng.Gaussian(line.CD4GainMean, line.CD4GainStdDev, StreamBiomarker, s.ID)
		m.SetBiomarkers(s.CD4+gain*s.ResponseFactor, HVLSuppressed)
		return
	}
	decline := ms.rng.Gaussian(nh.CD4DeclineMean[s.SetpointHVL], nh.CD4DeclineStdDev, StreamBiomarker, s.ID)
	m.SetBiomarkers(s.CD4-decline, s.SetpointHVL)
}

// drawToxicity draws this month's regimen and preventive-course adverse events.
func (ms *MonthScheduler) drawToxicity(m Mutator) {
	s := m.state()
	if r := &s.Regimen; r.Active {
		line := &ms.tables.Regimens[r.Line]
		major := Bernoulli(ms.rng, StreamToxicity, s.ID, line.MajorToxicityProb)
		chronic := !r.ChronicToxicity && Bernoulli(ms.rng, StreamToxicity, s.ID, line.ChronicToxicityProb)
		m.SetToxicity(major, chronic)
	}

	for idx := range ms.tables.Proph {
		sched := &ms.tables.Proph[idx]
		ps := &s.Proph[sched.target]
		if !ps.Active {
			continue
		}
		line := &sched.Lines[ps.Line]
		if !ps.Resistant && Bernoulli(ms.rng, StreamProph, s.ID, line.ResistanceProb) {
			m.SetProphResistant(sched.target)
		}
		if Bernoulli(ms.rng, StreamToxicity, s.ID, line.MajorToxicityProb) {
			m.StopProph(sched.target, "major_toxicity", true)
		}
	}
}

// evaluateRegimen applies the active line's fail and stop policies, then the
// start policy of the next line. A stop emits its event before the next-line
// availability check.
func (ms *MonthScheduler) evaluateRegimen(m Mutator) {
	s := m.state()
	r := &s.Regimen
	if r.Active {
		line := &ms.tables.Regimens[r.Line]
		if kind := EvaluateFail(s, &line.Fail); kind != NotFailed {
			m.ObserveFailure(kind)
		}
		if stop := EvaluateStop(s, &line.Stop); stop != NotStopped {
			m.StopRegimen(stop)
			if r.NextLine >= len(ms.tables.Regimens) {
				m.MarkRegimensExhausted()
			}
		}
	}
	// A major toxicity is held until the first policy evaluation after it.
	r.MajorToxicity = false

	if r.Active || r.Suspended || r.Exhausted || r.Interruption == InterruptionPaused {
		return
	}
	if r.NextLine >= len(ms.tables.Regimens) {
		return
	}
	if branch := EvaluateStart(s, &ms.tables.Regimens[r.NextLine].Start); branch.Started() {
		m.StartRegimen(r.NextLine, branch)
	}
}

// evaluateInterruption pauses a suppressed regimen and resumes it once the
// observed CD4 falls below the configured threshold.
func (ms *MonthScheduler) evaluateInterruption(m Mutator) {
	rule := ms.tables.Interruption
	if rule == nil {
		return
	}
	s := m.state()
	r := &s.Regimen
	switch {
	case r.Interruption == InterruptionPaused:
		if s.HasObservedCD4 && s.ObservedCD4 < rule.ResumeBelowCD4 {
			m.ResumeInterruptedRegimen()
		}
	case r.Active && r.ObservedFailure == NotFailed:
		if rule.MaxCycles > 0 && r.InterruptionCycles >= rule.MaxCycles {
			return
		}
		since := r.StartMonth
		if r.Interruption == InterruptionResumed {
			since = r.CycleMonth
		}
		if s.HasObservedHVL && s.ObservedHVL == HVLSuppressed && s.Month-since >= rule.AfterSuppressedMonths {
			m.InterruptRegimen()
		}
	}
}

// evaluateProph applies each schedule's stop and start rules through the
// patient's policy provider.
func (ms *MonthScheduler) evaluateProph(m Mutator, provider PolicyProvider) {
	s := m.state()
	for idx := range ms.tables.Proph {
		sched := &ms.tables.Proph[idx]
		ps := &s.Proph[sched.target]
		if ps.Active {
			if provider.ProphStop(s, sched) == ProphStopCriteria {
				m.StopProph(sched.target, ProphStopCriteria.String(), false)
			}
			continue
		}
		if ps.Exhausted || ps.Line >= len(sched.Lines) {
			continue
		}
		if d := provider.ProphStart(s, sched); d == ProphStartPrimary || d == ProphStartSecondary {
			m.StartProph(sched.target, ps.Line, d)
		}
	}
}

// recurringCost is the month's cost of the active regimen and courses.
func (ms *MonthScheduler) recurringCost(s *PatientState) float64 {
	cost := 0.0
	if s.Regimen.Active {
		cost += ms.tables.Regimens[s.Regimen.Line].MonthlyCost
	}
	for idx := range ms.tables.Proph {
		sched := &ms.tables.Proph[idx]
		if ps := &s.Proph[sched.target]; ps.Active {
			cost += sched.Lines[ps.Line].MonthlyCost
		}
	}
	return cost
}
