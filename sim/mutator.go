package sim

import (
	"math"

	"github.com/patient-sim/patient-sim/sim/trace"
)

// Mutator is the write capability over one patient's clinical state. It is
// created by the MonthScheduler and handed only to engine components (the
// illness sampler, the care tracker and the policy phases). Observers never
// receive one. Every state change that matters to the outside world emits a
// month-tagged event through the scheduler's Observer.
type Mutator struct {
	p      *Patient
	tables *Tables
	obs    Observer
}

func newMutator(p *Patient, tables *Tables, obs Observer) Mutator {
	if obs == nil {
		obs = NopObserver{}
	}
	return Mutator{p: p, tables: tables, obs: obs}
}

// state exposes the state for in-package reads. Evaluators take the pointer
// and must not write through it.
func (m Mutator) state() *PatientState {
	return &m.p.state
}

func (m Mutator) emit(kind trace.Kind, detail string, illness Illness, line int) {
	m.obs.OnEvent(trace.Event{
		Patient: m.p.state.ID,
		Month:   m.p.state.Month,
		Kind:    kind,
		Detail:  detail,
		Illness: m.tables.IllnessName(illness),
		Line:    line,
	})
}

// AddCost records a one-off cost triggered this month.
func (m Mutator) AddCost(amount float64) {
	m.p.monthCost += amount
}

// AddMortalityRisk adds a (cause, ratio) pair to this month's risk set.
func (m Mutator) AddMortalityRisk(cause string, ratio float64) {
	m.p.risks.Add(cause, ratio)
}

// Infect marks a new infection this month with its initial CD4 count and
// HVL setpoint. detail tells prevalent from incident infections.
func (m Mutator) Infect(cd4 float64, setpoint HVLStratum, detail string) {
	s := m.state()
	s.Infection = Infected
	s.InfectedMonth = s.Month
	s.SetpointHVL = setpoint
	s.NadirCD4Stratum = CD4StratumOf(cd4)
	m.SetBiomarkers(cd4, setpoint)
	m.emit(trace.KindInfection, detail, NoIllness, -1)
}

// SetBiomarkers updates the true CD4 count and HVL stratum and keeps the nadir.
func (m Mutator) SetBiomarkers(cd4 float64, hvl HVLStratum) {
	s := m.state()
	s.CD4 = math.Max(0, cd4)
	s.CD4Stratum = CD4StratumOf(s.CD4)
	if s.CD4Stratum < s.NadirCD4Stratum {
		s.NadirCD4Stratum = s.CD4Stratum
	}
	s.HVL = hvl
}

// RecordIllness records an acute episode: history, counters and staging.
func (m Mutator) RecordIllness(i Illness) {
	s := m.state()
	spec := &m.tables.Illnesses[i]
	s.MonthIllness = i
	s.History = s.History.With(i)
	s.Episodes[i]++
	if s.Regimen.Active {
		s.OnRegimen[i]++
		if spec.Severe && s.Regimen.ObservedFailure != NotFailed {
			s.Regimen.SevereIllnessSinceFailure = true
		}
	} else {
		s.SinceLastRegimen[i]++
	}
	switch {
	case spec.Severe:
		s.Staging = StagingSevere
	case s.Staging == StagingAsymptomatic:
		s.Staging = StagingSymptomatic
	}
	m.AddCost(spec.Cost)
	detail := "mild"
	if spec.Severe {
		detail = "severe"
	}
	m.emit(trace.KindIllness, detail, i, -1)
}

// Detect records diagnosis. detail names how (testing or an illness).
func (m Mutator) Detect(detail string) {
	s := m.state()
	if s.Care != CareUndetected {
		return
	}
	s.Care = CareDetected
	s.DetectedMonth = s.Month
	m.emit(trace.KindDetection, detail, NoIllness, -1)
}

// Link moves a detected patient into care and schedules visits and tests now.
func (m Mutator) Link() {
	s := m.state()
	if s.Care != CareDetected {
		return
	}
	s.Care = CareInCare
	m.scheduleAllNow()
	m.emit(trace.KindLinkage, "", NoIllness, -1)
}

// LoseToFollowUp cancels every scheduled visit and test, suspends the active
// regimen and stops all preventive courses.
func (m Mutator) LoseToFollowUp() {
	s := m.state()
	s.Care = CareLost
	s.NextVisitMonth = NotScheduled
	s.NextCD4TestMonth = NotScheduled
	s.NextHVLTestMonth = NotScheduled
	m.emit(trace.KindLost, "", NoIllness, -1)
	if s.Regimen.Active {
		s.Regimen.Active = false
		s.Regimen.Suspended = true
		s.Regimen.LastStop = StopLostToFollowUp
		m.emit(trace.KindRegimenStop, StopLostToFollowUp.String(), NoIllness, s.Regimen.Line)
	}
	for i := range s.Proph {
		if s.Proph[i].Active {
			m.StopProph(Illness(i), "lost_to_follow_up", false)
		}
	}
}

// ReturnToCare re-engages a lost patient; a suspended regimen resumes on the same line.
func (m Mutator) ReturnToCare() {
	s := m.state()
	if s.Care != CareLost {
		return
	}
	s.Care = CareReturned
	m.scheduleAllNow()
	m.emit(trace.KindReturn, "", NoIllness, -1)
	if s.Regimen.Suspended {
		s.Regimen.Suspended = false
		s.Regimen.Active = true
		m.emit(trace.KindRegimenResume, "return_to_care", NoIllness, s.Regimen.Line)
	}
}

func (m Mutator) scheduleAllNow() {
	s := m.state()
	s.NextVisitMonth = s.Month
	s.NextCD4TestMonth = s.Month
	s.NextHVLTestMonth = s.Month
}

// ScheduleVisit sets the next clinic visit month (NotScheduled cancels).
func (m Mutator) ScheduleVisit(month int) {
	m.state().NextVisitMonth = month
}

// ScheduleCD4Test sets the next CD4 test month (NotScheduled cancels).
func (m Mutator) ScheduleCD4Test(month int) {
	m.state().NextCD4TestMonth = month
}

// ScheduleHVLTest sets the next HVL test month (NotScheduled cancels).
func (m Mutator) ScheduleHVLTest(month int) {
	m.state().NextHVLTestMonth = month
}

// MarkVisited records that a clinic visit happened this month.
func (m Mutator) MarkVisited() {
	m.p.visited = true
}

// RecordCD4Test stores an observed CD4 result. failing reports whether it met
// the active regimen's immunologic failure threshold.
func (m Mutator) RecordCD4Test(observed float64, failing bool) {
	s := m.state()
	if !s.HasObservedCD4 || observed < s.MinObservedCD4 {
		s.MinObservedCD4 = observed
	}
	s.ObservedCD4 = observed
	s.HasObservedCD4 = true
	s.ObservedCD4Month = s.Month
	r := &s.Regimen
	if !r.Active {
		return
	}
	if observed > r.PeakObservedCD4 {
		r.PeakObservedCD4 = observed
	}
	if failing {
		r.ImmunologicFailTests++
	} else {
		r.ImmunologicFailTests = 0
	}
}

// RecordHVLTest stores an observed HVL stratum.
func (m Mutator) RecordHVLTest(observed HVLStratum, failing bool) {
	s := m.state()
	s.ObservedHVL = observed
	s.HasObservedHVL = true
	s.ObservedHVLMonth = s.Month
	if !s.Regimen.Active {
		return
	}
	if failing {
		s.Regimen.VirologicFailTests++
	} else {
		s.Regimen.VirologicFailTests = 0
	}
}

// StartRegimen starts the given line. Starting resets every per-attempt field.
func (m Mutator) StartRegimen(line int, branch StartBranch) {
	s := m.state()
	s.Regimen = RegimenState{
		Active:             true,
		Line:               line,
		NextLine:           line + 1,
		StartMonth:         s.Month,
		BaselineCD4:        s.ObservedCD4,
		HasBaseline:        s.HasObservedCD4,
		PeakObservedCD4:    s.ObservedCD4,
		LinesStarted:       s.Regimen.LinesStarted + 1,
		InterruptionCycles: s.Regimen.InterruptionCycles,
	}
	clear(s.OnRegimen)
	clear(s.SinceLastRegimen)
	m.emit(trace.KindRegimenStart, branch.String(), NoIllness, line)
}

// ObserveFailure records an observed failure. Transitions are monotonic: a
// second call on the same attempt is ignored.
func (m Mutator) ObserveFailure(kind FailureKind) {
	r := &m.state().Regimen
	if !r.Active || kind == NotFailed || r.ObservedFailure != NotFailed {
		return
	}
	r.ObservedFailure = kind
	r.FailMonth = m.state().Month
	m.emit(trace.KindRegimenFail, kind.String(), NoIllness, r.Line)
}

// StopRegimen stops the active line. The event is emitted before the caller
// checks next-line availability.
func (m Mutator) StopRegimen(kind StopKind) {
	s := m.state()
	r := &s.Regimen
	if !r.Active || kind == NotStopped {
		return
	}
	r.Active = false
	r.LastStop = kind
	r.StopMonth = s.Month
	r.MajorToxicity = false
	r.Interruption = InterruptionNone
	clear(s.SinceLastRegimen)
	m.emit(trace.KindRegimenStop, kind.String(), NoIllness, r.Line)
}

// MarkRegimensExhausted records that no further line is configured.
func (m Mutator) MarkRegimensExhausted() {
	r := &m.state().Regimen
	if r.Exhausted {
		return
	}
	r.Exhausted = true
	m.emit(trace.KindRegimenExhausted, "no_further_line", NoIllness, r.NextLine)
}

// InterruptRegimen pauses the active regimen as part of an interruption cycle.
func (m Mutator) InterruptRegimen() {
	r := &m.state().Regimen
	if !r.Active {
		return
	}
	r.Active = false
	r.Interruption = InterruptionPaused
	r.CycleMonth = m.state().Month
	m.emit(trace.KindInterruption, "paused", NoIllness, r.Line)
}

// ResumeInterruptedRegimen restarts a paused regimen on the same line.
func (m Mutator) ResumeInterruptedRegimen() {
	r := &m.state().Regimen
	if r.Interruption != InterruptionPaused {
		return
	}
	r.Active = true
	r.Interruption = InterruptionResumed
	r.InterruptionCycles++
	r.CycleMonth = m.state().Month
	m.emit(trace.KindInterruption, "resumed", NoIllness, r.Line)
}

// SetTrueFailure marks hidden failure of the active line.
func (m Mutator) SetTrueFailure() {
	m.state().Regimen.TrueFailure = true
}

// SetToxicity records this month's major toxicity and sticky chronic toxicity.
func (m Mutator) SetToxicity(major, chronic bool) {
	r := &m.state().Regimen
	if major {
		r.MajorToxicity = true
		m.emit(trace.KindToxicity, "major", NoIllness, r.Line)
	}
	if chronic && !r.ChronicToxicity {
		r.ChronicToxicity = true
		m.emit(trace.KindToxicity, "chronic", NoIllness, r.Line)
	}
}

// StartProph starts a preventive course against illness i.
func (m Mutator) StartProph(i Illness, line int, decision ProphDecision) {
	s := m.state()
	ps := &s.Proph[i]
	if ps.Active {
		return
	}
	ps.Active = true
	ps.Line = line
	ps.StartMonth = s.Month
	ps.Secondary = decision == ProphStartSecondary
	ps.Resistant = false
	m.emit(trace.KindProphStart, decision.String(), i, line)
}

// StopProph stops the course against illness i. advance moves to the next
// course line; when none is configured the schedule is marked exhausted.
func (m Mutator) StopProph(i Illness, reason string, advance bool) {
	ps := &m.state().Proph[i]
	if !ps.Active {
		return
	}
	ps.Active = false
	m.emit(trace.KindProphStop, reason, i, ps.Line)
	if !advance {
		return
	}
	ps.Line++
	if sched := m.tables.ProphFor(i); sched == nil || ps.Line >= len(sched.Lines) {
		ps.Exhausted = true
		m.emit(trace.KindProphExhausted, "no_further_line", i, ps.Line)
	}
}

// SetProphResistant marks resistance to the active course against illness i.
func (m Mutator) SetProphResistant(i Illness) {
	ps := &m.state().Proph[i]
	if !ps.Active || ps.Resistant {
		return
	}
	ps.Resistant = true
	m.emit(trace.KindProphResistance, "", i, ps.Line)
}

// Die records death with its cause.
func (m Mutator) Die(cause string) {
	s := m.state()
	s.Alive = false
	s.CauseOfDeath = cause
	m.emit(trace.KindDeath, cause, NoIllness, -1)
}
