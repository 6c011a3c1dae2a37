package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// MonthScheduler sequences the phases of one patient-month:
//
//	begin → progression → illness (infected) → mortality →
//	care → testing → visit → policy (alive and infected) → end
//
// The end phase always runs, so a patient dying this month still accrues half
// a month of survival and recurring cost.
type MonthScheduler struct {
	tables    *Tables
	rng       VariateSource
	obs       Observer
	sampler   *IllnessSampler
	care      *CareTracker
	monitor   *Monitor
	mortality *MortalityModel

	// OnPhase, if set, is called as each phase begins.
	OnPhase func(patient, month int, phase Phase)
}

// NewMonthScheduler wires the engine components over shared tables. obs may be nil.
func NewMonthScheduler(tables *Tables, rng VariateSource, obs Observer) *MonthScheduler {
	if obs == nil {
		obs = NopObserver{}
	}
	care := NewCareTracker(tables, rng)
	return &MonthScheduler{
		tables:    tables,
		rng:       rng,
		obs:       obs,
		sampler:   NewIllnessSampler(tables, rng, care),
		care:      care,
		monitor:   NewMonitor(tables, rng),
		mortality: NewMortalityModel(tables, rng),
	}
}

func (ms *MonthScheduler) enter(p *Patient, phase Phase) {
	logrus.Debugf("[patient %d month %04d] %s", p.state.ID, p.state.Month, phase)
	if ms.OnPhase != nil {
		ms.OnPhase(p.state.ID, p.state.Month, phase)
	}
}

// Step simulates one month for a living patient.
func (ms *MonthScheduler) Step(p *Patient, month int) {
	s := &p.state
	if !s.Alive {
		return
	}
	m := newMutator(p, ms.tables, ms.obs)
	s.Month = month

	ms.enter(p, PhaseBegin)
	ms.begin(p)

	ms.enter(p, PhaseProgression)
	ms.progress(m)
	if s.Infected() {
		ms.drawToxicity(m)
		ms.enter(p, PhaseIllness)
		ms.sampler.Sample(m)
	}

	ms.enter(p, PhaseMortality)
	died := false
	if dead, cause := ms.mortality.Draw(s, p.risks); dead {
		m.Die(cause)
		m.AddCost(ms.tables.Costs.DeathCost)
		died = true
	}

	if s.Alive && s.Infected() {
		ms.enter(p, PhaseCare)
		ms.care.Update(m)
		ms.enter(p, PhaseTesting)
		ms.monitor.RunDueTests(m)
		ms.enter(p, PhaseVisit)
		if ms.care.Visit(m) {
			ms.enter(p, PhasePolicy)
			ms.evaluateRegimen(m)
			ms.evaluateInterruption(m)
			ms.evaluateProph(m, p.provider)
		}
	}

	ms.enter(p, PhaseEnd)
	ms.finish(p, died)
}

// begin clears the month's accumulators and re-selects the policy provider
// when the patient's age category changed.
func (ms *MonthScheduler) begin(p *Patient) {
	s := &p.state
	p.risks.Reset()
	p.monthCost = 0
	p.visited = false
	s.MonthIllness = NoIllness

	if category := ms.tables.AgeCategoryOf(s.AgeMonths); p.provider == nil || p.provider.Category() != category {
		p.provider = NewPolicyProvider(category)
		logrus.Debugf("[patient %d month %04d] policy provider %s", s.ID, s.Month, category)
	}
	p.discount = math.Pow(1+ms.tables.Costs.AnnualDiscountRate, -float64(s.Month)/12)
}

// finish accrues the month and hands the observers a copy of the state.
func (ms *MonthScheduler) finish(p *Patient, died bool) {
	s := &p.state
	life := 1.0
	if died {
		life = 0.5
	}
	cost := ms.recurringCost(s)*life + p.monthCost
	acc := MonthAccrual{
		Month:                s.Month,
		LifeMonths:           life,
		DiscountedLifeMonths: life * p.discount,
		Cost:                 cost,
		DiscountedCost:       cost * p.discount,
		Died:                 died,
	}

	sum := &p.summary
	sum.Months++
	sum.LifeMonths += acc.LifeMonths
	sum.DiscountedLifeMonths += acc.DiscountedLifeMonths
	sum.Cost += acc.Cost
	sum.DiscountedCost += acc.DiscountedCost

	ms.obs.OnMonthEnd(s.Clone(), acc)
	if s.Alive {
		s.AgeMonths++
	}
}

// Simulate runs a patient from month 0 until death or the horizon and emits
// the summary row.
func (ms *MonthScheduler) Simulate(p *Patient, horizon int) PatientSummary {
	for month := 0; month < horizon && p.state.Alive; month++ {
		ms.Step(p, month)
	}

	s := &p.state
	sum := p.summary
	sum.Patient = s.ID
	sum.Died = !s.Alive
	sum.CauseOfDeath = s.CauseOfDeath
	sum.Infected = s.Infected()
	sum.Detected = s.DetectedMonth != NotScheduled
	sum.RegimenLinesStarted = s.Regimen.LinesStarted
	for _, n := range s.Episodes {
		sum.Illnesses += n
	}
	ms.obs.OnPatientEnd(sum)
	return sum
}
