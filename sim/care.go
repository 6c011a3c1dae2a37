package sim

// CareTracker applies care-state transitions: detection, linkage, loss to
// follow-up, return to care and clinic visits. It also owns the illness
// side effects on care, so the sampler only reports what occurred.
type CareTracker struct {
	tables *Tables
	rng    VariateSource
}

// NewCareTracker creates a CareTracker.
func NewCareTracker(tables *Tables, rng VariateSource) *CareTracker {
	return &CareTracker{tables: tables, rng: rng}
}

// RecordIllness records an episode and gives an undetected infected patient
// the illness's chance of being diagnosed because of it.
func (ct *CareTracker) RecordIllness(m Mutator, i Illness) {
	m.RecordIllness(i)
	s := m.state()
	if s.Care != CareUndetected || !s.Infected() {
		return
	}
	spec := &ct.tables.Illnesses[i]
	if Bernoulli(ct.rng, StreamDetection, s.ID, spec.DetectionProb) {
		m.Detect("illness:" + spec.Name)
	}
}

// Update runs the month's care transitions. At most one of loss and return
// happens per month, and a patient linked this month cannot also be lost.
func (ct *CareTracker) Update(m Mutator) {
	s := m.state()
	cfg := &ct.tables.Care
	start := s.Care

	if s.Care == CareUndetected && Bernoulli(ct.rng, StreamDetection, s.ID, cfg.MonthlyDetectionProb) {
		m.Detect("testing")
	}
	if s.Care == CareDetected && Bernoulli(ct.rng, StreamLinkage, s.ID, cfg.LinkageProb) {
		m.Link()
	}

	switch {
	case start.Engaged():
		if Bernoulli(ct.rng, StreamRetention, s.ID, cfg.LostProb) {
			m.LoseToFollowUp()
		}
	case start == CareLost:
		if Bernoulli(ct.rng, StreamRetention, s.ID, cfg.ReturnProb) {
			m.ReturnToCare()
		}
	}
}

// Visit holds a clinic visit when one is due. It reports whether the visit
// happened; treatment decisions are only taken at visits.
func (ct *CareTracker) Visit(m Mutator) bool {
	s := m.state()
	if !s.Care.Engaged() || !due(s.NextVisitMonth, s.Month) {
		return false
	}
	m.MarkVisited()
	m.AddCost(ct.tables.Costs.VisitCost)
	m.ScheduleVisit(nextMonth(s.Month, ct.tables.Care.VisitInterval))
	return true
}

// due reports whether a scheduled slot falls on or before month.
func due(scheduled, month int) bool {
	return scheduled != NotScheduled && scheduled <= month
}

// nextMonth schedules the next slot interval months ahead. A non-positive
// interval cancels the slot.
func nextMonth(month, interval int) int {
	if interval <= 0 {
		return NotScheduled
	}
	return month + interval
}
