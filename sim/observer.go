package sim

import "github.com/patient-sim/patient-sim/sim/trace"

// MonthAccrual is the survival and cost accrued for one patient-month. A
// patient dying in the month accrues half a month of life and of recurring cost.
type MonthAccrual struct {
	Month                int
	LifeMonths           float64
	DiscountedLifeMonths float64
	Cost                 float64
	DiscountedCost       float64
	Died                 bool
}

// PatientSummary is the row handed to statistics collaborators when a patient
// finishes (death or horizon).
type PatientSummary struct {
	RunID                string
	Patient              int
	Months               int
	LifeMonths           float64
	DiscountedLifeMonths float64
	Cost                 float64
	DiscountedCost       float64
	Died                 bool
	CauseOfDeath         string
	Infected             bool
	Detected             bool
	Illnesses            int
	RegimenLinesStarted  int
}

// Observer is the read-only collaborator port. Observers receive events,
// month accruals and summaries; they never see a Mutator.
type Observer interface {
	OnEvent(ev trace.Event)
	OnMonthEnd(s PatientState, acc MonthAccrual)
	OnPatientEnd(sum PatientSummary)
}

// Observers fans every call out to each member in order.
type Observers []Observer

func (o Observers) OnEvent(ev trace.Event) {
	for _, obs := range o {
		obs.OnEvent(ev)
	}
}

func (o Observers) OnMonthEnd(s PatientState, acc MonthAccrual) {
	for _, obs := range o {
		obs.OnMonthEnd(s, acc)
	}
}

func (o Observers) OnPatientEnd(sum PatientSummary) {
	for _, obs := range o {
		obs.OnPatientEnd(sum)
	}
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OnEvent(trace.Event)                  {}
func (NopObserver) OnMonthEnd(PatientState, MonthAccrual) {}
func (NopObserver) OnPatientEnd(PatientSummary)           {}

// TraceObserver records events into a SimulationTrace.
type TraceObserver struct {
	NopObserver
	Trace *trace.SimulationTrace
}

func (t *TraceObserver) OnEvent(ev trace.Event) {
	t.Trace.RecordEvent(ev)
}

// recording buffers every call so a worker's output can be replayed to the
// real observer in patient order.
type recording struct {
	events    []trace.Event
	months    []recordedMonth
	summaries []PatientSummary
	order     []callKind
}

type callKind uint8

const (
	callEvent callKind = iota
	callMonth
	callSummary
)

type recordedMonth struct {
	state PatientState
	acc   MonthAccrual
}

func (r *recording) OnEvent(ev trace.Event) {
	r.events = append(r.events, ev)
	r.order = append(r.order, callEvent)
}

func (r *recording) OnMonthEnd(s PatientState, acc MonthAccrual) {
	r.months = append(r.months, recordedMonth{state: s, acc: acc})
	r.order = append(r.order, callMonth)
}

func (r *recording) OnPatientEnd(sum PatientSummary) {
	r.summaries = append(r.summaries, sum)
	r.order = append(r.order, callSummary)
}

// replay forwards the buffered calls in their original order.
func (r *recording) replay(to Observer) {
	var e, m, s int
	for _, k := range r.order {
		switch k {
		case callEvent:
			to.OnEvent(r.events[e])
			e++
		case callMonth:
			to.OnMonthEnd(r.months[m].state, r.months[m].acc)
			m++
		case callSummary:
			to.OnPatientEnd(r.summaries[s])
			s++
		}
	}
}
