package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patient-sim/patient-sim/sim/trace"
)

func TestObservers_FanOutInOrder(t *testing.T) {
	a, b := &eventLog{}, &eventLog{}
	obs := Observers{a, b}

	obs.OnEvent(trace.Event{Kind: trace.KindIllness})
	obs.OnMonthEnd(PatientState{}, MonthAccrual{Month: 3})
	obs.OnPatientEnd(PatientSummary{Patient: 9})

	for _, l := range []*eventLog{a, b} {
		assert.Len(t, l.events, 1)
		assert.Equal(t, 3, l.months[0].Month)
		assert.Equal(t, 9, l.ends[0].Patient)
	}
}

// callOrder records the sequence of observer calls.
type callOrder struct {
	calls []string
}

func (c *callOrder) OnEvent(ev trace.Event) { c.calls = append(c.calls, "event:"+string(ev.Kind)) }
func (c *callOrder) OnMonthEnd(PatientState, MonthAccrual) {
	c.calls = append(c.calls, "month")
}
func (c *callOrder) OnPatientEnd(PatientSummary) { c.calls = append(c.calls, "end") }

func TestRecording_ReplayPreservesInterleaving(t *testing.T) {
	// GIVEN calls buffered in an interleaved order
	rec := &recording{}
	rec.OnEvent(trace.Event{Kind: trace.KindInfection})
	rec.OnMonthEnd(PatientState{}, MonthAccrual{})
	rec.OnEvent(trace.Event{Kind: trace.KindDeath})
	rec.OnMonthEnd(PatientState{}, MonthAccrual{Died: true})
	rec.OnPatientEnd(PatientSummary{})

	// WHEN replayed
	out := &callOrder{}
	rec.replay(out)

	// THEN the original sequence is reproduced
	assert.Equal(t, []string{"event:infection", "month", "event:death", "month", "end"}, out.calls)
}

func TestTraceObserver_RecordsEvents(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelEvents})
	obs := &TraceObserver{Trace: st}

	obs.OnEvent(trace.Event{Patient: 1, Kind: trace.KindLinkage})
	obs.OnPatientEnd(PatientSummary{})

	assert.Len(t, st.Events, 1)
}

func TestPatientState_CloneIsDeep(t *testing.T) {
	s := newPatientState(0, 2)
	c := s.Clone()
	c.Episodes[0] = 4
	c.Proph[1].Active = true

	assert.Equal(t, 0, s.Episodes[0])
	assert.False(t, s.Proph[1].Active)
}
