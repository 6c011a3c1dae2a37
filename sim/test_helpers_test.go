package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patient-sim/patient-sim/sim/internal/testutil"
	"github.com/patient-sim/patient-sim/sim/trace"
)

// loadTestTables parses and validates testdata/bundle.yaml.
func loadTestTables(t *testing.T) *Tables {
	t.Helper()
	bundle, err := ParseBundle(testutil.LoadFixture(t, "bundle.yaml"))
	require.NoError(t, err)
	require.NoError(t, bundle.Tables.Validate())
	return &bundle.Tables
}

// newTestPatient returns an infected adult patient in care at month 0 with
// nothing scheduled. Tests adjust the state directly.
func newTestPatient(tables *Tables, id int) *Patient {
	p := &Patient{state: newPatientState(id, tables.NumIllnesses()), provider: AdultProvider{}}
	s := &p.state
	s.AgeMonths = 360
	s.Infection = Infected
	s.InfectedMonth = 0
	s.CD4 = 300
	s.CD4Stratum = CD4StratumOf(300)
	s.NadirCD4Stratum = s.CD4Stratum
	s.SetpointHVL = HVLFrom10kTo30k
	s.HVL = HVLFrom10kTo30k
	s.ResponseFactor = 1
	s.Care = CareInCare
	return p
}

// scriptedSource replays queued uniform draws per stream and returns the mean
// for every Gaussian draw. A stream with nothing queued returns its standing
// value if one is set, and fallback otherwise.
type scriptedSource struct {
	uniforms map[Stream][]float64
	standing map[Stream]float64
	fallback float64
	calls    map[Stream]int
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		uniforms: make(map[Stream][]float64),
		standing: make(map[Stream]float64),
		fallback: 0.999999,
		calls:    make(map[Stream]int),
	}
}

// always makes every unqueued draw on stream return v.
func (s *scriptedSource) always(stream Stream, v float64) *scriptedSource {
	s.standing[stream] = v
	return s
}

func (s *scriptedSource) queue(stream Stream, draws ...float64) *scriptedSource {
	s.uniforms[stream] = append(s.uniforms[stream], draws...)
	return s
}

func (s *scriptedSource) Uniform(stream Stream, _ int) float64 {
	s.calls[stream]++
	if q := s.uniforms[stream]; len(q) > 0 {
		s.uniforms[stream] = q[1:]
		return q[0]
	}
	if v, ok := s.standing[stream]; ok {
		return v
	}
	return s.fallback
}

func (s *scriptedSource) Gaussian(mean, _ float64, stream Stream, _ int) float64 {
	s.calls[stream]++
	return mean
}

// eventLog records events for assertions.
type eventLog struct {
	NopObserver
	events []trace.Event
	months []MonthAccrual
	ends   []PatientSummary
}

func (l *eventLog) OnEvent(ev trace.Event) { l.events = append(l.events, ev) }

func (l *eventLog) OnMonthEnd(_ PatientState, acc MonthAccrual) { l.months = append(l.months, acc) }

func (l *eventLog) OnPatientEnd(sum PatientSummary) { l.ends = append(l.ends, sum) }

func (l *eventLog) kinds() []trace.Kind {
	out := make([]trace.Kind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) ofKind(kind trace.Kind) []trace.Event {
	var out []trace.Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

func float64Ptr(v float64) *float64 { return &v }
