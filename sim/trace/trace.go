package trace

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every clinical event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// Kinds restricts recording to the listed kinds; empty records all.
	Kinds []Kind
}

// SimulationTrace collects event records during a run.
type SimulationTrace struct {
	Config TraceConfig
	Events []Event

	kinds map[Kind]bool
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	st := &SimulationTrace{
		Config: config,
		Events: make([]Event, 0),
	}
	if len(config.Kinds) > 0 {
		st.kinds = make(map[Kind]bool, len(config.Kinds))
		for _, k := range config.Kinds {
			st.kinds[k] = true
		}
	}
	return st
}

// Enabled reports whether the trace records anything at all.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelEvents
}

// RecordEvent appends an event record if the level and kind filter allow it.
func (st *SimulationTrace) RecordEvent(ev Event) {
	if !st.Enabled() {
		return
	}
	if st.kinds != nil && !st.kinds[ev.Kind] {
		return
	}
	st.Events = append(st.Events, ev)
}

// ForPatient returns the recorded events of one patient, in order.
func (st *SimulationTrace) ForPatient(patient int) []Event {
	var out []Event
	for _, ev := range st.Events {
		if ev.Patient == patient {
			out = append(out, ev)
		}
	}
	return out
}
