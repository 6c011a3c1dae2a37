package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents      int
	UniquePatients   int
	KindDistribution map[Kind]int            // event kind → count
	DetailByKind     map[Kind]map[string]int // kind → causing branch → count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[Kind]int),
		DetailByKind:     make(map[Kind]map[string]int),
	}
	if st == nil {
		return summary
	}

	patients := make(map[int]bool)
	summary.TotalEvents = len(st.Events)
	for _, ev := range st.Events {
		patients[ev.Patient] = true
		summary.KindDistribution[ev.Kind]++
		if ev.Detail == "" {
			continue
		}
		details, ok := summary.DetailByKind[ev.Kind]
		if !ok {
			details = make(map[string]int)
			summary.DetailByKind[ev.Kind] = details
		}
		details[ev.Detail]++
	}
	summary.UniquePatients = len(patients)

	return summary
}
