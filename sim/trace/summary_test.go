package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalEvents != 0 {
		t.Errorf("expected 0 total events, got %d", summary.TotalEvents)
	}
	if summary.UniquePatients != 0 {
		t.Errorf("expected 0 unique patients, got %d", summary.UniquePatients)
	}
	if len(summary.KindDistribution) != 0 {
		t.Error("expected empty kind distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalEvents != 0 || summary.KindDistribution == nil {
		t.Errorf("expected zero-value summary with initialized maps, got %+v", summary)
	}
}

func TestSummarize_PopulatedTrace_CountsKindsAndBranches(t *testing.T) {
	// GIVEN a trace with stops from two branches
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})
	st.RecordEvent(Event{Patient: 1, Kind: KindRegimenStop, Detail: "max_duration"})
	st.RecordEvent(Event{Patient: 2, Kind: KindRegimenStop, Detail: "major_toxicity"})
	st.RecordEvent(Event{Patient: 2, Kind: KindRegimenStop, Detail: "max_duration"})
	st.RecordEvent(Event{Patient: 3, Kind: KindDeath})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.TotalEvents != 4 {
		t.Errorf("expected 4 events, got %d", summary.TotalEvents)
	}
	if summary.UniquePatients != 3 {
		t.Errorf("expected 3 unique patients, got %d", summary.UniquePatients)
	}
	if summary.KindDistribution[KindRegimenStop] != 3 {
		t.Errorf("expected 3 stops, got %d", summary.KindDistribution[KindRegimenStop])
	}
	if summary.DetailByKind[KindRegimenStop]["max_duration"] != 2 {
		t.Errorf("expected 2 max_duration stops, got %d", summary.DetailByKind[KindRegimenStop]["max_duration"])
	}
	if _, ok := summary.DetailByKind[KindDeath]; ok {
		t.Error("events without detail must not create a branch map")
	}
}
