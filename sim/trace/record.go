// Package trace provides month-tagged clinical event recording.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// Kind classifies a clinical event.
type Kind string

const (
	KindInfection        Kind = "infection"
	KindIllness          Kind = "illness"
	KindDetection        Kind = "detection"
	KindLinkage          Kind = "linkage"
	KindLost             Kind = "lost"
	KindReturn           Kind = "return"
	KindRegimenStart     Kind = "regimen_start"
	KindRegimenFail      Kind = "regimen_fail"
	KindRegimenStop      Kind = "regimen_stop"
	KindRegimenResume    Kind = "regimen_resume"
	KindRegimenExhausted Kind = "regimen_exhausted"
	KindInterruption     Kind = "interruption"
	KindToxicity         Kind = "toxicity"
	KindProphStart       Kind = "proph_start"
	KindProphStop        Kind = "proph_stop"
	KindProphResistance  Kind = "proph_resistance"
	KindProphExhausted   Kind = "proph_exhausted"
	KindDeath            Kind = "death"
)

// Event is one discrete, month-tagged clinical event. Detail names the branch
// or criterion that caused it (for example "immunologic" on a regimen failure).
type Event struct {
	Patient int
	Month   int
	Kind    Kind
	Detail  string
	Illness string // empty when not illness-specific
	Line    int    // regimen or course line; -1 when not applicable
}
