package sim

// The evaluators never return raw booleans: each outcome is tagged with the
// branch that produced it so the trigger survives into the event stream.

// StartBranch is the first satisfied branch of a regimen start policy.
type StartBranch int

const (
	StartNotMet StartBranch = iota
	StartCD4
	StartHVL
	StartCD4AndHVL
	StartIllnessCount
	StartCD4WithHistory
)

var startBranchNames = map[StartBranch]string{
	StartNotMet:         "not_met",
	StartCD4:            "cd4",
	StartHVL:            "hvl",
	StartCD4AndHVL:      "cd4_and_hvl",
	StartIllnessCount:   "illness_count",
	StartCD4WithHistory: "cd4_with_history",
}

func (b StartBranch) String() string { return startBranchNames[b] }

// Started reports whether any branch was satisfied.
func (b StartBranch) Started() bool { return b != StartNotMet }

// FailureKind is the observed failure kind of a regimen line.
type FailureKind int

const (
	NotFailed FailureKind = iota
	FailedClinical
	FailedImmunologic
	FailedVirologic
)

var failureKindNames = map[FailureKind]string{
	NotFailed:         "not_failed",
	FailedClinical:    "clinical",
	FailedImmunologic: "immunologic",
	FailedVirologic:   "virologic",
}

func (k FailureKind) String() string { return failureKindNames[k] }

// StopKind is the reason a regimen line was (or would be) stopped.
type StopKind int

const (
	NotStopped StopKind = iota
	StopMaxDuration
	StopMajorToxicity
	StopChronicToxicity
	StopOnFailure
	StopCD4AfterFailure
	StopSevereIllnessAfterFailure
	StopMaxMonthsSinceFailure
	StopLostToFollowUp
)

var stopKindNames = map[StopKind]string{
	NotStopped:                    "not_stopped",
	StopMaxDuration:               "max_duration",
	StopMajorToxicity:             "major_toxicity",
	StopChronicToxicity:           "chronic_toxicity_switch",
	StopOnFailure:                 "immediate_on_failure",
	StopCD4AfterFailure:           "cd4_after_failure",
	StopSevereIllnessAfterFailure: "severe_illness_after_failure",
	StopMaxMonthsSinceFailure:     "max_months_since_failure",
	StopLostToFollowUp:            "lost_to_follow_up",
}

func (k StopKind) String() string { return stopKindNames[k] }

// ProphDecision is the outcome of a preventive-course evaluation.
type ProphDecision int

const (
	ProphNoChange ProphDecision = iota
	ProphStartPrimary
	ProphStartSecondary
	ProphStopCriteria
)

var prophDecisionNames = map[ProphDecision]string{
	ProphNoChange:       "no_change",
	ProphStartPrimary:   "primary",
	ProphStartSecondary: "secondary",
	ProphStopCriteria:   "criteria",
}

func (d ProphDecision) String() string { return prophDecisionNames[d] }
