package sim

// NotScheduled marks a visit or test slot with no future month.
const NotScheduled = -1

// InfectionStatus of a patient.
type InfectionStatus int

const (
	Uninfected InfectionStatus = iota
	Infected
)

// CareState tracks engagement with care.
type CareState int

const (
	CareUndetected CareState = iota
	CareDetected             // diagnosed, not yet linked
	CareInCare
	CareLost
	CareReturned
)

var careStateNames = map[CareState]string{
	CareUndetected: "undetected",
	CareDetected:   "detected",
	CareInCare:     "in_care",
	CareLost:       "lost",
	CareReturned:   "returned",
}

func (c CareState) String() string { return careStateNames[c] }

// Engaged reports whether the patient currently attends clinic visits.
func (c CareState) Engaged() bool {
	return c == CareInCare || c == CareReturned
}

// Staging is the symptom staging of a patient. It only moves upward.
type Staging int

const (
	StagingAsymptomatic Staging = iota
	StagingSymptomatic
	StagingSevere
)

// InterruptionState is the position in a structured treatment interruption cycle.
type InterruptionState int

const (
	InterruptionNone InterruptionState = iota
	InterruptionPaused
	InterruptionResumed
)

// RegimenState is the regimen-line state of a patient. Line is the index of
// the active (or most recent) line and NextLine the line a new start would use.
type RegimenState struct {
	Active     bool
	Suspended  bool // stopped by loss to follow-up, resumes on return
	Line       int
	NextLine   int
	Exhausted  bool // no further line configured
	StartMonth int

	TrueFailure     bool
	ObservedFailure FailureKind
	FailMonth       int
	LastStop        StopKind
	StopMonth       int

	MajorToxicity   bool // pending until the next policy evaluation
	ChronicToxicity bool

	BaselineCD4     float64
	HasBaseline     bool
	PeakObservedCD4 float64

	ImmunologicFailTests      int
	VirologicFailTests        int
	SevereIllnessSinceFailure bool
	LinesStarted              int

	Interruption       InterruptionState
	InterruptionCycles int
	CycleMonth         int // month the current interruption phase began
}

// ProphState is the preventive-course state for one target illness.
type ProphState struct {
	Active     bool
	Line       int
	StartMonth int
	Secondary  bool
	Resistant  bool
	Exhausted  bool // no further course line configured
}

// PatientState is the clinical state of one simulated patient. It is owned by
// Patient and only mutated through Mutator; observers receive copies.
type PatientState struct {
	ID        int
	Month     int
	AgeMonths int
	Alive     bool

	Infection     InfectionStatus
	InfectedMonth int

	// True (hidden) biomarkers.
	CD4             float64
	CD4Stratum      CD4Stratum
	NadirCD4Stratum CD4Stratum
	HVL             HVLStratum
	SetpointHVL     HVLStratum
	ResponseFactor  float64

	// Observed biomarkers, as revealed by the latest tests.
	ObservedCD4      float64
	HasObservedCD4   bool
	MinObservedCD4   float64
	ObservedHVL      HVLStratum
	HasObservedHVL   bool
	ObservedCD4Month int
	ObservedHVLMonth int

	Care             CareState
	DetectedMonth    int
	NextVisitMonth   int
	NextCD4TestMonth int
	NextHVLTestMonth int

	Regimen RegimenState
	Proph   []ProphState // indexed by target illness

	History          IllnessSet
	Episodes         []int // per illness, ever
	SinceLastRegimen []int // per illness, while off treatment since the last regimen
	OnRegimen        []int // per illness, since the current regimen started

	Staging           Staging
	ProphNonCompliant bool

	MonthIllness Illness
	CauseOfDeath string
}

// Clone returns a deep copy safe to hand to observers.
func (s PatientState) Clone() PatientState {
	c := s
	c.Proph = append([]ProphState(nil), s.Proph...)
	c.Episodes = append([]int(nil), s.Episodes...)
	c.SinceLastRegimen = append([]int(nil), s.SinceLastRegimen...)
	c.OnRegimen = append([]int(nil), s.OnRegimen...)
	return c
}

// Infected reports whether the patient is infected.
func (s *PatientState) Infected() bool {
	return s.Infection == Infected
}

// MonthsOnRegimen returns the months since the active regimen started.
func (s *PatientState) MonthsOnRegimen() int {
	return s.Month - s.Regimen.StartMonth
}

// Patient is the aggregate owning one patient's state and per-month
// accumulators. Create with Run.Enroll.
type Patient struct {
	state    PatientState
	risks    MortalityRisks
	provider PolicyProvider

	discount  float64
	monthCost float64 // one-off costs triggered this month
	visited   bool
	summary   PatientSummary
}

// ID returns the patient number.
func (p *Patient) ID() int {
	return p.state.ID
}

// Alive reports whether the patient is alive.
func (p *Patient) Alive() bool {
	return p.state.Alive
}

// View returns a read-only copy of the clinical state.
func (p *Patient) View() PatientState {
	return p.state.Clone()
}

// Risks returns the mortality risks accumulated so far this month.
func (p *Patient) Risks() []MortalityRisk {
	return append([]MortalityRisk(nil), p.risks...)
}

// newPatientState allocates the per-illness slices for n illnesses.
func newPatientState(id, illnesses int) PatientState {
	return PatientState{
		ID:               id,
		Alive:            true,
		Proph:            make([]ProphState, illnesses),
		Episodes:         make([]int, illnesses),
		SinceLastRegimen: make([]int, illnesses),
		OnRegimen:        make([]int, illnesses),
		NextVisitMonth:   NotScheduled,
		NextCD4TestMonth: NotScheduled,
		NextHVLTestMonth: NotScheduled,
		MonthIllness:     NoIllness,
		InfectedMonth:    NotScheduled,
		DetectedMonth:    NotScheduled,
	}
}
