package sim

import "math"

// NumCD4Strata and NumHVLStrata are the sizes of the two biomarker axes.
const (
	NumCD4Strata = 6
	NumHVLStrata = 7
)

// CD4Stratum buckets the primary biomarker. Lower strata carry higher risk.
type CD4Stratum int

const (
	CD4Below50 CD4Stratum = iota
	CD4From50To100
	CD4From100To200
	CD4From200To350
	CD4From350To500
	CD4Above500
)

// cd4StratumUpper holds the exclusive upper edge of each stratum (cells/µL).
var cd4StratumUpper = [NumCD4Strata]float64{50, 100, 200, 350, 500, math.Inf(1)}

// CD4StratumOf maps a CD4 count to its stratum.
func CD4StratumOf(cd4 float64) CD4Stratum {
	for i, upper := range cd4StratumUpper {
		if cd4 < upper {
			return CD4Stratum(i)
		}
	}
	return CD4Above500
}

// HVLStratum buckets the second biomarker (viral load). HVLSuppressed is the
// on-treatment floor; HVLAbove100k the highest setpoint.
type HVLStratum int

const (
	HVLSuppressed HVLStratum = iota
	HVLBelow500
	HVLFrom500To3k
	HVLFrom3kTo10k
	HVLFrom10kTo30k
	HVLFrom30kTo100k
	HVLAbove100k
)

// Illness indexes Tables.Illnesses. The slice order is the fixed enumeration
// order used by the competing-risk walk.
type Illness int

// NoIllness is the "none" outcome of a month.
const NoIllness Illness = -1

// IllnessSet is a bitset over illness indices (at most 64 illnesses).
type IllnessSet uint64

// Has reports whether illness i is in the set.
func (s IllnessSet) Has(i Illness) bool {
	return i >= 0 && s&(1<<uint(i)) != 0
}

// With returns the set with illness i added.
func (s IllnessSet) With(i Illness) IllnessSet {
	return s | 1<<uint(i)
}

// maxIllnesses is bounded by IllnessSet's width.
const maxIllnesses = 64

// Tables is the run-wide, read-only set of policy and parameter tables.
// It is built once (LoadBundle) and validated before simulation; after
// Validate it must not be modified.
type Tables struct {
	Illnesses      []IllnessSpec     `yaml:"illnesses"`
	Natural        NaturalHistory    `yaml:"natural_history"`
	AgeBands       []AgeBand         `yaml:"age_bands"`
	Regimens       []RegimenLine     `yaml:"regimens"`
	Proph          []ProphSchedule   `yaml:"proph"`
	Care           CareConfig        `yaml:"care"`
	Interruption   *InterruptionRule `yaml:"interruption"`
	Costs          CostConfig        `yaml:"costs"`
	AgeBandedUntil int               `yaml:"age_banded_until_months"` // 0 = every patient uses the flat provider

	illnessIndex map[string]Illness
	prophIndex   []int // illness -> index into Proph, -1 if none
}

// IllnessSpec holds the per-illness base probabilities and consequences.
type IllnessSpec struct {
	Name   string `yaml:"name"`
	Severe bool   `yaml:"severe"`
	// Monthly base probability per CD4 stratum, without / with prior history of this illness.
	ProbNoHistory   []float64 `yaml:"prob_no_history"`
	ProbWithHistory []float64 `yaml:"prob_with_history"`
	// Death rate ratio per CD4 stratum applied in the month a severe episode occurs.
	SevereMortalityRatio []float64 `yaml:"severe_mortality_ratio"`
	DetectionProb        float64   `yaml:"detection_prob"` // chance an episode reveals an undetected infection
	Cost                 float64   `yaml:"cost"`
}

// baseProb returns the table probability for a stratum and history flag.
func (is *IllnessSpec) baseProb(stratum CD4Stratum, history bool) float64 {
	if history {
		return is.ProbWithHistory[stratum]
	}
	return is.ProbNoHistory[stratum]
}

// NaturalHistory parameterizes enrollment draws and untreated progression.
type NaturalHistory struct {
	Prevalence       float64   `yaml:"prevalence"`
	MonthlyIncidence float64   `yaml:"monthly_incidence"`
	InitialAgeMean   float64   `yaml:"initial_age_mean_months"`
	InitialAgeStdDev float64   `yaml:"initial_age_stddev_months"`
	InitialCD4Mean   float64   `yaml:"initial_cd4_mean"`
	InitialCD4StdDev float64   `yaml:"initial_cd4_stddev"`
	InitialHVL       []float64 `yaml:"initial_hvl"` // distribution over HVL strata
	// Monthly CD4 decline off treatment, per HVL stratum.
	CD4DeclineMean   []float64 `yaml:"cd4_decline_mean"`
	CD4DeclineStdDev float64   `yaml:"cd4_decline_stddev"`
	// Monthly disease death rate per CD4 stratum; multiplied by the month's risk ratios.
	CD4MortalityRate []float64 `yaml:"cd4_mortality_rate"`
	// Weight on the current stratum when blending with the nadir on treatment; nil disables blending.
	FractionOfBenefit             *float64 `yaml:"fraction_of_benefit"`
	ResponseFactorMean            float64  `yaml:"response_factor_mean"`
	ResponseFactorStdDev          float64  `yaml:"response_factor_stddev"`
	ResistanceMortalityMultiplier float64  `yaml:"resistance_mortality_multiplier"`
}

// AgeBand holds age-dependent rates. Bands are ordered; the first band whose
// UpperMonths exceeds the patient's age applies, the last band catches the rest.
type AgeBand struct {
	UpperMonths             int     `yaml:"upper_months"`
	BackgroundMortality     float64 `yaml:"background_mortality"` // monthly rate
	SevereIllnessMultiplier float64 `yaml:"severe_illness_multiplier"`
}

// AgeBandFor returns the band covering the given age.
func (t *Tables) AgeBandFor(ageMonths int) *AgeBand {
	for i := range t.AgeBands {
		if ageMonths < t.AgeBands[i].UpperMonths {
			return &t.AgeBands[i]
		}
	}
	return &t.AgeBands[len(t.AgeBands)-1]
}

// RegimenLine is one sequential treatment attempt with its policies.
type RegimenLine struct {
	Name                string  `yaml:"name"`
	MonthlyCost         float64 `yaml:"monthly_cost"`
	CD4GainMean         float64 `yaml:"cd4_gain_mean"` // monthly gain while suppressed
	CD4GainStdDev       float64 `yaml:"cd4_gain_stddev"`
	MonthlyFailProb     float64 `yaml:"monthly_fail_prob"` // true (hidden) failure hazard
	MajorToxicityProb   float64 `yaml:"major_toxicity_prob"`
	ChronicToxicityProb float64 `yaml:"chronic_toxicity_prob"`
	// Full-effect illness rate multiplier per illness name; absent illnesses get 1.
	IllnessRateMultiplier map[string]float64 `yaml:"illness_rate_multiplier"`

	Start StartPolicy `yaml:"start"`
	Fail  FailPolicy  `yaml:"fail"`
	Stop  StopPolicy  `yaml:"stop"`

	rateMultiplier []float64
}

// ProphSchedule lists the preventive course lines targeting one illness.
type ProphSchedule struct {
	Illness   string      `yaml:"illness"`
	Lines     []ProphLine `yaml:"lines"`
	Primary   ProphPolicy `yaml:"primary"`
	Secondary ProphPolicy `yaml:"secondary"`
	AgeBanded *ExprPolicy `yaml:"age_banded"`

	target Illness
}

// ProphLine is one preventive course. A course may protect against illnesses
// beyond the one it is scheduled for.
type ProphLine struct {
	Name              string             `yaml:"name"`
	Efficacy          map[string]float64 `yaml:"efficacy"`
	ResistanceProb    float64            `yaml:"resistance_prob"`    // monthly
	ResistancePenalty float64            `yaml:"resistance_penalty"` // fraction of efficacy lost once resistant
	MajorToxicityProb float64            `yaml:"major_toxicity_prob"`
	MonthlyCost       float64            `yaml:"monthly_cost"`

	efficacy []float64
}

// CareConfig parameterizes detection, linkage, retention and monitoring.
type CareConfig struct {
	MonthlyDetectionProb      float64 `yaml:"monthly_detection_prob"`
	LinkageProb               float64 `yaml:"linkage_prob"`
	LostProb                  float64 `yaml:"lost_prob"`
	ReturnProb                float64 `yaml:"return_prob"`
	VisitInterval             int     `yaml:"visit_interval_months"`
	CD4TestInterval           int     `yaml:"cd4_test_interval_months"`
	HVLTestInterval           int     `yaml:"hvl_test_interval_months"`
	CD4TestStdDev             float64 `yaml:"cd4_test_stddev"`
	ProphNonComplianceProb    float64 `yaml:"proph_non_compliance_prob"`
	ProphNonCompliancePenalty float64 `yaml:"proph_non_compliance_penalty"`
}

// InterruptionRule configures the structured pause-and-resume cycle of an
// active regimen.
type InterruptionRule struct {
	AfterSuppressedMonths int     `yaml:"after_suppressed_months"`
	ResumeBelowCD4        float64 `yaml:"resume_below_cd4"`
	MaxCycles             int     `yaml:"max_cycles"`
}

// CostConfig holds unit costs used at the accrual trigger points.
type CostConfig struct {
	AnnualDiscountRate float64 `yaml:"annual_discount_rate"`
	VisitCost          float64 `yaml:"visit"`
	CD4TestCost        float64 `yaml:"cd4_test"`
	HVLTestCost        float64 `yaml:"hvl_test"`
	DeathCost          float64 `yaml:"death"`
}

// NumIllnesses returns the number of configured illness types.
func (t *Tables) NumIllnesses() int {
	return len(t.Illnesses)
}

// IllnessByName resolves an illness name.
func (t *Tables) IllnessByName(name string) (Illness, bool) {
	i, ok := t.illnessIndex[name]
	return i, ok
}

// IllnessName returns the configured name of illness i.
func (t *Tables) IllnessName(i Illness) string {
	if i < 0 || int(i) >= len(t.Illnesses) {
		return ""
	}
	return t.Illnesses[i].Name
}

// ProphFor returns the preventive schedule targeting illness i, or nil.
func (t *Tables) ProphFor(i Illness) *ProphSchedule {
	if int(i) >= len(t.prophIndex) || t.prophIndex[i] < 0 {
		return nil
	}
	return &t.Proph[t.prophIndex[i]]
}

// rateMultiplierFor returns the full-effect multiplier of a regimen line on illness i.
func (r *RegimenLine) rateMultiplierFor(i Illness) float64 {
	if int(i) >= len(r.rateMultiplier) {
		return 1
	}
	return r.rateMultiplier[i]
}

// efficacyAgainst returns the course's base efficacy against illness i.
func (l *ProphLine) efficacyAgainst(i Illness) float64 {
	if int(i) >= len(l.efficacy) {
		return 0
	}
	return l.efficacy[i]
}
