package sim

import "math"

// CauseBackground and CauseDisease name deaths not attributed to a specific
// severe illness.
const (
	CauseBackground = "background"
	CauseDisease    = "disease"
)

// MortalityRisk is one (cause, rate ratio) pair contributed during a month.
type MortalityRisk struct {
	Cause     string
	RateRatio float64
}

// MortalityRisks accumulates the month's competing mortality risk multipliers.
// It is cleared at the start of every month.
type MortalityRisks []MortalityRisk

// Add records a risk ratio.
func (r *MortalityRisks) Add(cause string, ratio float64) {
	*r = append(*r, MortalityRisk{Cause: cause, RateRatio: ratio})
}

// Reset clears the accumulator, keeping its capacity.
func (r *MortalityRisks) Reset() {
	*r = (*r)[:0]
}

// combined returns the product of ratios and the cause with the largest ratio.
func (r MortalityRisks) combined() (float64, string) {
	product, top, cause := 1.0, 1.0, CauseDisease
	for _, risk := range r {
		product *= risk.RateRatio
		if risk.RateRatio > top {
			top, cause = risk.RateRatio, risk.Cause
		}
	}
	return product, cause
}

// MortalityModel turns the month's risk set into a death draw.
type MortalityModel struct {
	tables *Tables
	rng    VariateSource
}

// NewMortalityModel creates a MortalityModel.
func NewMortalityModel(tables *Tables, rng VariateSource) *MortalityModel {
	return &MortalityModel{tables: tables, rng: rng}
}

// MonthlyRates returns the background and disease death rates for the month.
// The disease rate is the CD4-stratum base rate scaled by every accumulated
// risk ratio; it is zero for uninfected patients.
func (mm *MortalityModel) MonthlyRates(s *PatientState, risks MortalityRisks) (background, disease float64) {
	background = mm.tables.AgeBandFor(s.AgeMonths).BackgroundMortality
	if !s.Infected() {
		return background, 0
	}
	product, _ := risks.combined()
	disease = mm.tables.Natural.CD4MortalityRate[s.CD4Stratum] * product
	return background, disease
}

// Draw decides whether the patient dies this month and of what.
func (mm *MortalityModel) Draw(s *PatientState, risks MortalityRisks) (bool, string) {
	background, disease := mm.MonthlyRates(s, risks)
	total := background + disease
	if total <= 0 {
		return false, ""
	}
	if mm.rng.Uniform(StreamMortality, s.ID) >= 1-math.Exp(-total) {
		return false, ""
	}
	if mm.rng.Uniform(StreamMortality, s.ID)*total < background {
		return true, CauseBackground
	}
	_, cause := risks.combined()
	return true, cause
}

// severeMortalityRatio is the risk ratio added when a severe illness occurs:
// illness ratio for the stratum, times the age-band multiplier, times the
// resistance multiplier while the active regimen has truly failed.
func severeMortalityRatio(t *Tables, s *PatientState, i Illness) float64 {
	ratio := t.Illnesses[i].SevereMortalityRatio[s.CD4Stratum]
	ratio *= t.AgeBandFor(s.AgeMonths).SevereIllnessMultiplier
	if s.Regimen.Active && s.Regimen.TrueFailure && t.Natural.ResistanceMortalityMultiplier > 0 {
		ratio *= t.Natural.ResistanceMortalityMultiplier
	}
	return ratio
}
