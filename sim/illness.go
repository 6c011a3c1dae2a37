package sim

import "math"

// ScaleProbability applies a rate multiplier to a monthly probability while
// preserving its meaning as a probability: 1 − (1 − p)^multiplier. Linear
// scaling would leave [0, 1] for multipliers above one.
func ScaleProbability(p, multiplier float64) float64 {
	if p >= 1 {
		return 1
	}
	return 1 - math.Pow(1-p, multiplier)
}

// ApplyEfficacy reduces a probability by a protective efficacy. The
// no-illness complement becomes 1 − (1 − (1 − p))·(1 − efficacy), which is
// p·(1 − efficacy). An efficacy of 1 gives full protection.
func ApplyEfficacy(p, efficacy float64) float64 {
	return p * (1 - efficacy)
}

// ProbNone is the probability that no illness occurs, Π(1 − pᵢ), assuming
// independence.
func ProbNone(probs []float64) float64 {
	none := 1.0
	for _, p := range probs {
		none *= 1 - p
	}
	return none
}

// ChooseIllness samples exactly one outcome from independent monthly
// probabilities. uniform is called once to decide whether anything occurs and
// a second time to pick which illness, so stream positions only advance when
// needed.
//
// An illness at probability 1 is returned without drawing. Illnesses at
// probability 0 contribute a factor of 1 to ProbNone and are skipped in the walk.
func ChooseIllness(probs []float64, uniform func() float64) Illness {
	for i, p := range probs {
		if p >= 1 {
			return Illness(i)
		}
	}
	none := ProbNone(probs)
	if uniform() < none {
		return NoIllness
	}

	// Condition on at least one occurring: pᵢ' = pᵢ·none/(1 − pᵢ), normalized.
	conditional := make([]float64, len(probs))
	total := 0.0
	for i, p := range probs {
		if p == 0 {
			continue
		}
		conditional[i] = p * none / (1 - p)
		total += conditional[i]
	}
	if total == 0 {
		return NoIllness
	}

	draw := uniform()
	chosen := NoIllness
	for i, c := range conditional {
		if probs[i] == 0 {
			continue
		}
		chosen = Illness(i)
		draw -= c / total
		if draw < 0 {
			return chosen
		}
	}
	// Rounding left a sliver past the last slice.
	return chosen
}

// IllnessSampler is the competing-risk sampler deciding whether an acute
// illness occurs this month, and which.
type IllnessSampler struct {
	tables *Tables
	rng    VariateSource
	care   *CareTracker
}

// NewIllnessSampler creates an IllnessSampler. Selected illnesses are pushed
// into care so detection-by-illness is handled there.
func NewIllnessSampler(tables *Tables, rng VariateSource, care *CareTracker) *IllnessSampler {
	return &IllnessSampler{tables: tables, rng: rng, care: care}
}

// Probabilities returns this month's probability of each illness in
// enumeration order.
func (is *IllnessSampler) Probabilities(s *PatientState) []float64 {
	probs := make([]float64, is.tables.NumIllnesses())
	for i := range probs {
		probs[i] = is.probability(s, Illness(i))
	}
	return probs
}

func (is *IllnessSampler) probability(s *PatientState, i Illness) float64 {
	spec := &is.tables.Illnesses[i]
	history := s.History.Has(i)
	p := spec.baseProb(s.CD4Stratum, history)

	r := &s.Regimen
	if r.Active {
		// Benefit lags the CD4 recovery: blend with the nadir stratum.
		if fb := is.tables.Natural.FractionOfBenefit; fb != nil && s.NadirCD4Stratum < s.CD4Stratum {
			p = *fb*p + (1-*fb)*spec.baseProb(s.NadirCD4Stratum, history)
		}
		if !r.TrueFailure {
			full := is.tables.Regimens[r.Line].rateMultiplierFor(i)
			multiplier := 1 + (full-1)*s.ResponseFactor
			p = ScaleProbability(p, multiplier)
		}
	}

	if efficacy, ok := is.prophEfficacy(s, i); ok {
		p = ApplyEfficacy(p, efficacy)
	}
	return p
}

// prophEfficacy returns the best efficacy against illness i across every
// active course, degraded for non-compliance and for resistance of that course.
func (is *IllnessSampler) prophEfficacy(s *PatientState, i Illness) (float64, bool) {
	best, found := 0.0, false
	var bestLine *ProphLine
	bestResistant := false
	for target := range s.Proph {
		ps := &s.Proph[target]
		if !ps.Active {
			continue
		}
		sched := is.tables.ProphFor(Illness(target))
		if sched == nil || ps.Line >= len(sched.Lines) {
			continue
		}
		line := &sched.Lines[ps.Line]
		if eff := line.efficacyAgainst(i); eff > 0 && (!found || eff > best) {
			best, found = eff, true
			bestLine, bestResistant = line, ps.Resistant
		}
	}
	if !found {
		return 0, false
	}
	if s.ProphNonCompliant {
		best *= 1 - is.tables.Care.ProphNonCompliancePenalty
	}
	if bestResistant {
		best *= 1 - bestLine.ResistancePenalty
	}
	return best, true
}

// Sample draws this month's outcome and applies its side effects: the illness
// is recorded through the care tracker and a severe illness adds a mortality
// risk ratio when that ratio exceeds 1.
func (is *IllnessSampler) Sample(m Mutator) Illness {
	s := m.state()
	probs := is.Probabilities(s)
	stream := StreamIllnessOccurs
	outcome := ChooseIllness(probs, func() float64 {
		u := is.rng.Uniform(stream, s.ID)
		stream = StreamIllnessType
		return u
	})
	if outcome == NoIllness {
		return NoIllness
	}

	is.care.RecordIllness(m, outcome)
	if is.tables.Illnesses[outcome].Severe {
		if ratio := severeMortalityRatio(is.tables, s, outcome); ratio > 1 {
			m.AddMortalityRisk(is.tables.Illnesses[outcome].Name, ratio)
		}
	}
	return outcome
}
