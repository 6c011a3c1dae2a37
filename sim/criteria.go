package sim

// Verdict is the tri-state result of one policy criterion. A criterion that is
// not configured yields NotApplicable and is skipped by Combine; it counts
// neither as pass nor as fail.
type Verdict int8

const (
	NotApplicable Verdict = iota
	Pass
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "n/a"
	}
}

// Passed reports whether the verdict is Pass.
func (v Verdict) Passed() bool {
	return v == Pass
}

func verdictOf(ok bool) Verdict {
	if ok {
		return Pass
	}
	return Fail
}

// Combine folds verdicts with OR (any configured criterion passes) or AND
// (every configured criterion passes) semantics. NotApplicable verdicts are
// skipped. If nothing is configured the result is NotApplicable, which callers
// treat as "rule not satisfied".
func Combine(useOr bool, verdicts ...Verdict) Verdict {
	configured := false
	for _, v := range verdicts {
		switch v {
		case NotApplicable:
			continue
		case Pass:
			if useOr {
				return Pass
			}
		case Fail:
			if !useOr {
				return Fail
			}
		}
		configured = true
	}
	if !configured {
		return NotApplicable
	}
	if useOr {
		return Fail
	}
	return Pass
}

// Bound is an inclusive [Lower, Upper] range on a measured value.
// A nil *Bound is an unconfigured criterion.
type Bound struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Check evaluates v against the bound. An unknown value (for example a test
// that has never been run) fails a configured bound.
func (b *Bound) Check(v float64, known bool) Verdict {
	if b == nil {
		return NotApplicable
	}
	if !known {
		return Fail
	}
	return verdictOf(v >= b.Lower && v <= b.Upper)
}

// IllnessCount is an event-history criterion: the summed episode count of the
// listed illnesses must reach MinCount. A nil *IllnessCount is unconfigured.
type IllnessCount struct {
	Illnesses []string `yaml:"illnesses"`
	MinCount  int      `yaml:"min_count"`

	set IllnessSet
}

// Check sums counts over the configured illnesses.
func (c *IllnessCount) Check(counts []int) Verdict {
	if c == nil {
		return NotApplicable
	}
	total := 0
	for i, n := range counts {
		if c.set.Has(Illness(i)) {
			total += n
		}
	}
	return verdictOf(total >= c.MinCount)
}

// NewIllnessCount builds a criterion over already-resolved illness indices.
func NewIllnessCount(minCount int, illnesses ...Illness) *IllnessCount {
	c := &IllnessCount{MinCount: minCount}
	for _, i := range illnesses {
		c.set = c.set.With(i)
	}
	return c
}

// Axis names the biomarker axis used to confirm a failure.
type Axis string

const (
	AxisNone Axis = ""
	AxisCD4  Axis = "cd4"
	AxisHVL  Axis = "hvl"
)

// confirmedOn reports whether the most recent test on the given axis met its
// failure threshold.
func confirmedOn(s *PatientState, axis Axis) bool {
	switch axis {
	case AxisCD4:
		return s.Regimen.ImmunologicFailTests >= 1
	case AxisHVL:
		return s.Regimen.VirologicFailTests >= 1
	default:
		return true
	}
}
