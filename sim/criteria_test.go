package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name     string
		useOr    bool
		verdicts []Verdict
		want     Verdict
	}{
		{"nothing configured, AND", false, []Verdict{NotApplicable, NotApplicable}, NotApplicable},
		{"nothing configured, OR", true, nil, NotApplicable},
		{"AND skips unconfigured", false, []Verdict{NotApplicable, Pass}, Pass},
		{"AND needs every configured", false, []Verdict{Pass, Fail, NotApplicable}, Fail},
		{"AND all pass", false, []Verdict{Pass, Pass}, Pass},
		{"OR any passes", true, []Verdict{Fail, NotApplicable, Pass}, Pass},
		{"OR none pass", true, []Verdict{Fail, Fail}, Fail},
		{"OR skips unconfigured", true, []Verdict{NotApplicable, Fail}, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Combine(tt.useOr, tt.verdicts...))
		})
	}
}

func TestCombine_NotApplicableIsNotSatisfied(t *testing.T) {
	// GIVEN a rule with nothing configured
	// THEN neither mode reports it satisfied
	assert.False(t, Combine(false).Passed())
	assert.False(t, Combine(true).Passed())
}

func TestBound_Check(t *testing.T) {
	b := &Bound{Lower: 100, Upper: 200}
	tests := []struct {
		name  string
		bound *Bound
		v     float64
		known bool
		want  Verdict
	}{
		{"unconfigured", nil, 150, true, NotApplicable},
		{"unknown value fails", b, 150, false, Fail},
		{"lower edge inclusive", b, 100, true, Pass},
		{"upper edge inclusive", b, 200, true, Pass},
		{"below", b, 99.9, true, Fail},
		{"above", b, 200.1, true, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bound.Check(tt.v, tt.known))
		})
	}
}

func TestIllnessCount_SumsListedIllnesses(t *testing.T) {
	// GIVEN a criterion over illnesses 0 and 2 requiring 3 episodes
	c := NewIllnessCount(3, 0, 2)

	// THEN only the listed counters contribute
	assert.Equal(t, Fail, c.Check([]int{1, 5, 1}))
	assert.Equal(t, Pass, c.Check([]int{2, 0, 1}))

	var unconfigured *IllnessCount
	assert.Equal(t, NotApplicable, unconfigured.Check([]int{9, 9, 9}))
}

func TestConfirmedOn(t *testing.T) {
	s := &PatientState{}
	assert.True(t, confirmedOn(s, AxisNone))
	assert.False(t, confirmedOn(s, AxisCD4))
	assert.False(t, confirmedOn(s, AxisHVL))

	s.Regimen.ImmunologicFailTests = 1
	assert.True(t, confirmedOn(s, AxisCD4))
	assert.False(t, confirmedOn(s, AxisHVL))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "pass", Pass.String())
	assert.Equal(t, "fail", Fail.String())
	assert.Equal(t, "n/a", NotApplicable.String())
}
