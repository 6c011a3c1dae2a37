package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcpSchedule(t *testing.T, tables *Tables) *ProphSchedule {
	t.Helper()
	sched := tables.ProphFor(0)
	require.NotNil(t, sched)
	return sched
}

func TestEvaluateProphStart_PrimaryAndSecondary(t *testing.T) {
	tables := loadTestTables(t)
	sched := pcpSchedule(t, tables)

	tests := []struct {
		name       string
		cd4        float64
		hasHistory bool
		want       ProphDecision
	}{
		{"primary below threshold", 150, false, ProphStartPrimary},
		{"primary above threshold", 250, false, ProphNoChange},
		{"history selects secondary", 450, true, ProphStartSecondary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPatient(tables, 0)
			p.state.ObservedCD4, p.state.HasObservedCD4 = tt.cd4, true
			if tt.hasHistory {
				p.state.History = p.state.History.With(0)
				p.state.Episodes[0] = 1
			}
			assert.Equal(t, tt.want, EvaluateProphStart(&p.state, sched))
		})
	}
}

func TestEvaluateProphStop_UsesCourseVariant(t *testing.T) {
	tables := loadTestTables(t)
	sched := pcpSchedule(t, tables)
	p := newTestPatient(tables, 0)
	s := &p.state
	s.ObservedCD4, s.HasObservedCD4 = 250, true
	s.Month = 10

	// GIVEN no active course THEN nothing stops
	assert.Equal(t, ProphNoChange, EvaluateProphStop(s, sched))

	// GIVEN a primary course running for 10 months at CD4 250
	s.Proph[0] = ProphState{Active: true, StartMonth: 0}
	// THEN cd4 >= 200 and months >= 3 stop it
	assert.Equal(t, ProphStopCriteria, EvaluateProphStop(s, sched))

	// GIVEN a secondary course under the same state
	s.Proph[0].Secondary = true
	// THEN the secondary rule needs cd4 >= 300
	assert.Equal(t, ProphNoChange, EvaluateProphStop(s, sched))
}

func TestEvaluateProphStop_MonthsOnCourseCounted(t *testing.T) {
	tables := loadTestTables(t)
	sched := pcpSchedule(t, tables)
	p := newTestPatient(tables, 0)
	s := &p.state
	s.ObservedCD4, s.HasObservedCD4 = 250, true
	s.Month = 2
	s.Proph[0] = ProphState{Active: true, StartMonth: 0}

	assert.Equal(t, ProphNoChange, EvaluateProphStop(s, sched), "two months is below the three month minimum")
}

func TestAgeCategoryOf(t *testing.T) {
	tables := loadTestTables(t)
	assert.Equal(t, AgeBanded, tables.AgeCategoryOf(0))
	assert.Equal(t, AgeBanded, tables.AgeCategoryOf(155))
	assert.Equal(t, AgeAdult, tables.AgeCategoryOf(156))
}

func TestNewPolicyProvider(t *testing.T) {
	assert.Equal(t, AgeAdult, NewPolicyProvider(AgeAdult).Category())
	assert.Equal(t, AgeBanded, NewPolicyProvider(AgeBanded).Category())
	assert.Equal(t, "age_banded", AgeBanded.String())
	assert.Panics(t, func() { NewPolicyProvider(AgeCategory(9)) })
}

func TestAgeBandedProvider_Start(t *testing.T) {
	tables := loadTestTables(t)
	sched := pcpSchedule(t, tables)
	provider := AgeBandedProvider{}

	tests := []struct {
		name    string
		age     int
		cd4     float64
		history bool
		want    ProphDecision
	}{
		{"infant passes on age alone", 6, 900, false, ProphStartPrimary},
		{"child passes on cd4", 60, 400, false, ProphStartPrimary},
		{"child passes on history as secondary", 60, 900, true, ProphStartSecondary},
		{"child with nothing matching", 60, 900, false, ProphNoChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPatient(tables, 0)
			p.state.AgeMonths = tt.age
			p.state.ObservedCD4, p.state.HasObservedCD4 = tt.cd4, true
			if tt.history {
				p.state.History = p.state.History.With(0)
				p.state.Episodes[0] = 1
			}
			assert.Equal(t, tt.want, provider.ProphStart(&p.state, sched))
		})
	}
}

func TestAgeBandedProvider_Stop(t *testing.T) {
	// GIVEN the stop tree A and (B and C): age 12-156, cd4 >= 500, months >= 6
	tables := loadTestTables(t)
	sched := pcpSchedule(t, tables)
	provider := AgeBandedProvider{}
	p := newTestPatient(tables, 0)
	s := &p.state
	s.AgeMonths = 60
	s.Month = 8
	s.ObservedCD4, s.HasObservedCD4 = 600, true
	s.Proph[0] = ProphState{Active: true, StartMonth: 0}

	// THEN all three hold and the course stops
	assert.Equal(t, ProphStopCriteria, provider.ProphStop(s, sched))

	// WHEN the course is younger than six months THEN it keeps running
	s.Proph[0].StartMonth = 4
	assert.Equal(t, ProphNoChange, provider.ProphStop(s, sched))

	// WHEN no course is active THEN nothing stops
	s.Proph[0].Active = false
	assert.Equal(t, ProphNoChange, provider.ProphStop(s, sched))
}

func TestAgeBandedProvider_FallsBackToFlatRules(t *testing.T) {
	// GIVEN a schedule without an age-banded policy
	tables := loadTestTables(t)
	sched := *pcpSchedule(t, tables)
	sched.AgeBanded = nil
	p := newTestPatient(tables, 0)
	p.state.AgeMonths = 6
	p.state.ObservedCD4, p.state.HasObservedCD4 = 900, true

	// THEN the age-banded provider answers like the adult one
	assert.Equal(t, AdultProvider{}.ProphStart(&p.state, &sched), AgeBandedProvider{}.ProphStart(&p.state, &sched))
	assert.Equal(t, ProphNoChange, AgeBandedProvider{}.ProphStart(&p.state, &sched))
}
