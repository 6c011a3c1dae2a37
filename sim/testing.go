package sim

import "math"

// Monitor runs scheduled laboratory tests. Tests reveal the true biomarkers
// to the policies: CD4 with Gaussian measurement error, HVL exactly.
type Monitor struct {
	tables *Tables
	rng    VariateSource
}

// NewMonitor creates a Monitor.
func NewMonitor(tables *Tables, rng VariateSource) *Monitor {
	return &Monitor{tables: tables, rng: rng}
}

// RunDueTests performs every test scheduled for this month or earlier.
func (mo *Monitor) RunDueTests(m Mutator) {
	s := m.state()
	if !s.Care.Engaged() {
		return
	}
	if due(s.NextCD4TestMonth, s.Month) {
		mo.testCD4(m)
	}
	if due(s.NextHVLTestMonth, s.Month) {
		mo.testHVL(m)
	}
}

func (mo *Monitor) testCD4(m Mutator) {
	s := m.state()
	observed := s.CD4
	if sd := mo.tables.Care.CD4TestStdDev; sd > 0 {
		observed = math.Max(0, mo.rng.Gaussian(s.CD4, sd, StreamTestError, s.ID))
	}
	failing := false
	if s.Regimen.Active {
		failing = immunologicTestFails(&s.Regimen, mo.tables.Regimens[s.Regimen.Line].Fail.Immunologic, observed)
	}
	m.RecordCD4Test(observed, failing)
	m.AddCost(mo.tables.Costs.CD4TestCost)
	m.ScheduleCD4Test(nextMonth(s.Month, mo.tables.Care.CD4TestInterval))
}

func (mo *Monitor) testHVL(m Mutator) {
	s := m.state()
	failing := false
	if s.Regimen.Active {
		failing = virologicTestFails(mo.tables.Regimens[s.Regimen.Line].Fail.Virologic, s.HVL)
	}
	m.RecordHVLTest(s.HVL, failing)
	m.AddCost(mo.tables.Costs.HVLTestCost)
	m.ScheduleHVLTest(nextMonth(s.Month, mo.tables.Care.HVLTestInterval))
}
