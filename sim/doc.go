// Package sim provides the monthly microsimulation engine for patient-sim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - patient.go: PatientState, the clinical state owned by one simulated patient
//   - mutator.go: Mutator, the only write port over that state
//   - scheduler.go: MonthScheduler, the fixed phase order of one patient-month
//
// # Engine components
//
//   - rng.go: VariateSource and PartitionedRNG (streams keyed by stream id and patient)
//   - illness.go: IllnessSampler, the competing-risk acute illness sampler
//   - criteria.go, regimen_policy.go, proph_policy.go, expr.go: start/fail/stop
//     evaluators for regimen lines and preventive courses
//   - care.go, testing.go: CareTracker (detection, linkage, retention, visits, tests)
//   - mortality.go: MortalityRisks and MortalityModel
//   - provider.go: PolicyProvider selected once per patient by age category
//   - run.go: Run, the explicit run context (seed, run id, patient numbering)
//
// # Ordering
//
// Within a month the phases run in this order and the order is load-bearing:
// biomarker update and adverse events, illness sampling, mortality, then (if
// alive) care, testing and the clinic visit that evaluates policies, then
// finalization.
// See MonthScheduler.Step.
//
// Policy tables (Tables) are immutable after Validate and shared read-only by all
// patients of a run. Observers (sim/trace, sim/stats, sim/store) only ever see
// PatientState copies.
package sim
