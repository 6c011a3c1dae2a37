// Package stats aggregates cohort outcomes and exposes them as Prometheus
// counters for text-file export.
package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/patient-sim/patient-sim/sim"
	"github.com/patient-sim/patient-sim/sim/trace"
)

// Totals are the cohort aggregates printed at the end of a run.
type Totals struct {
	Patients             int
	Infected             int
	Detected             int
	Deaths               int
	PatientMonths        int
	LifeMonths           float64
	DiscountedLifeMonths float64
	Cost                 float64
	DiscountedCost       float64
	DeathsByCause        map[string]int
	Events               map[trace.Kind]int
}

// Collector is a sim.Observer feeding both Totals and a private registry.
type Collector struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	deaths        *prometheus.CounterVec
	patients      prometheus.Counter
	patientMonths prometheus.Counter
	lifeMonths    *prometheus.CounterVec
	cost          *prometheus.CounterVec

	Totals Totals
}

// NewCollector creates a Collector whose metrics carry the run id label.
func NewCollector(runID string) *Collector {
	labels := prometheus.Labels{"run_id": runID}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patientsim_events_total", Help: "Clinical events by kind.", ConstLabels: labels,
		}, []string{"kind"}),
		deaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patientsim_deaths_total", Help: "Deaths by cause.", ConstLabels: labels,
		}, []string{"cause"}),
		patients: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientsim_patients_total", Help: "Patients simulated to completion.", ConstLabels: labels,
		}),
		patientMonths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientsim_patient_months_total", Help: "Simulated patient-months.", ConstLabels: labels,
		}),
		lifeMonths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patientsim_life_months_total", Help: "Accrued life-months.", ConstLabels: labels,
		}, []string{"discounted"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patientsim_cost_total", Help: "Accrued cost.", ConstLabels: labels,
		}, []string{"discounted"}),
		Totals: Totals{
			DeathsByCause: make(map[string]int),
			Events:        make(map[trace.Kind]int),
		},
	}
	c.registry.MustRegister(c.events, c.deaths, c.patients, c.patientMonths, c.lifeMonths, c.cost)
	return c
}

// Registry returns the registry holding the run's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OnEvent implements sim.Observer.
func (c *Collector) OnEvent(ev trace.Event) {
	c.events.WithLabelValues(string(ev.Kind)).Inc()
	c.Totals.Events[ev.Kind]++
}

// OnMonthEnd implements sim.Observer.
func (c *Collector) OnMonthEnd(_ sim.PatientState, acc sim.MonthAccrual) {
	c.patientMonths.Inc()
	c.lifeMonths.WithLabelValues("false").Add(acc.LifeMonths)
	c.lifeMonths.WithLabelValues("true").Add(acc.DiscountedLifeMonths)
	c.cost.WithLabelValues("false").Add(acc.Cost)
	c.cost.WithLabelValues("true").Add(acc.DiscountedCost)

	t := &c.Totals
	t.PatientMonths++
	t.LifeMonths += acc.LifeMonths
	t.DiscountedLifeMonths += acc.DiscountedLifeMonths
	t.Cost += acc.Cost
	t.DiscountedCost += acc.DiscountedCost
}

// OnPatientEnd implements sim.Observer.
func (c *Collector) OnPatientEnd(sum sim.PatientSummary) {
	c.patients.Inc()
	t := &c.Totals
	t.Patients++
	if sum.Infected {
		t.Infected++
	}
	if sum.Detected {
		t.Detected++
	}
	if sum.Died {
		t.Deaths++
		t.DeathsByCause[sum.CauseOfDeath]++
		c.deaths.WithLabelValues(sum.CauseOfDeath).Inc()
	}
}

// WriteTextfile writes the registry in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// Print displays the cohort aggregates.
func (c *Collector) Print(w io.Writer) {
	t := &c.Totals
	fmt.Fprintln(w, "=== Cohort Outcomes ===")
	fmt.Fprintf(w, "Patients             : %d\n", t.Patients)
	fmt.Fprintf(w, "Infected             : %d\n", t.Infected)
	fmt.Fprintf(w, "Detected             : %d\n", t.Detected)
	fmt.Fprintf(w, "Deaths               : %d\n", t.Deaths)
	fmt.Fprintf(w, "Patient-months       : %d\n", t.PatientMonths)
	if t.Patients > 0 {
		n := float64(t.Patients)
		fmt.Fprintf(w, "Mean life-months     : %.2f (discounted %.2f)\n", t.LifeMonths/n, t.DiscountedLifeMonths/n)
		fmt.Fprintf(w, "Mean cost            : %.2f (discounted %.2f)\n", t.Cost/n, t.DiscountedCost/n)
	}
	if len(t.DeathsByCause) > 0 {
		fmt.Fprintln(w, "Deaths by cause:")
		for _, cause := range sortedKeys(t.DeathsByCause) {
			fmt.Fprintf(w, "  %-20s: %d\n", cause, t.DeathsByCause[cause])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
