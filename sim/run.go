package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run is the context of one simulation run: the seed, the shared tables, the
// run id tagging every emitted row and the patient-number allocator.
type Run struct {
	ID      string
	Key     SimulationKey
	Tables  *Tables
	Horizon int // months
	Workers int

	nextPatient int
}

// NewRun creates a Run with a fresh time-ordered id. tables must be validated.
func NewRun(key SimulationKey, tables *Tables, horizon, workers int) *Run {
	return &Run{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Key:     key,
		Tables:  tables,
		Horizon: horizon,
		Workers: workers,
	}
}

// NextPatientNumber allocates the next patient number. Not safe for
// concurrent use; RunCohort allocates every number before fanning out.
func (r *Run) NextPatientNumber() int {
	n := r.nextPatient
	r.nextPatient++
	return n
}

// Enroll creates the next patient with its initial draws.
func (r *Run) Enroll(rng VariateSource, obs Observer) *Patient {
	return r.enroll(r.NextPatientNumber(), rng, obs)
}

func (r *Run) enroll(id int, rng VariateSource, obs Observer) *Patient {
	t := r.Tables
	nh := &t.Natural
	p := &Patient{
		state:   newPatientState(id, t.NumIllnesses()),
		summary: PatientSummary{RunID: r.ID, Patient: id},
	}
	s := &p.state
	age := rng.Gaussian(nh.InitialAgeMean, nh.InitialAgeStdDev, StreamEnrollment, id)
	s.AgeMonths = max(0, int(math.Round(age)))
	rf := rng.Gaussian(nh.ResponseFactorMean, nh.ResponseFactorStdDev, StreamEnrollment, id)
	s.ResponseFactor = math.Min(1, math.Max(0, rf))
	s.ProphNonCompliant = Bernoulli(rng, StreamEnrollment, id, t.Care.ProphNonComplianceProb)

	if Bernoulli(rng, StreamInfection, id, nh.Prevalence) {
		cd4, setpoint := drawInfection(t, rng, id)
		newMutator(p, t, obs).Infect(cd4, setpoint, "prevalent")
	}
	return p
}

// drawInfection draws the CD4 count and HVL setpoint of a new infection.
func drawInfection(t *Tables, rng VariateSource, id int) (float64, HVLStratum) {
	nh := &t.Natural
	cd4 := math.Max(0, rng.Gaussian(nh.InitialCD4Mean, nh.InitialCD4StdDev, StreamInfection, id))
	u := rng.Uniform(StreamInfection, id)
	setpoint := HVLAbove100k
	for k, w := range nh.InitialHVL {
		u -= w
		if u < 0 {
			setpoint = HVLStratum(k)
			break
		}
	}
	return cd4, setpoint
}

// RunCohort simulates n newly enrolled patients and returns their summaries in
// patient order. With more than one worker each worker owns its own RNG and
// buffers observer calls, which are replayed in patient order, so the output
// does not depend on the worker count. A panic while simulating a patient, or
// a cancelled ctx, stops the run and is returned as an error.
func (r *Run) RunCohort(ctx context.Context, n int, obs Observer) ([]PatientSummary, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = r.NextPatientNumber()
	}
	workers := max(1, min(r.Workers, n))
	logrus.Infof("run %s: %d patients, %d months, %d workers, seed %d", r.ID, n, r.Horizon, workers, int64(r.Key))

	summaries := make([]PatientSummary, n)
	if workers == 1 {
		rng := NewPartitionedRNG(r.Key)
		ms := NewMonthScheduler(r.Tables, rng, obs)
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := r.simulate(ms, id, rng, obs, &summaries[i]); err != nil {
				return nil, err
			}
		}
		return summaries, nil
	}

	recordings := make([]*recording, n)
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			rng := NewPartitionedRNG(r.Key)
			for i := range jobs {
				rec := &recording{}
				ms := NewMonthScheduler(r.Tables, rng, rec)
				if err := r.simulate(ms, ids[i], rng, rec, &summaries[i]); err != nil {
					return err
				}
				recordings[i] = rec
			}
			return nil
		})
	}
feed:
	for i := range ids {
		select {
		case jobs <- i:
		case <-gctx.Done():
			break feed
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, rec := range recordings {
		rec.replay(obs)
	}
	return summaries, nil
}

// simulate enrolls and runs one patient, converting a panic into an error
// naming the patient.
func (r *Run) simulate(ms *MonthScheduler, id int, rng *PartitionedRNG, obs Observer, out *PatientSummary) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("run %s: patient %d: %v", r.ID, id, rec)
		}
	}()
	*out = ms.Simulate(r.enroll(id, rng, obs), r.Horizon)
	rng.Release(id)
	return nil
}
