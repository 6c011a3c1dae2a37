package sim

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patient-sim/patient-sim/sim/trace"
)

func TestNewRun_AssignsTimeOrderedID(t *testing.T) {
	tables := loadTestTables(t)
	run := NewRun(NewSimulationKey(1), tables, 12, 1)

	id, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, run.ID, NewRun(NewSimulationKey(1), tables, 12, 1).ID)
}

func TestRun_NextPatientNumber(t *testing.T) {
	run := NewRun(NewSimulationKey(1), loadTestTables(t), 12, 1)
	assert.Equal(t, 0, run.NextPatientNumber())
	assert.Equal(t, 1, run.NextPatientNumber())
	assert.Equal(t, 2, run.Enroll(newScriptedSource(), nil).ID())
}

func TestRun_Enroll(t *testing.T) {
	tables := loadTestTables(t)

	t.Run("uninfected at enrollment", func(t *testing.T) {
		run := NewRun(NewSimulationKey(1), tables, 12, 1)
		p := run.Enroll(newScriptedSource(), nil)

		assert.Equal(t, 360, p.state.AgeMonths)
		assert.InDelta(t, 0.8, p.state.ResponseFactor, 1e-12)
		assert.False(t, p.state.ProphNonCompliant)
		assert.False(t, p.state.Infected())
		assert.Equal(t, run.ID, p.summary.RunID)
	})

	t.Run("prevalent infection", func(t *testing.T) {
		run := NewRun(NewSimulationKey(1), tables, 12, 1)
		log := &eventLog{}
		p := run.Enroll(newScriptedSource().queue(StreamInfection, 0), log)

		assert.True(t, p.state.Infected())
		assert.InDelta(t, 300, p.state.CD4, 1e-12)
		assert.Equal(t, HVLAbove100k, p.state.SetpointHVL)
		require.Len(t, log.events, 1)
		assert.Equal(t, trace.KindInfection, log.events[0].Kind)
		assert.Equal(t, "prevalent", log.events[0].Detail)
	})
}

func runCohort(t *testing.T, workers int) ([]PatientSummary, *eventLog) {
	t.Helper()
	tables := loadTestTables(t)
	run := NewRun(NewSimulationKey(7), tables, 60, workers)
	run.ID = "fixed"
	log := &eventLog{}
	summaries, err := run.RunCohort(context.Background(), 40, log)
	require.NoError(t, err)
	return summaries, log
}

func TestRunCohort_SameSeedSameResult(t *testing.T) {
	// GIVEN two runs with the same seed and tables
	first, firstLog := runCohort(t, 1)
	second, secondLog := runCohort(t, 1)

	// THEN summaries and event streams are identical
	assert.Equal(t, first, second)
	assert.Equal(t, firstLog.events, secondLog.events)
}

func TestRunCohort_WorkerCountDoesNotChangeOutput(t *testing.T) {
	// GIVEN the same cohort run sequentially and on four workers
	sequential, seqLog := runCohort(t, 1)
	parallel, parLog := runCohort(t, 4)

	// THEN the summaries and the observer stream match exactly
	require.Len(t, parallel, 40)
	assert.Equal(t, sequential, parallel)
	assert.Equal(t, seqLog.events, parLog.events)
	assert.Equal(t, seqLog.months, parLog.months)
	assert.Equal(t, seqLog.ends, parLog.ends)
}

func TestRunCohort_SummariesInPatientOrder(t *testing.T) {
	summaries, log := runCohort(t, 3)
	for i, sum := range summaries {
		assert.Equal(t, i, sum.Patient)
		assert.Equal(t, "fixed", sum.RunID)
		assert.LessOrEqual(t, sum.Months, 60)
		assert.Equal(t, sum.Died, sum.Months < 60 || sum.CauseOfDeath != "")
	}
	require.Len(t, log.ends, 40)
	for i, sum := range log.ends {
		assert.Equal(t, i, sum.Patient)
	}
}

// panicObserver fails on the first event it sees.
type panicObserver struct{ NopObserver }

func (panicObserver) OnEvent(trace.Event) { panic("sink broken") }

func TestRunCohort_PanicBecomesError(t *testing.T) {
	// GIVEN a sequential run whose observer panics
	tables := loadTestTables(t)
	run := NewRun(NewSimulationKey(7), tables, 60, 1)

	// WHEN the cohort is simulated
	summaries, err := run.RunCohort(context.Background(), 40, panicObserver{})

	// THEN the panic is returned as an error naming the run
	require.Error(t, err)
	assert.Contains(t, err.Error(), run.ID)
	assert.Contains(t, err.Error(), "sink broken")
	assert.Nil(t, summaries)
}

func TestRunCohort_WorkerPanicBecomesError(t *testing.T) {
	// GIVEN tables every infected patient will index past
	tables := *loadTestTables(t)
	tables.Natural.Prevalence = 1
	tables.Natural.CD4MortalityRate = nil
	run := NewRun(NewSimulationKey(7), &tables, 12, 4)
	log := &eventLog{}

	// WHEN the cohort is simulated on four workers
	summaries, err := run.RunCohort(context.Background(), 20, log)

	// THEN the first failure is returned and nothing is replayed
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patient")
	assert.Nil(t, summaries)
	assert.Empty(t, log.ends)
}

func TestRunCohort_CancelledContext(t *testing.T) {
	tables := loadTestTables(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		run := NewRun(NewSimulationKey(7), tables, 12, workers)
		_, err := run.RunCohort(ctx, 10, nil)
		assert.ErrorIs(t, err, context.Canceled)
	}
}
