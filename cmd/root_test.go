package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patient-sim/patient-sim/sim"
	"github.com/patient-sim/patient-sim/sim/trace"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

// resetRunFlags restores the package-level flag values after a test.
func resetRunFlags(t *testing.T) {
	t.Helper()
	saved := [...]any{seed, patients, months, workers}
	t.Cleanup(func() {
		seed = saved[0].(int64)
		patients = saved[1].(int)
		months = saved[2].(int)
		workers = saved[3].(int)
	})
}

func TestApplyRunConfig_BundleFillsUnsetFlags(t *testing.T) {
	resetRunFlags(t)
	// GIVEN default flag values and a bundle setting every run field
	seed, patients, months, workers = 42, 1000, 240, 1
	cfg := sim.RunConfig{Seed: int64Ptr(7), Patients: intPtr(50), Months: intPtr(60), Workers: intPtr(4)}

	// WHEN no flag was set on the command line
	applyRunConfig(cfg, func(string) bool { return false })

	// THEN the bundle values apply
	assert.Equal(t, int64(7), seed)
	assert.Equal(t, 50, patients)
	assert.Equal(t, 60, months)
	assert.Equal(t, 4, workers)
}

func TestApplyRunConfig_ExplicitFlagsWin(t *testing.T) {
	resetRunFlags(t)
	// GIVEN --seed 99 and --workers 2 passed explicitly
	seed, patients, months, workers = 99, 1000, 240, 2
	explicit := map[string]bool{"seed": true, "workers": true}
	cfg := sim.RunConfig{Seed: int64Ptr(7), Patients: intPtr(50), Workers: intPtr(4)}

	// WHEN the bundle is applied
	applyRunConfig(cfg, func(name string) bool { return explicit[name] })

	// THEN explicit flags keep their values and unset bundle fields change nothing
	assert.Equal(t, int64(99), seed)
	assert.Equal(t, 2, workers)
	assert.Equal(t, 50, patients)
	assert.Equal(t, 240, months)
}

func TestPrintTraceSummary(t *testing.T) {
	// GIVEN a trace with events for two patients
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelEvents})
	st.RecordEvent(trace.Event{Patient: 0, Kind: trace.KindIllness})
	st.RecordEvent(trace.Event{Patient: 1, Kind: trace.KindDeath})
	st.RecordEvent(trace.Event{Patient: 1, Kind: trace.KindIllness})

	// Capture stdout
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	printTraceSummary(trace.Summarize(st))

	require.NoError(t, w.Close())
	os.Stdout = old
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	out := buf.String()

	// THEN totals and the sorted kind distribution are printed
	assert.Contains(t, out, "=== Event Summary ===")
	assert.Contains(t, out, "Total events         : 3")
	assert.Contains(t, out, "Patients with events : 2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("death")), bytes.Index(buf.Bytes(), []byte("illness")))
}

func TestRunCmd_FlagDefaults(t *testing.T) {
	flags := runCmd.Flags()
	for name, want := range map[string]string{
		"config":      "defaults.yaml",
		"seed":        "42",
		"patients":    "1000",
		"months":      "240",
		"workers":     "1",
		"log":         "error",
		"trace":       "none",
		"db":          "",
		"metrics-out": "",
	} {
		f := flags.Lookup(name)
		require.NotNil(t, f, "flag --%s", name)
		assert.Equal(t, want, f.DefValue, "flag --%s", name)
	}
}
