// Package testutil provides shared test infrastructure for the patient
// simulator: fixture loading and float assertion helpers used across sim/
// and its subpackages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// LoadFixture reads a file from the repository's testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadFixture(t *testing.T, name string) []byte {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", name, err)
	}
	return data
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertProportion checks that successes out of n trials is within k binomial
// standard deviations of probability p.
func AssertProportion(t *testing.T, name string, p float64, successes, n int, k float64) {
	t.Helper()
	got := float64(successes) / float64(n)
	sd := math.Sqrt(p * (1 - p) / float64(n))
	if math.Abs(got-p) > k*sd {
		t.Errorf("%s: observed proportion %.5f, want %.5f ± %.5f", name, got, p, k*sd)
	}
}
