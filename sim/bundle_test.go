package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patient-sim/patient-sim/sim/internal/testutil"
)

func parseFixture(t *testing.T) *Bundle {
	t.Helper()
	bundle, err := ParseBundle(testutil.LoadFixture(t, "bundle.yaml"))
	require.NoError(t, err)
	return bundle
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseBundle_Fixture(t *testing.T) {
	// GIVEN the shared fixture
	bundle := parseFixture(t)

	// THEN run settings are read and unset ones stay nil
	require.NotNil(t, bundle.Run.Seed)
	assert.Equal(t, int64(7), *bundle.Run.Seed)
	assert.Equal(t, 50, *bundle.Run.Patients)
	assert.Nil(t, bundle.Run.Workers)

	// AND the tables validate and resolve names
	tables := &bundle.Tables
	require.NoError(t, tables.Validate())
	i, ok := tables.IllnessByName("candida")
	assert.True(t, ok)
	assert.Equal(t, Illness(2), i)
	assert.Equal(t, "mac", tables.IllnessName(1))
	assert.Equal(t, "", tables.IllnessName(NoIllness))
	assert.NotNil(t, tables.ProphFor(0))
	assert.Nil(t, tables.ProphFor(1))
	assert.Equal(t, 0.5, tables.Regimens[0].rateMultiplierFor(1))
	assert.Equal(t, 1.0, tables.Regimens[1].rateMultiplierFor(0))
	assert.Equal(t, 0.2, tables.Proph[0].Lines[0].efficacyAgainst(2))
	assert.Equal(t, 0.0, tables.Proph[0].Lines[1].efficacyAgainst(2))
	assert.Equal(t, "(A and (B and C))", tables.Proph[0].AgeBanded.stop.String())
}

func TestLoadBundle_DefaultsFileValidates(t *testing.T) {
	bundle, err := LoadBundle(filepath.Join("..", "defaults.yaml"))
	require.NoError(t, err)
	require.NoError(t, bundle.Tables.Validate())
	assert.NotEmpty(t, bundle.Tables.Regimens)
}

func TestLoadBundle_MissingFile(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading policy bundle")
}

func TestParseBundle_UnknownFieldRejected(t *testing.T) {
	// GIVEN a misspelled criterion key
	path := writeTempYAML(t, `
tables:
  regimens:
    - name: first_line
      start:
        cd4_bound: {lower: 0, upper: 350}
`)

	// WHEN loading
	_, err := LoadBundle(path)

	// THEN the typo is an error instead of an unconfigured criterion
	assert.ErrorContains(t, err, "cd4_bound")
}

func TestParseBundle_EmptyRunSection(t *testing.T) {
	bundle, err := ParseBundle([]byte("tables:\n  age_banded_until_months: 12\n"))
	require.NoError(t, err)
	assert.Nil(t, bundle.Run.Seed)
	assert.Equal(t, 12, bundle.Tables.AgeBandedUntil)
}

func TestTables_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *Tables)
		want   string
	}{
		{"no illnesses", func(t *Tables) { t.Illnesses = nil }, "at least one illness"},
		{"duplicate illness", func(t *Tables) { t.Illnesses[1].Name = "pcp" }, `duplicate name "pcp"`},
		{"short probability row", func(t *Tables) { t.Illnesses[0].ProbNoHistory = []float64{0.1} }, "needs 6 values"},
		{"probability above one", func(t *Tables) { t.Illnesses[2].DetectionProb = 1.5 }, "detection_prob"},
		{"initial hvl does not sum to one", func(t *Tables) { t.Natural.InitialHVL[0] = 0.5 }, "must sum to 1"},
		{"age bands out of order", func(t *Tables) { t.AgeBands[1].UpperMonths = 100 }, "upper_months must increase"},
		{"unknown illness in count", func(t *Tables) {
			t.Regimens[0].Start.IllnessesSinceLastRegimen.Illnesses = []string{"tb"}
		}, `unknown illness "tb"`},
		{"inverted bound", func(t *Tables) { t.Regimens[0].Start.CD4 = &Bound{Lower: 500, Upper: 100} }, "exceeds upper"},
		{"virologic stratum zero", func(t *Tables) { t.Regimens[1].Fail.Virologic.MinStratum = HVLSuppressed }, "min_stratum"},
		{"immunologic without tests", func(t *Tables) { t.Regimens[0].Fail.Immunologic.MinTests = 0 }, "min_tests"},
		{"unknown confirm axis", func(t *Tables) { t.Regimens[0].Fail.Virologic.Confirm = "bp" }, "unknown confirm axis"},
		{"unknown proph target", func(t *Tables) { t.Proph[0].Illness = "tb" }, `unknown illness "tb"`},
		{"proph without lines", func(t *Tables) { t.Proph[0].Lines = nil }, "at least one course line"},
		{"unknown operator", func(t *Tables) { t.Proph[0].AgeBanded.Start.Op1 = "xor" }, `unknown op1 "xor"`},
		{"unknown grouping", func(t *Tables) { t.Proph[0].AgeBanded.Stop.Group = "middle" }, `unknown group "middle"`},
		{"care probability", func(t *Tables) { t.Care.LostProb = -0.1 }, "lost_prob"},
		{"interruption months", func(t *Tables) { t.Interruption.AfterSuppressedMonths = 0 }, "after_suppressed_months"},
		{"negative discount", func(t *Tables) { t.Costs.AnnualDiscountRate = -1 }, "annual_discount_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN the fixture with one invalid value
			bundle := parseFixture(t)
			tt.mutate(&bundle.Tables)

			// WHEN validating
			err := bundle.Tables.Validate()

			// THEN the error names the problem
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestAgeBandFor(t *testing.T) {
	tables := loadTestTables(t)
	assert.Equal(t, 0.001, tables.AgeBandFor(0).BackgroundMortality)
	assert.Equal(t, 0.0005, tables.AgeBandFor(156).BackgroundMortality)
	assert.Equal(t, 0.0005, tables.AgeBandFor(5000).BackgroundMortality, "the last band catches older ages")
}

func TestCD4StratumOf(t *testing.T) {
	tests := []struct {
		cd4  float64
		want CD4Stratum
	}{
		{0, CD4Below50},
		{49.9, CD4Below50},
		{50, CD4From50To100},
		{199, CD4From100To200},
		{350, CD4From350To500},
		{2000, CD4Above500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CD4StratumOf(tt.cd4), "cd4=%v", tt.cd4)
	}
}
