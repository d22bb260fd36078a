package pipeline

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"districtvotes/internal"
	"districtvotes/internal/plans"
)

func fullLevel(year int, level internal.Level, office string, skip ...string) []internal.DistrictRecord {
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}
	var out []internal.DistrictRecord
	for _, d := range ExpectedDistricts(level) {
		if skipped[d] {
			continue
		}
		out = append(out, internal.DistrictRecord{Year: year, Level: level, District: d, Office: office, Candidate: "A", Votes: 1})
	}
	return out
}

func TestExpectedDistricts(t *testing.T) {
	senate := ExpectedDistricts(internal.LevelSenate)
	require.Len(t, senate, 32)
	assert.Equal(t, "STATE", senate[0])
	assert.Equal(t, "1", senate[1])
	assert.Equal(t, "31", senate[31])
	assert.Len(t, ExpectedDistricts(internal.LevelHouse), 151)
	assert.Len(t, ExpectedDistricts(internal.LevelCongressional), 39)
}

func TestValidateCoverageReportsMissingDistrict(t *testing.T) {
	records := fullLevel(2022, internal.LevelHouse, "Governor", "77")
	report := ValidateCoverage(2022, internal.LevelHouse, records, nil)
	assert.Equal(t, 151, report.Expected)
	assert.Equal(t, []string{"77"}, report.Missing)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, internal.CoverageGap{Office: "Governor", Missing: []string{"77"}}, report.Gaps[0])
	assert.False(t, report.Complete())
}

func TestValidateCoverageComplete(t *testing.T) {
	records := fullLevel(2020, internal.LevelSenate, "President")
	report := ValidateCoverage(2020, internal.LevelSenate, records, []string{"President"})
	assert.True(t, report.Complete())
	assert.Equal(t, 32, report.Expected)
}

func TestValidateCoverageDistrictOfficeHasNoStatewideRow(t *testing.T) {
	var records []internal.DistrictRecord
	for i := 1; i <= 31; i++ {
		records = append(records, internal.DistrictRecord{Year: 2022, Level: internal.LevelSenate, District: strconv.Itoa(i), Office: "State Senator", Candidate: "A", Votes: 1})
	}
	report := ValidateCoverage(2022, internal.LevelSenate, records, nil)
	assert.True(t, report.Complete())
	assert.Equal(t, 31, report.Expected)
}

func TestValidateCoverageIgnoresOtherLevels(t *testing.T) {
	records := fullLevel(2022, internal.LevelSenate, "Governor")
	records = append(records, internal.DistrictRecord{Year: 2020, Level: internal.LevelSenate, District: "5", Office: "Stray"})
	report := ValidateCoverage(2022, internal.LevelSenate, records, nil)
	assert.True(t, report.Complete())
}

func TestValidateCoverageExpectedOfficeWithoutRecords(t *testing.T) {
	records := fullLevel(2022, internal.LevelCongressional, "Governor")
	report := ValidateCoverage(2022, internal.LevelCongressional, records, []string{"Governor", "U.S. Representative"})
	assert.Empty(t, report.Missing)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, "U.S. Representative", report.Gaps[0].Office)
	assert.Len(t, report.Gaps[0].Missing, 38)
}

func TestValidateSelection(t *testing.T) {
	sel := Selection{
		Year:     2022,
		Level:    internal.LevelSenate,
		Expected: []string{"Governor", "Lt. Governor"},
		Records:  fullLevel(2022, internal.LevelSenate, "Governor", "9"),
	}
	report := ValidateSelection(sel)
	assert.Equal(t, []string{"9"}, report.Missing)
	require.Len(t, report.Gaps, 2)
	assert.Equal(t, "Governor", report.Gaps[0].Office)
	assert.Equal(t, "Lt. Governor", report.Gaps[1].Office)
	assert.Len(t, report.Gaps[1].Missing, 32)
}

func TestVerifyBenchmarks(t *testing.T) {
	records := []internal.DistrictRecord{
		{District: "9", Office: "President", Candidate: "Biden", Percentage: pct(75.7)},
		{District: "9", Office: "President", Candidate: "Trump", Percentage: pct(23.2)},
	}
	benchmarks := []plans.Benchmark{
		{District: "9", Office: "President", Candidate: "BIDEN", Percentage: 76.5, Tolerance: 1},
		{District: "2", Office: "President", Candidate: "Biden", Percentage: 50, Tolerance: 1},
	}
	results, failed := Verify(records, benchmarks)
	assert.False(t, failed)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.InDelta(t, 0.8, results[0].Deviation, 1e-9)
	assert.False(t, results[1].Found)
	assert.Contains(t, results[1].String(), "not found")

	benchmarks[0].Percentage = 40
	results, failed = Verify(records, benchmarks)
	assert.True(t, failed)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "9 President BIDEN: got 75.7 want 40.0 (±1.0)", results[0].String())
}
