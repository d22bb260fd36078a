package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"districtvotes/internal"
)

func race(district, office string, votesPct ...float64) []internal.DistrictRecord {
	var out []internal.DistrictRecord
	for i := 0; i+1 < len(votesPct); i += 2 {
		out = append(out, internal.DistrictRecord{
			District:   district,
			Office:     office,
			Candidate:  string(rune('A' + i/2)),
			Votes:      int64(votesPct[i]),
			Percentage: pct(votesPct[i+1]),
		})
	}
	return out
}

func TestCrossCheckAcceptsConsistentRace(t *testing.T) {
	scope := testScope(t, 2018, internal.LevelHouse)
	records := race("1", "Governor", 700, 70.0, 300, 30.0)
	kept, warnings := CrossCheck{Tolerance: 1}.Check(scope, 1, records)
	assert.Empty(t, warnings)
	assert.Equal(t, records, kept)
}

func TestCrossCheckFlagsShiftedColumns(t *testing.T) {
	scope := testScope(t, 2018, internal.LevelHouse)
	// Votes and percentages belong to different candidates.
	shifted := race("1", "Governor", 700, 30.0, 300, 70.0)
	good := race("2", "Governor", 600, 60.0, 400, 40.0)
	records := append(shifted, good...)

	kept, warnings := CrossCheck{Tolerance: 1}.Check(scope, 3, records)
	require.Len(t, warnings, 1)
	w := warnings[0]
	assert.Equal(t, 3, w.Page)
	assert.Equal(t, "1", w.District)
	assert.Equal(t, "Governor", w.Office)
	assert.InDelta(t, 100, w.PercentSum, 1e-9)
	assert.InDelta(t, 40, w.MaxDeviation, 1e-9)
	assert.Len(t, kept, 4, "warn mode keeps records")

	kept, warnings = CrossCheck{Tolerance: 1, Reject: true}.Check(scope, 3, records)
	require.Len(t, warnings, 1)
	assert.Equal(t, good, kept)
}

func TestCrossCheckFlagsPartialSum(t *testing.T) {
	scope := testScope(t, 2018, internal.LevelHouse)
	records := race("STATE", "U.S. Senate", 500, 50.0, 300, 30.0)
	records[1].Votes = 500
	records[1].Percentage = pct(50.0)
	records = append(records, internal.DistrictRecord{District: "STATE", Office: "U.S. Senate", Candidate: "C", Votes: 0, Percentage: pct(20.0)})

	_, warnings := CrossCheck{Tolerance: 1}.Check(scope, 1, records)
	require.Len(t, warnings, 1)
	assert.InDelta(t, 120, warnings[0].PercentSum, 1e-9)
}

func TestCrossCheckSkipsRacesWithoutPercentages(t *testing.T) {
	scope := testScope(t, 2018, internal.LevelHouse)
	records := []internal.DistrictRecord{
		{District: "1", Office: "Governor", Candidate: "A", Votes: 10},
		{District: "2", Office: "Governor", Candidate: "A", Votes: 0, Percentage: pct(0)},
	}
	kept, warnings := CrossCheck{Tolerance: 1, Reject: true}.Check(scope, 1, records)
	assert.Empty(t, warnings)
	assert.Equal(t, records, kept)

	_, warnings = CrossCheck{}.Check(scope, 1, race("1", "Governor", 1, 90, 1, 90))
	assert.Empty(t, warnings, "zero tolerance disables the check")
}

func TestCrossCheckSumToleranceScalesWithCandidates(t *testing.T) {
	scope := testScope(t, 2018, internal.LevelHouse)

	// Each share is off by exactly the tolerance; the sum is 102.
	edge := race("1", "Governor", 1000, 51.0, 1000, 51.0)
	kept, warnings := CrossCheck{Tolerance: 1, Reject: true}.Check(scope, 1, edge)
	assert.Empty(t, warnings)
	assert.Equal(t, edge, kept)

	over := race("1", "Governor", 1000, 51.1, 1000, 51.1)
	kept, warnings = CrossCheck{Tolerance: 1, Reject: true}.Check(scope, 1, over)
	require.Len(t, warnings, 1)
	assert.InDelta(t, 102.2, warnings[0].PercentSum, 1e-9)
	assert.Empty(t, kept)

	// A missing percentage cell leaves the sum short even when the reported
	// share matches its votes.
	short := race("2", "Governor", 500, 50.0, 500, 50.0)
	short[1].Percentage = nil
	_, warnings = CrossCheck{Tolerance: 1}.Check(scope, 1, short)
	require.Len(t, warnings, 1)
	assert.InDelta(t, 50, warnings[0].PercentSum, 1e-9)
}
