package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"districtvotes/internal"
)

func TestParseDistrictRace(t *testing.T) {
	scope, err := NewScope(2024, internal.LevelHouse, "PLANH2316", nil)
	require.NoError(t, err)

	lines := []string{
		"2024 General Election HOUSE DISTRICT 12",
		"President",
		"Trump - R 40,000 60.0% 40,000 60.0%",
		"State Rep 120",
		"Other - D 1 100.0%",
		"State Rep 12",
		"Lambert - R 58,413 81.0% 58,413 81.0%",
		"Van Deaver - D 13,700 19.0% 13,700 19.0%",
		"SBOE 3",
		"Someone - R 5 100.0%",
	}
	records, ok := ParseDistrictRace(scope, lines)
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, internal.DistrictRecord{
		Year: 2024, Level: internal.LevelHouse, Plan: "PLANH2316",
		District: "12", Office: "State Representative",
		Candidate: "Lambert", Party: "R", Votes: 58413, Percentage: pct(81.0),
	}, records[0])
	assert.Equal(t, "Van Deaver", records[1].Candidate)
	assert.EqualValues(t, 13700, records[1].Votes)
}

func TestParseDistrictRaceSenateSkipsHouseBlocks(t *testing.T) {
	scope, err := NewScope(2024, internal.LevelSenate, "PLANS2168", nil)
	require.NoError(t, err)
	lines := []string{
		"SENATE DISTRICT 5",
		"State Sen 5",
		"State Rep 20",
		"Ignored - R 1 100.0%",
		"State Sen 5",
		"Schwertner - R 200,000 65.5%",
		"Total Voter Registration 500,000",
	}
	records, ok := ParseDistrictRace(scope, lines)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "Schwertner", records[0].Candidate)
	assert.Equal(t, "5", records[0].District)
}

func TestParseDistrictRaceUnopposed(t *testing.T) {
	scope, err := NewScope(2024, internal.LevelHouse, "PLANH2316", nil)
	require.NoError(t, err)

	_, ok := ParseDistrictRace(scope, []string{"HOUSE DISTRICT 3", "President", "Trump - R 1 100.0%"})
	assert.False(t, ok)

	_, ok = ParseDistrictRace(scope, []string{"no banner here"})
	assert.False(t, ok)

	_, ok = ParseDistrictRace(scope, []string{"HOUSE DISTRICT 151", "State Rep 151", "A - R 1 100%"})
	assert.False(t, ok)
}
