package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"districtvotes/internal"
)

func TestLocateHeader(t *testing.T) {
	keywords := []string{"PRESIDENT", "U.S. SEN", "GOVERNOR"}
	cases := []struct {
		name    string
		lines   []string
		line    int
		columns []internal.CandidateColumn
		skipped []string
	}{
		{
			name:  "first keyword line wins",
			lines: []string{"Texas Legislative Council", "U.S. SEN GOVERNOR", "District Cruz-R O'Rourke-D Abbott-R", "GOVERNOR", "District X-R"},
			line:  1,
			columns: []internal.CandidateColumn{
				{Candidate: "Cruz", Party: "R"},
				{Candidate: "O'Rourke", Party: "D"},
				{Candidate: "Abbott", Party: "R"},
			},
		},
		{
			name:  "keyword match ignores case",
			lines: []string{"President", "Biden-D Trump-R"},
			line:  0,
			columns: []internal.CandidateColumn{
				{Candidate: "Biden", Party: "D"},
				{Candidate: "Trump", Party: "R"},
			},
		},
		{
			name:    "unparseable tokens are skipped",
			lines:   []string{"GOVERNOR", "District Smith-Jones-R Total Write-In-W"},
			line:    0,
			columns: []internal.CandidateColumn{{Candidate: "Smith-Jones", Party: "R"}, {Candidate: "Write-In", Party: "W"}},
			skipped: []string{"Total"},
		},
		{
			name:  "keyword on last line",
			lines: []string{"notes", "GOVERNOR"},
			line:  1,
		},
		{
			name:  "no keyword",
			lines: []string{"District 1 2 3"},
			line:  -1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := LocateHeader(tc.lines, keywords)
			assert.Equal(t, tc.line, h.Line)
			assert.Equal(t, tc.line >= 0, h.Found())
			assert.Equal(t, tc.columns, h.Columns)
			assert.Equal(t, tc.skipped, h.Skipped)
		})
	}
}

func TestAttribute(t *testing.T) {
	scope := testScope(t, 2018, internal.LevelHouse)
	schema := NewAttributor(scope.Roster).Attribute([]internal.CandidateColumn{
		{Candidate: "Cruz", Party: "R"},
		{Candidate: "O’Rourke", Party: "D"},
		{Candidate: "Stranger", Party: "I"},
		{Candidate: "Abbott", Party: "R"},
	})
	assert.Equal(t, internal.ColumnSchema{
		{Candidate: "Cruz", Party: "R", Office: "U.S. Senate"},
		{Candidate: "O’Rourke", Party: "D", Office: "U.S. Senate"},
		{Candidate: "Stranger", Party: "I"},
		{Candidate: "Abbott", Party: "R", Office: "Governor"},
	}, schema)
	assert.Equal(t, []string{"Stranger"}, unresolved(schema))

	none := NewAttributor(nil).Attribute([]internal.CandidateColumn{{Candidate: "Cruz", Party: "R"}})
	assert.False(t, none[0].Resolved())
}
