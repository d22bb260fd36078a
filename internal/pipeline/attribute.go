package pipeline

import (
	"districtvotes/internal"
	"districtvotes/internal/roster"
)

type Attributor struct {
	index *roster.Index
}

func NewAttributor(index *roster.Index) *Attributor {
	return &Attributor{index: index}
}

// Attribute assigns each column the office whose roster lists the candidate.
// Columns with no match keep an empty office and are skipped downstream.
func (a *Attributor) Attribute(cols []internal.CandidateColumn) internal.ColumnSchema {
	out := make(internal.ColumnSchema, len(cols))
	for i, c := range cols {
		c.Office = ""
		if a.index != nil {
			if office, ok := a.index.Lookup(c.Candidate); ok {
				c.Office = office
			}
		}
		out[i] = c
	}
	return out
}

func unresolved(schema internal.ColumnSchema) []string {
	var out []string
	for _, c := range schema {
		if !c.Resolved() {
			out = append(out, c.Candidate)
		}
	}
	return out
}
