package pipeline

import (
	"fmt"

	"districtvotes/internal"
	"districtvotes/internal/roster"
)

// DistrictRange bounds the numbered districts accepted for a level.
type DistrictRange struct {
	Min int
	Max int
}

func LevelRange(level internal.Level) DistrictRange {
	return DistrictRange{Min: 1, Max: level.MaxDistrict()}
}

func (r DistrictRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Scope carries everything extraction needs to know about one document.
type Scope struct {
	Year     int
	Level    internal.Level
	Plan     string
	Range    DistrictRange
	Keywords []string
	// Roster is nil for sources that carry offices explicitly.
	Roster *roster.Index
}

func NewScope(year int, level internal.Level, plan string, r *roster.Roster) (Scope, error) {
	if level.MaxDistrict() == 0 {
		return Scope{}, fmt.Errorf("%w: %q", internal.ErrUnknownLevel, level)
	}
	s := Scope{Year: year, Level: level, Plan: plan, Range: LevelRange(level)}
	if r == nil {
		return s, nil
	}
	e, err := r.Election(year)
	if err != nil {
		return Scope{}, err
	}
	s.Roster = roster.BuildIndex(e)
	s.Keywords = s.Roster.Keywords()
	return s, nil
}
