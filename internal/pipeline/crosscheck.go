package pipeline

import (
	"math"

	"districtvotes/internal"
)

// CrossCheck compares reported percentages with shares recomputed from the
// vote counts of each (district, office) race on a page. A shifted header
// produces well-formed rows whose numbers disagree; this catches that.
type CrossCheck struct {
	// Tolerance is in percentage points. Zero disables the check.
	Tolerance float64
	// Reject drops the records of races that fail instead of only warning.
	Reject bool
}

type raceKey struct {
	district string
	office   string
}

func (c CrossCheck) Check(scope Scope, page int, records []internal.DistrictRecord) ([]internal.DistrictRecord, []internal.AlignmentWarning) {
	if c.Tolerance <= 0 || len(records) == 0 {
		return records, nil
	}

	var order []raceKey
	races := map[raceKey][]int{}
	for i, r := range records {
		k := raceKey{r.District, r.Office}
		if _, ok := races[k]; !ok {
			order = append(order, k)
		}
		races[k] = append(races[k], i)
	}

	var warnings []internal.AlignmentWarning
	failed := map[raceKey]bool{}
	for _, k := range order {
		sum, maxDev, reported := raceDeviation(records, races[k])
		if reported == 0 {
			continue
		}
		// Rounding error accumulates once per reported percentage.
		if math.Abs(sum-100) <= c.Tolerance*float64(reported) && maxDev <= c.Tolerance {
			continue
		}
		failed[k] = true
		warnings = append(warnings, internal.AlignmentWarning{
			Year:         scope.Year,
			Level:        scope.Level,
			Plan:         scope.Plan,
			Page:         page,
			District:     k.district,
			Office:       k.office,
			PercentSum:   sum,
			MaxDeviation: maxDev,
		})
	}

	if !c.Reject || len(failed) == 0 {
		return records, warnings
	}
	kept := make([]internal.DistrictRecord, 0, len(records))
	for _, r := range records {
		if !failed[raceKey{r.District, r.Office}] {
			kept = append(kept, r)
		}
	}
	return kept, warnings
}

// raceDeviation returns the sum of reported percentages and the largest gap
// between a reported and a recomputed share. reported counts the records
// carrying a percentage; it is zero when the race has none or no votes.
func raceDeviation(records []internal.DistrictRecord, idx []int) (sum, maxDev float64, reported int) {
	var total int64
	for _, i := range idx {
		total += records[i].Votes
	}
	if total == 0 {
		return 0, 0, 0
	}
	for _, i := range idx {
		p := records[i].Percentage
		if p == nil {
			continue
		}
		reported++
		sum += *p
		share := float64(records[i].Votes) / float64(total) * 100
		if d := math.Abs(share - *p); d > maxDev {
			maxDev = d
		}
	}
	return sum, maxDev, reported
}
