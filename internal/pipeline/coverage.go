package pipeline

import (
	"sort"
	"strconv"

	"districtvotes/internal"
)

// ExpectedDistricts is {"STATE"} plus 1..N for the level.
func ExpectedDistricts(level internal.Level) []string {
	n := level.MaxDistrict()
	out := make([]string, 0, n+1)
	out = append(out, internal.StateDistrict)
	for i := 1; i <= n; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// ValidateCoverage reports which expected districts have no record, overall
// and per office. offices adds offices that must be checked even when no
// record mentions them. The level's own district office is never reported
// statewide, so STATE is not expected for it.
func ValidateCoverage(year int, level internal.Level, records []internal.DistrictRecord, offices []string) internal.CoverageReport {
	expected := ExpectedDistricts(level)
	report := internal.CoverageReport{Year: year, Level: level}

	seen := map[string]bool{}
	byOffice := map[string]map[string]bool{}
	var order []string
	addOffice := func(o string) {
		if _, ok := byOffice[o]; !ok {
			byOffice[o] = map[string]bool{}
			order = append(order, o)
		}
	}
	for _, o := range offices {
		addOffice(o)
	}
	for _, r := range records {
		if r.Year != year || r.Level != level {
			continue
		}
		addOffice(r.Office)
		byOffice[r.Office][r.District] = true
		seen[r.District] = true
	}
	sort.Strings(order)

	stateExpected := len(order) == 0
	for _, office := range order {
		if office != level.DistrictOffice() {
			stateExpected = true
		}
		var missing []string
		for _, d := range expected {
			if d == internal.StateDistrict && office == level.DistrictOffice() {
				continue
			}
			if !byOffice[office][d] {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			report.Gaps = append(report.Gaps, internal.CoverageGap{Office: office, Missing: missing})
		}
	}

	for _, d := range expected {
		if d == internal.StateDistrict && !stateExpected {
			continue
		}
		report.Expected++
		if !seen[d] {
			report.Missing = append(report.Missing, d)
		}
	}
	return report
}

// ValidateSelection checks a reconciled level, including offices that no
// source could supply.
func ValidateSelection(sel Selection) internal.CoverageReport {
	return ValidateCoverage(sel.Year, sel.Level, sel.Records, sel.Expected)
}
