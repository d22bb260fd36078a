package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

var vtdOfficeLabels = map[internal.Level]*regexp.Regexp{
	internal.LevelHouse:         regexp.MustCompile(`\bState Rep (\d+)\b`),
	internal.LevelSenate:        regexp.MustCompile(`\bState Sen (\d+)\b`),
	internal.LevelCongressional: regexp.MustCompile(`\bU\.S\. Rep (\d+)\b`),
}

// ParseVTDOffice extracts the district number from a precinct office label
// such as "State Rep 71". Labels of other levels do not match.
func ParseVTDOffice(level internal.Level, label string, r DistrictRange) (string, bool) {
	re, ok := vtdOfficeLabels[level]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || !r.Contains(n) {
		return "", false
	}
	return strconv.Itoa(n), true
}

type vtdKey struct {
	district  string
	candidate string
}

// AggregateVTD sums precinct rows into district totals for the level's own
// office and recomputes one-decimal shares per district. Rows for other
// offices are ignored. Groups follow the record key, so a candidate listed
// under a second party keeps the first party seen and counts a conflict.
func AggregateVTD(scope Scope, rows []internal.PrecinctRow) ([]internal.DistrictRecord, internal.ExtractionStats) {
	var stats internal.ExtractionStats
	office := scope.Level.DistrictOffice()

	sums := map[vtdKey]int64{}
	parties := map[vtdKey]string{}
	conflicted := map[vtdKey]bool{}
	totals := map[string]int64{}
	for _, row := range rows {
		district, ok := ParseVTDOffice(scope.Level, row.Office, scope.Range)
		if !ok {
			stats.RowsRejected++
			continue
		}
		stats.Rows++
		k := vtdKey{district: district, candidate: util.NormalizeName(row.Candidate)}
		party := strings.TrimSpace(row.Party)
		if prev, seen := parties[k]; !seen || prev == "" {
			parties[k] = party
		} else if party != "" && party != prev && !conflicted[k] {
			conflicted[k] = true
			stats.Conflicts++
		}
		sums[k] += row.Votes
		totals[district] += row.Votes
	}

	out := make([]internal.DistrictRecord, 0, len(sums))
	for k, votes := range sums {
		rec := internal.DistrictRecord{
			Year:      scope.Year,
			Level:     scope.Level,
			Plan:      scope.Plan,
			District:  k.district,
			Office:    office,
			Candidate: k.candidate,
			Party:     parties[k],
			Votes:     votes,
		}
		if total := totals[k.district]; total > 0 {
			rec.Percentage = util.FloatPtr(util.Round1(float64(votes) / float64(total) * 100))
		}
		out = append(out, rec)
	}
	SortRecords(out)
	stats.Records = len(out)
	return out, stats
}

// SortRecords orders by district, office, votes descending, then candidate.
func SortRecords(records []internal.DistrictRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if c := internal.DistrictOrder(a.District, b.District); c != 0 {
			return c < 0
		}
		if a.Office != b.Office {
			return a.Office < b.Office
		}
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if a.Candidate != b.Candidate {
			return a.Candidate < b.Candidate
		}
		return a.Party < b.Party
	})
}
