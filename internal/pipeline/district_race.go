package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

// District race reports (Red-226) print one district per document: a
// "HOUSE DISTRICT 12" banner, then race blocks headed by labels such as
// "State Rep 12" with one "Name - PARTY votes pct% ..." line per candidate.

var (
	raceBanners = map[internal.Level]*regexp.Regexp{
		internal.LevelHouse:         regexp.MustCompile(`HOUSE DISTRICT (\d+)`),
		internal.LevelSenate:        regexp.MustCompile(`SENATE DISTRICT (\d+)`),
		internal.LevelCongressional: regexp.MustCompile(`CONGRESSIONAL DISTRICT (\d+)`),
	}
	raceLabels = map[internal.Level]string{
		internal.LevelHouse:         "State Rep",
		internal.LevelSenate:        "State Sen",
		internal.LevelCongressional: "U.S. Rep",
	}
	raceStopMarkers = []string{
		"Total Voter Registration", "For technical reasons",
		"State Rep", "State Sen", "U.S. Rep", "SBOE", "CCA", "Sup Ct",
	}
	reRaceCandidate = regexp.MustCompile(`^(.+?)\s+-\s+([A-Z]+)\s+([\d,]+)\s+([\d.]+\s*%?)`)
)

// ParseDistrictRace reads the level's own race from a district report. It
// returns false when the banner or race block is missing, which is normal
// for unopposed seats.
func ParseDistrictRace(scope Scope, lines []string) ([]internal.DistrictRecord, bool) {
	banner, ok := raceBanners[scope.Level]
	if !ok {
		return nil, false
	}
	district := ""
	for _, line := range lines {
		if m := banner.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || !scope.Range.Contains(n) {
				return nil, false
			}
			district = strconv.Itoa(n)
			break
		}
	}
	if district == "" {
		return nil, false
	}

	marker := regexp.MustCompile(fmt.Sprintf(`(^|\s)%s 0*%s\b`, regexp.QuoteMeta(raceLabels[scope.Level]), district))
	office := scope.Level.DistrictOffice()

	var out []internal.DistrictRecord
	inRace := false
	for _, line := range lines {
		if !inRace {
			inRace = marker.MatchString(line)
			continue
		}
		if isRaceStop(line) {
			if len(out) > 0 {
				break
			}
			inRace = marker.MatchString(line)
			continue
		}
		m := reRaceCandidate.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		votes, st := util.ParseVotes(&m[3])
		if st != util.CellOK {
			continue
		}
		rec := internal.DistrictRecord{
			Year:      scope.Year,
			Level:     scope.Level,
			Plan:      scope.Plan,
			District:  district,
			Office:    office,
			Candidate: util.NormalizeName(m[1]),
			Party:     m[2],
			Votes:     votes,
		}
		if pct, st := util.ParsePercentage(&m[4]); st == util.CellOK {
			rec.Percentage = util.FloatPtr(pct)
		}
		out = append(out, rec)
	}
	return out, len(out) > 0
}

func isRaceStop(line string) bool {
	for _, m := range raceStopMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}
