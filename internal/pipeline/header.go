package pipeline

import (
	"strings"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

// Header is the race header found on a page. Line is -1 when no keyword
// line was found.
type Header struct {
	Line    int
	Keyword string
	Columns []internal.CandidateColumn
	// Skipped holds tokens of the name line that are not Name-PARTY.
	Skipped []string
}

func (h Header) Found() bool {
	return h.Line >= 0
}

// LocateHeader scans lines in order for the first one containing any race
// keyword; the line after it is read as the candidate name line. Office is
// left empty on every column.
func LocateHeader(lines []string, keywords []string) Header {
	h := Header{Line: -1}
	for i, line := range lines {
		kw, ok := containsKeyword(line, keywords)
		if !ok {
			continue
		}
		h.Line = i
		h.Keyword = kw
		if i+1 >= len(lines) {
			return h
		}
		h.Columns, h.Skipped = parseNameLine(lines[i+1])
		return h
	}
	return h
}

func containsKeyword(line string, keywords []string) (string, bool) {
	upper := strings.ToUpper(line)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(upper, strings.ToUpper(kw)) {
			return kw, true
		}
	}
	return "", false
}

func parseNameLine(line string) ([]internal.CandidateColumn, []string) {
	tokens := strings.Fields(line)
	if len(tokens) > 0 && strings.EqualFold(tokens[0], "District") {
		tokens = tokens[1:]
	}
	var (
		cols    []internal.CandidateColumn
		skipped []string
	)
	for _, tok := range tokens {
		name, party, ok := util.ParseCandidateToken(tok)
		if !ok {
			skipped = append(skipped, tok)
			continue
		}
		cols = append(cols, internal.CandidateColumn{Candidate: util.NormalizeName(name), Party: party})
	}
	return cols, skipped
}
