package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type CellStatus int

const (
	CellOK CellStatus = iota
	CellAbsent
	CellInvalid
)

func (s CellStatus) String() string {
	switch s {
	case CellOK:
		return "ok"
	case CellAbsent:
		return "absent"
	default:
		return "invalid"
	}
}

var (
	reDigits    = regexp.MustCompile(`^\d+$`)
	reThousands = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	reSpaces    = regexp.MustCompile(`\s+`)
	reDecimal   = regexp.MustCompile(`^\d+(?:\.\d+)?$|^\.\d+$`)
)

// CleanCell trims the cell and collapses inner whitespace. The bool is false
// for a nil or blank cell.
func CleanCell(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	v := strings.ReplaceAll(*raw, "\u00a0", " ")
	v = strings.TrimSpace(reSpaces.ReplaceAllString(v, " "))
	return v, v != ""
}

// ParseVotes reads a non-negative vote count such as "12,345".
func ParseVotes(raw *string) (int64, CellStatus) {
	v, ok := CleanCell(raw)
	if !ok {
		return 0, CellAbsent
	}
	switch {
	case reThousands.MatchString(v):
		v = strings.ReplaceAll(v, ",", "")
	case !reDigits.MatchString(v):
		return 0, CellInvalid
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, CellInvalid
	}
	return n, CellOK
}

// ParsePercentage reads "46.5 %", "46.5%" or "46.5" into 46.5. Values outside
// 0-100 are invalid.
func ParsePercentage(raw *string) (float64, CellStatus) {
	v, ok := CleanCell(raw)
	if !ok {
		return 0, CellAbsent
	}
	v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
	if v == "" {
		return 0, CellAbsent
	}
	if !reDecimal.MatchString(v) {
		return 0, CellInvalid
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > 100 {
		return 0, CellInvalid
	}
	return f, CellOK
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }
