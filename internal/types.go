package internal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Level string

const (
	LevelHouse         Level = "house"
	LevelSenate        Level = "senate"
	LevelCongressional Level = "congressional"
)

var Levels = []Level{LevelHouse, LevelSenate, LevelCongressional}

var (
	ErrUnknownLevel      = errors.New("unknown geographic level")
	ErrNoRoster          = errors.New("no candidate roster for year")
	ErrSourceUnavailable = errors.New("source unavailable")
)

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelHouse:
		return LevelHouse, nil
	case LevelSenate:
		return LevelSenate, nil
	case LevelCongressional:
		return LevelCongressional, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// MaxDistrict is the number of districts the level is divided into.
func (l Level) MaxDistrict() int {
	switch l {
	case LevelHouse:
		return 150
	case LevelSenate:
		return 31
	case LevelCongressional:
		return 38
	default:
		return 0
	}
}

// DistrictOffice is the office elected by each district of the level.
func (l Level) DistrictOffice() string {
	switch l {
	case LevelHouse:
		return "State Representative"
	case LevelSenate:
		return "State Senator"
	case LevelCongressional:
		return "U.S. Representative"
	default:
		return ""
	}
}

type SourceKind string

const (
	KindRed206 SourceKind = "red206"
	KindRed226 SourceKind = "red226"
	KindVTD    SourceKind = "vtd"
)

const StateDistrict = "STATE"

type SourceDocument struct {
	Year      int
	Level     Level
	Plan      string
	Kind      SourceKind
	Path      string
	URL       string
	Checksum  string
	PageCount int
}

func (s SourceDocument) ID() string {
	return fmt.Sprintf("%d/%s/%s/%s", s.Year, s.Level, s.Plan, s.Kind)
}

// Cell is a raw table cell; nil means the extractor produced no value.
type Cell = *string

type Page struct {
	Index int
	Text  []string
	Table [][]Cell
}

type CandidateColumn struct {
	Candidate string
	Party     string
	// Office is empty when the candidate could not be attributed.
	Office string
}

func (c CandidateColumn) Resolved() bool {
	return c.Office != ""
}

type ColumnSchema []CandidateColumn

type DistrictRecord struct {
	Year       int
	Level      Level
	Plan       string
	District   string
	Office     string
	Candidate  string
	Party      string
	Votes      int64
	Percentage *float64
}

// PrecinctRow is one VTD-level result line before aggregation.
type PrecinctRow struct {
	Office    string
	Candidate string
	Party     string
	Votes     int64
}

type RecordKey struct {
	Year      int
	Level     Level
	District  string
	Office    string
	Candidate string
}

func (r DistrictRecord) Key() RecordKey {
	return RecordKey{Year: r.Year, Level: r.Level, District: r.District, Office: r.Office, Candidate: r.Candidate}
}

// DistrictOrder sorts STATE before numbered districts and numbers numerically.
func DistrictOrder(a, b string) int {
	if a == b {
		return 0
	}
	if a == StateDistrict {
		return -1
	}
	if b == StateDistrict {
		return 1
	}
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if ai < bi {
			return -1
		}
		return 1
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

type ExtractionStats struct {
	Pages              int
	PagesWithoutSchema int
	Rows               int
	RowsRejected       int
	CellsUnparseable   int
	ColumnsUnresolved  int
	ColumnsTruncated   int
	Records            int
	Duplicates         int
	Conflicts          int
	AlignmentWarnings  []AlignmentWarning
}

func (s *ExtractionStats) Merge(o ExtractionStats) {
	s.Pages += o.Pages
	s.PagesWithoutSchema += o.PagesWithoutSchema
	s.Rows += o.Rows
	s.RowsRejected += o.RowsRejected
	s.CellsUnparseable += o.CellsUnparseable
	s.ColumnsUnresolved += o.ColumnsUnresolved
	s.ColumnsTruncated += o.ColumnsTruncated
	s.Records += o.Records
	s.Duplicates += o.Duplicates
	s.Conflicts += o.Conflicts
	s.AlignmentWarnings = append(s.AlignmentWarnings, o.AlignmentWarnings...)
}

type AlignmentWarning struct {
	Year         int
	Level        Level
	Plan         string
	Page         int
	District     string
	Office       string
	PercentSum   float64
	MaxDeviation float64
}

type CoverageGap struct {
	Office  string
	Missing []string
}

type CoverageReport struct {
	Year     int
	Level    Level
	Expected int
	// Missing lists districts with no record for any office.
	Missing []string
	Gaps    []CoverageGap
}

func (r CoverageReport) Complete() bool {
	return len(r.Missing) == 0 && len(r.Gaps) == 0
}

// UnavailableError marks a (year, level, office) for which no usable source exists.
// Office is empty when the whole level is unavailable.
type UnavailableError struct {
	Year   int
	Level  Level
	Office string
	Reason string
}

func (e *UnavailableError) Error() string {
	target := fmt.Sprintf("%d %s", e.Year, e.Level)
	if e.Office != "" {
		target += " " + e.Office
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", ErrSourceUnavailable, target, e.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrSourceUnavailable, target)
}

func (e *UnavailableError) Unwrap() error {
	return ErrSourceUnavailable
}
