package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

var ErrMissingColumn = errors.New("missing column")

var vtdColumns = []string{"office", "name", "party", "votes"}

// ReadVTD loads precinct rows from a CSV or XLSX election file carrying
// Office, Name, Party and Votes columns.
func ReadVTD(path string) ([]internal.PrecinctRow, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		return ReadVTDCSV(f)
	case ".xlsx":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, err
		}
		return ReadVTDXLSX(content)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadVTDCSV returns the parsed rows and the number of rows skipped for an
// unreadable vote count.
func ReadVTDCSV(r io.Reader) ([]internal.PrecinctRow, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv: %w", err)
	}
	return precinctRows(records)
}

func ReadVTDXLSX(content []byte) ([]internal.PrecinctRow, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, 0, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("%w: workbook has no sheets", ErrMissingColumn)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, 0, err
	}
	return precinctRows(rows)
}

func precinctRows(records [][]string) ([]internal.PrecinctRow, int, error) {
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	idx := map[string]int{}
	for i, h := range records[0] {
		key := strings.ToLower(util.NormalizeSpaces(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	for _, col := range vtdColumns {
		if _, ok := idx[col]; !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	get := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return util.NormalizeSpaces(row[i])
	}

	out := make([]internal.PrecinctRow, 0, len(records)-1)
	skipped := 0
	for _, row := range records[1:] {
		office := get(row, "office")
		if office == "" {
			continue
		}
		raw := get(row, "votes")
		votes, status := util.ParseVotes(&raw)
		if status != util.CellOK {
			skipped++
			continue
		}
		out = append(out, internal.PrecinctRow{
			Office:    office,
			Candidate: get(row, "name"),
			Party:     get(row, "party"),
			Votes:     votes,
		})
	}
	return out, skipped, nil
}
