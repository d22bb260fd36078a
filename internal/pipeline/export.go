package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"districtvotes/internal"
)

var recordHeaders = []string{"year", "district", "office", "candidate", "party", "votes", "percentage"}

func recordRow(r internal.DistrictRecord) []string {
	return []string{
		strconv.Itoa(r.Year),
		r.District,
		r.Office,
		r.Candidate,
		r.Party,
		strconv.FormatInt(r.Votes, 10),
		formatPercentage(r.Percentage),
	}
}

func formatPercentage(p *float64) string {
	if p == nil {
		return ""
	}
	s := strconv.FormatFloat(*p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteRecordsCSV writes records in the canonical column order.
func WriteRecordsCSV(records []internal.DistrictRecord, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write(recordHeaders)
	for _, r := range records {
		_ = w.Write(recordRow(r))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ExportDataset writes one file per (year, level) and a combined multi-year
// file per level. It returns the paths written.
func ExportDataset(d *ReconciledDataset, outputDir string) ([]string, error) {
	var (
		paths    []string
		combined = map[internal.Level][]internal.DistrictRecord{}
	)
	for _, sel := range d.Selections() {
		path := filepath.Join(outputDir, fmt.Sprintf("%d_%s_results.csv", sel.Year, sel.Level))
		if err := WriteRecordsCSV(sel.Records, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		combined[sel.Level] = append(combined[sel.Level], sel.Records...)
	}
	for _, level := range internal.Levels {
		records, ok := combined[level]
		if !ok {
			continue
		}
		path := filepath.Join(outputDir, fmt.Sprintf("combined_%s_results.csv", level))
		if err := WriteRecordsCSV(records, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var coverageHeaders = []string{"year", "level", "office", "expected", "missing_count", "missing"}

func coverageRows(reports []internal.CoverageReport) [][]string {
	var out [][]string
	for _, r := range reports {
		out = append(out, []string{
			strconv.Itoa(r.Year), string(r.Level), "",
			strconv.Itoa(r.Expected), strconv.Itoa(len(r.Missing)), strings.Join(r.Missing, " "),
		})
		for _, g := range r.Gaps {
			out = append(out, []string{
				strconv.Itoa(r.Year), string(r.Level), g.Office,
				"", strconv.Itoa(len(g.Missing)), strings.Join(g.Missing, " "),
			})
		}
	}
	return out
}

// WriteCoverageCSV lists missing districts per (year, level). The row with
// an empty office counts districts with no record at all.
func WriteCoverageCSV(reports []internal.CoverageReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write(coverageHeaders)
	for _, row := range coverageRows(reports) {
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ExportXLSX writes a workbook with one results sheet per level and a
// coverage sheet.
func ExportXLSX(d *ReconciledDataset, reports []internal.CoverageReport, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	first := f.GetSheetName(0)

	byLevel := map[internal.Level][]internal.DistrictRecord{}
	for _, sel := range d.Selections() {
		byLevel[sel.Level] = append(byLevel[sel.Level], sel.Records...)
	}

	var sheets []string
	for _, level := range internal.Levels {
		if _, ok := byLevel[level]; ok {
			sheets = append(sheets, string(level))
		}
	}

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		setHeaders(f, name, recordHeaders)
		for j, r := range byLevel[internal.Level(name)] {
			row := j + 2
			set := func(col int, value any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(name, cell, value)
			}
			set(1, r.Year)
			set(2, r.District)
			set(3, r.Office)
			set(4, r.Candidate)
			set(5, r.Party)
			set(6, r.Votes)
			set(7, derefFloat(r.Percentage))
		}
	}

	coverage := "coverage"
	if len(sheets) == 0 {
		if err := f.SetSheetName(first, coverage); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(coverage); err != nil {
		return err
	}
	setHeaders(f, coverage, coverageHeaders)
	for j, row := range coverageRows(reports) {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, j+2)
			_ = f.SetCellValue(coverage, cell, v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func setHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
