package source

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

// Gaps are measured in multiples of the glyph font size.
const (
	wordGap = 0.15
	cellGap = 1.2
)

// ReadPDF lays out each page as text lines and a cell grid. A row is split
// into cells wherever the horizontal gap between glyph runs is wide.
func ReadPDF(content []byte) ([]internal.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	out := make([]internal.Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		page := internal.Page{Index: i}
		if p.V.IsNull() {
			out = append(out, page)
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })
		for _, row := range rows {
			cells := layoutRow(row.Content)
			if len(cells) == 0 {
				continue
			}
			page.Text = append(page.Text, strings.Join(cells, " "))
			grid := make([]internal.Cell, len(cells))
			for j := range cells {
				grid[j] = util.StringPtr(cells[j])
			}
			page.Table = append(page.Table, grid)
		}
		out = append(out, page)
	}
	return out, nil
}

// layoutRow joins glyph runs into words and words into cells.
func layoutRow(texts []pdf.Text) []string {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.W == 0 {
			continue
		}
		runs = append(runs, t)
	}
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].X < runs[b].X })

	var cells []string
	var cur strings.Builder
	prevEnd := 0.0
	for i, t := range runs {
		if i > 0 {
			size := t.FontSize
			if size <= 0 {
				size = 10
			}
			gap := t.X - prevEnd
			switch {
			case gap > size*cellGap:
				cells = appendCell(cells, cur.String())
				cur.Reset()
			case gap > size*wordGap:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return appendCell(cells, cur.String())
}

func appendCell(cells []string, s string) []string {
	s = util.NormalizeSpaces(s)
	if s == "" {
		return cells
	}
	return append(cells, s)
}
