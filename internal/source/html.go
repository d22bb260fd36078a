package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

const blockSelector = "h1,h2,h3,h4,h5,h6,p,caption,pre"

// ReadHTML turns each <table> into a page. Headings and paragraphs between
// tables become the leading text lines of the next page, followed by one
// line per table row.
func ReadHTML(r io.Reader) ([]internal.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		out     []internal.Page
		pending []string
	)
	doc.Find(blockSelector + ",table").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) != "table" {
			if sel.ParentsFiltered("table").Length() > 0 {
				return
			}
			pending = append(pending, util.SplitLines(sel.Text())...)
			return
		}
		if sel.ParentsFiltered("table").Length() > 0 {
			return
		}

		page := internal.Page{Index: len(out) + 1, Text: pending}
		pending = nil
		sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var (
				cells []internal.Cell
				texts []string
			)
			tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
				v := util.NormalizeSpaces(td.Text())
				if v == "" {
					cells = append(cells, nil)
					return
				}
				cells = append(cells, util.StringPtr(v))
				texts = append(texts, v)
			})
			if len(cells) == 0 {
				return
			}
			page.Table = append(page.Table, cells)
			if len(texts) > 0 {
				page.Text = append(page.Text, strings.Join(texts, " "))
			}
		})
		out = append(out, page)
	})
	return out, nil
}
