package pipeline

import (
	"context"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

// CanonicalDistrict validates a district cell against the range and returns
// "STATE" or the integer without leading zeros.
func CanonicalDistrict(raw internal.Cell, r DistrictRange) (string, bool) {
	v, ok := util.CleanCell(raw)
	if !ok {
		return "", false
	}
	if v == internal.StateDistrict {
		return v, true
	}
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return "", false
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil || !r.Contains(n) {
		return "", false
	}
	return strconv.Itoa(n), true
}

// ExtractRows pairs each table row with the schema. Column i reads the cells
// at 1+2i (votes) and 2+2i (percentage); a short row drops the remaining
// columns. Records need a resolved office and a parseable vote count.
func ExtractRows(scope Scope, table [][]internal.Cell, schema internal.ColumnSchema) ([]internal.DistrictRecord, internal.ExtractionStats) {
	var (
		out   []internal.DistrictRecord
		stats internal.ExtractionStats
	)
	if len(schema) == 0 {
		return nil, stats
	}
	for _, row := range table {
		if len(row) == 0 {
			continue
		}
		district, ok := CanonicalDistrict(row[0], scope.Range)
		if !ok {
			stats.RowsRejected++
			continue
		}
		stats.Rows++
		for i, col := range schema {
			votesAt := 1 + 2*i
			if votesAt >= len(row) {
				stats.ColumnsTruncated += len(schema) - i
				break
			}
			if !col.Resolved() {
				continue
			}
			votes, status := util.ParseVotes(row[votesAt])
			if status != util.CellOK {
				stats.CellsUnparseable++
				continue
			}
			rec := internal.DistrictRecord{
				Year:      scope.Year,
				Level:     scope.Level,
				Plan:      scope.Plan,
				District:  district,
				Office:    col.Office,
				Candidate: col.Candidate,
				Party:     col.Party,
				Votes:     votes,
			}
			if pctAt := votesAt + 1; pctAt < len(row) {
				if pct, st := util.ParsePercentage(row[pctAt]); st == util.CellOK {
					rec.Percentage = util.FloatPtr(pct)
				} else if st == util.CellInvalid {
					stats.CellsUnparseable++
				}
			}
			out = append(out, rec)
		}
	}
	stats.Records = len(out)
	return out, stats
}

type ExtractorOptions struct {
	Workers    int
	CrossCheck CrossCheck
}

// Extractor runs the per-page pipeline for one source document.
type Extractor struct {
	scope      Scope
	attributor *Attributor
	opts       ExtractorOptions
	logger     *zap.Logger
}

func NewExtractor(scope Scope, opts ExtractorOptions, logger *zap.Logger) *Extractor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		scope:      scope,
		attributor: NewAttributor(scope.Roster),
		opts:       opts,
		logger:     logger.With(zap.Int("year", scope.Year), zap.String("level", string(scope.Level)), zap.String("plan", scope.Plan)),
	}
}

type PageResult struct {
	Index   int
	Schema  internal.ColumnSchema
	Records []internal.DistrictRecord
	Stats   internal.ExtractionStats
}

// ExtractPage locates the header, attributes offices and extracts rows. A
// page without a header yields no records.
func (e *Extractor) ExtractPage(page internal.Page) PageResult {
	res := PageResult{Index: page.Index}
	res.Stats.Pages = 1

	header := LocateHeader(page.Text, e.scope.Keywords)
	if len(header.Skipped) > 0 {
		e.logger.Debug("header tokens skipped", zap.Int("page", page.Index), zap.Strings("tokens", header.Skipped))
	}
	if len(header.Columns) == 0 {
		res.Stats.PagesWithoutSchema = 1
		return res
	}

	res.Schema = e.attributor.Attribute(header.Columns)
	missing := unresolved(res.Schema)
	if len(missing) > 0 {
		e.logger.Warn("unresolved candidates", zap.Int("page", page.Index), zap.Strings("candidates", missing))
	}

	records, stats := ExtractRows(e.scope, page.Table, res.Schema)
	stats.Pages = 1
	stats.ColumnsUnresolved = len(missing)
	records, warnings := e.opts.CrossCheck.Check(e.scope, page.Index, records)
	for _, w := range warnings {
		e.logger.Warn("column alignment suspect",
			zap.Int("page", w.Page),
			zap.String("district", w.District),
			zap.String("office", w.Office),
			zap.Float64("percentSum", w.PercentSum),
			zap.Float64("maxDeviation", w.MaxDeviation),
		)
	}
	stats.AlignmentWarnings = warnings
	stats.Records = len(records)
	res.Records = records
	res.Stats = stats
	return res
}

type DocumentResult struct {
	Records []internal.DistrictRecord
	Stats   internal.ExtractionStats
}

// ExtractDocument processes pages concurrently. Each worker writes its own
// result slot; slots are merged in page order so that the first occurrence
// of a record key wins regardless of scheduling.
func (e *Extractor) ExtractDocument(ctx context.Context, pages []internal.Page) (DocumentResult, error) {
	results := make([]PageResult, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ExtractPage(pages[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DocumentResult{}, err
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Index < results[b].Index })

	var doc DocumentResult
	for _, r := range results {
		doc.Stats.Merge(r.Stats)
		doc.Records = append(doc.Records, r.Records...)
	}
	records, dupes, conflicts := Dedupe(doc.Records)
	doc.Records = records
	doc.Stats.Records = len(records)
	doc.Stats.Duplicates = dupes
	doc.Stats.Conflicts = conflicts
	if conflicts > 0 {
		e.logger.Warn("conflicting duplicate records dropped", zap.Int("conflicts", conflicts))
	}
	return doc, nil
}

// Dedupe keeps the first record per key. It reports how many later copies
// were dropped and how many of those disagreed with the kept values.
func Dedupe(records []internal.DistrictRecord) ([]internal.DistrictRecord, int, int) {
	seen := make(map[internal.RecordKey]int, len(records))
	out := make([]internal.DistrictRecord, 0, len(records))
	dupes, conflicts := 0, 0
	for _, r := range records {
		if i, ok := seen[r.Key()]; ok {
			dupes++
			if !sameValues(out[i], r) {
				conflicts++
			}
			continue
		}
		seen[r.Key()] = len(out)
		out = append(out, r)
	}
	return out, dupes, conflicts
}

func sameValues(a, b internal.DistrictRecord) bool {
	return a.Votes == b.Votes && strings.EqualFold(a.Party, b.Party) && reflect.DeepEqual(a.Percentage, b.Percentage)
}
