package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"districtvotes/internal"
	"districtvotes/internal/config"
	"districtvotes/internal/fetch"
	"districtvotes/internal/plans"
	"districtvotes/internal/roster"
	"districtvotes/internal/source"
	"districtvotes/internal/storage"
)

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	catalog *plans.Catalog
	roster  *roster.Roster
	logger  *zap.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, catalog *plans.Catalog, r *roster.Roster, logger *zap.Logger) *ProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingService{db: db, cfg: cfg, catalog: catalog, roster: r, logger: logger}
}

func (s *ProcessingService) extractorOptions() ExtractorOptions {
	return ExtractorOptions{
		Workers: s.cfg.PageWorkers,
		CrossCheck: CrossCheck{
			Tolerance: s.cfg.CrossCheckTolerance,
			Reject:    s.cfg.CrossCheckMode == "reject",
		},
	}
}

func (s *ProcessingService) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.cfg.DataDir, path)
}

// ExpectedOffices is what a source should supply: its catalogued offices, or
// every roster office of the year for a statewide report.
func (s *ProcessingService) ExpectedOffices(src plans.Source) []string {
	if len(src.Offices) > 0 {
		return src.Offices
	}
	if src.Kind != internal.KindRed206 && src.Kind != "" {
		return []string{src.Level.DistrictOffice()}
	}
	if s.roster == nil {
		return nil
	}
	e, err := s.roster.Election(src.Year)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(e.Offices))
	for _, o := range e.Offices {
		out = append(out, o.Name)
	}
	return out
}

// Load extracts one catalogued source completely. Partial output is never
// returned: an error or cancellation discards everything read so far.
func (s *ProcessingService) Load(ctx context.Context, src plans.Source) (SourceResult, error) {
	start := time.Now()
	doc := src.Document()
	doc.Path = s.resolve(src.Path)

	var (
		res SourceResult
		err error
	)
	switch src.Kind {
	case internal.KindRed206:
		res, err = s.loadReport(ctx, src, doc)
	case internal.KindRed226:
		res, err = s.loadDistrictRaces(ctx, src, doc)
	case internal.KindVTD:
		res, err = s.loadVTD(src, doc)
	default:
		err = fmt.Errorf("unknown source kind %q", src.Kind)
	}

	status := "loaded"
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		status = "missing"
	default:
		status = "failed"
	}
	if s.db != nil && ctx.Err() == nil {
		record := doc
		if err == nil {
			record = res.Document
		}
		if dbErr := s.db.UpsertSource(record, status); dbErr != nil {
			s.logger.Warn("record source status", zap.String("source", src.ID()), zap.Error(dbErr))
		}
	}
	if err != nil {
		return SourceResult{}, err
	}

	records, dupes, conflicts := Dedupe(res.Records)
	res.Records = records
	res.Stats.Records = len(records)
	res.Stats.Duplicates += dupes
	res.Stats.Conflicts += conflicts
	s.logger.Info("source loaded",
		zap.String("source", src.ID()),
		zap.Int("pages", res.Document.PageCount),
		zap.Int("records", len(records)),
		zap.Int("rowsRejected", res.Stats.RowsRejected),
		zap.Int("alignmentWarnings", len(res.Stats.AlignmentWarnings)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (s *ProcessingService) loadReport(ctx context.Context, src plans.Source, doc internal.SourceDocument) (SourceResult, error) {
	scope, err := NewScope(src.Year, src.Level, src.Plan, s.roster)
	if err != nil {
		return SourceResult{}, err
	}
	pages, err := source.ReadFile(doc.Path)
	if err != nil {
		return SourceResult{}, err
	}
	if doc.Checksum, err = fetch.Checksum(doc.Path); err != nil {
		return SourceResult{}, err
	}
	doc.PageCount = len(pages)

	out, err := NewExtractor(scope, s.extractorOptions(), s.logger).ExtractDocument(ctx, pages)
	if err != nil {
		return SourceResult{}, err
	}
	return SourceResult{Document: doc, Records: out.Records, Stats: out.Stats}, nil
}

// loadDistrictRaces reads one report per district from a glob of files.
func (s *ProcessingService) loadDistrictRaces(ctx context.Context, src plans.Source, doc internal.SourceDocument) (SourceResult, error) {
	scope, err := NewScope(src.Year, src.Level, src.Plan, nil)
	if err != nil {
		return SourceResult{}, err
	}
	files, err := filepath.Glob(doc.Path)
	if err != nil {
		return SourceResult{}, err
	}
	if len(files) == 0 {
		return SourceResult{}, fmt.Errorf("%w: no files match %s", fs.ErrNotExist, doc.Path)
	}
	slices.Sort(files)

	type fileResult struct {
		records  []internal.DistrictRecord
		pages    int
		checksum string
	}
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.PageWorkers, 1))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages, err := source.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			sum, err := fetch.Checksum(path)
			if err != nil {
				return err
			}
			var lines []string
			for _, p := range pages {
				lines = append(lines, p.Text...)
			}
			records, ok := ParseDistrictRace(scope, lines)
			if !ok {
				s.logger.Debug("no contested race", zap.String("path", path))
			}
			results[i] = fileResult{records: records, pages: len(pages), checksum: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SourceResult{}, err
	}

	var res SourceResult
	h := sha256.New()
	for _, r := range results {
		res.Records = append(res.Records, r.records...)
		res.Stats.Pages += r.pages
		h.Write([]byte(r.checksum))
	}
	doc.Checksum = hex.EncodeToString(h.Sum(nil))
	doc.PageCount = res.Stats.Pages
	res.Document = doc
	res.Stats.Rows = len(res.Records)
	return res, nil
}

func (s *ProcessingService) loadVTD(src plans.Source, doc internal.SourceDocument) (SourceResult, error) {
	scope, err := NewScope(src.Year, src.Level, src.Plan, nil)
	if err != nil {
		return SourceResult{}, err
	}
	rows, skipped, err := source.ReadVTD(doc.Path)
	if err != nil {
		return SourceResult{}, err
	}
	if doc.Checksum, err = fetch.Checksum(doc.Path); err != nil {
		return SourceResult{}, err
	}
	records, stats := AggregateVTD(scope, rows)
	stats.CellsUnparseable += skipped
	return SourceResult{Document: doc, Records: records, Stats: stats}, nil
}

type RunResult struct {
	TraceID  string
	Dataset  *ReconciledDataset
	Coverage []internal.CoverageReport
	Outputs  []string
}

// Run reconciles every catalogued (year, level) matching the filters, then
// persists, validates and exports the result. Empty filters select all.
func (s *ProcessingService) Run(ctx context.Context, years []int, levels []internal.Level) (RunResult, error) {
	start := time.Now()
	traceID := uuid.NewString()
	log := s.logger.With(zap.String("traceId", traceID))

	var pairs []plans.YearLevel
	for _, p := range s.catalog.Pairs() {
		if len(years) > 0 && !slices.Contains(years, p.Year) {
			continue
		}
		if len(levels) > 0 && !slices.Contains(levels, p.Level) {
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return RunResult{}, errors.New("no catalogued sources match the requested years and levels")
	}

	var flags FlagStore
	if s.db != nil {
		flags = s.db
	}
	reconciler := NewReconciler(s.catalog, s, flags, log)

	selections := make([]Selection, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.DocWorkers, 1))
	for i, p := range pairs {
		g.Go(func() error {
			sel, err := reconciler.Reconcile(gctx, p.Year, p.Level)
			if err != nil {
				return fmt.Errorf("reconcile %d %s: %w", p.Year, p.Level, err)
			}
			selections[i] = sel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunResult{}, err
	}
	reconciled := time.Now()

	dataset := NewReconciledDataset(selections...)
	result := RunResult{TraceID: traceID, Dataset: dataset}
	counts := map[string]int{}
	for _, sel := range dataset.Selections() {
		report := ValidateSelection(sel)
		result.Coverage = append(result.Coverage, report)
		if !report.Complete() {
			log.Warn("coverage gaps",
				zap.Int("year", sel.Year),
				zap.String("level", string(sel.Level)),
				zap.Strings("missing", report.Missing),
				zap.Int("officesWithGaps", len(report.Gaps)),
			)
		}
		counts["records"] += len(sel.Records)
		counts["unavailable"] += len(sel.Unavailable)
		counts["alignmentWarnings"] += len(sel.Stats.AlignmentWarnings)
		counts["missingDistricts"] += len(report.Missing)

		if s.db == nil {
			continue
		}
		if err := s.db.ReplaceRecords(sel.Year, sel.Level, sel.Records); err != nil {
			return RunResult{}, fmt.Errorf("store %d %s: %w", sel.Year, sel.Level, err)
		}
		if err := s.db.ReplaceCoverage(report); err != nil {
			return RunResult{}, err
		}
		for _, doc := range sel.Documents {
			if err := s.db.UpsertSource(doc, "selected"); err != nil {
				return RunResult{}, err
			}
		}
	}

	outputs, err := ExportDataset(dataset, s.cfg.OutputDir)
	if err != nil {
		return RunResult{}, err
	}
	coveragePath := filepath.Join(s.cfg.OutputDir, "coverage.csv")
	if err := WriteCoverageCSV(result.Coverage, coveragePath); err != nil {
		return RunResult{}, err
	}
	outputs = append(outputs, coveragePath)
	if s.cfg.ExportXLSX {
		xlsxPath := filepath.Join(s.cfg.OutputDir, "results.xlsx")
		if err := ExportXLSX(dataset, result.Coverage, xlsxPath); err != nil {
			return RunResult{}, err
		}
		outputs = append(outputs, xlsxPath)
	}
	result.Outputs = outputs

	timings := map[string]float64{
		"reconcileMs": float64(reconciled.Sub(start).Milliseconds()),
		"totalMs":     float64(time.Since(start).Milliseconds()),
	}
	counts["levels"] = len(pairs)
	if s.db != nil {
		if err := s.db.InsertRun(traceID, timings, counts); err != nil {
			return RunResult{}, err
		}
		if err := s.db.SetMetadata("last_run", traceID); err != nil {
			return RunResult{}, err
		}
	}
	log.Info("run complete", zap.Int("records", counts["records"]), zap.Int("unavailable", counts["unavailable"]), zap.Strings("outputs", outputs))
	return result, nil
}
