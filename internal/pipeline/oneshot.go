package pipeline

import (
	"context"

	"districtvotes/internal"
	"districtvotes/internal/source"
)

// ExtractFile runs the report extractor over a single file outside the
// catalog, without reconciliation or persistence.
func (s *ProcessingService) ExtractFile(ctx context.Context, path string, format source.Format, year int, level internal.Level, plan string) (DocumentResult, error) {
	scope, err := NewScope(year, level, plan, s.roster)
	if err != nil {
		return DocumentResult{}, err
	}
	if format == "" {
		if format, err = source.FormatOf(path); err != nil {
			return DocumentResult{}, err
		}
	}
	pages, err := source.ReadFileAs(path, format)
	if err != nil {
		return DocumentResult{}, err
	}
	return NewExtractor(scope, s.extractorOptions(), s.logger).ExtractDocument(ctx, pages)
}

// AggregateFile aggregates a precinct results file for one level.
func (s *ProcessingService) AggregateFile(path string, year int, level internal.Level, plan string) ([]internal.DistrictRecord, internal.ExtractionStats, error) {
	scope, err := NewScope(year, level, plan, nil)
	if err != nil {
		return nil, internal.ExtractionStats{}, err
	}
	rows, skipped, err := source.ReadVTD(path)
	if err != nil {
		return nil, internal.ExtractionStats{}, err
	}
	records, stats := AggregateVTD(scope, rows)
	stats.CellsUnparseable += skipped
	return records, stats, nil
}
