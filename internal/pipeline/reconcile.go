package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"go.uber.org/zap"

	"districtvotes/internal"
	"districtvotes/internal/plans"
)

// SourceResult is the complete extraction of one source document.
type SourceResult struct {
	Document internal.SourceDocument
	Records  []internal.DistrictRecord
	Stats    internal.ExtractionStats
}

// Loader extracts a catalogued source. Load must return an error wrapping
// fs.ErrNotExist when the source file is absent.
type Loader interface {
	Load(ctx context.Context, src plans.Source) (SourceResult, error)
	ExpectedOffices(src plans.Source) []string
}

// FlagStore remembers sources shown to be structurally wrong across runs.
type FlagStore interface {
	IncorrectSources(year int, level internal.Level) (map[string]string, error)
	FlagSource(doc internal.SourceDocument, reason string) error
}

type SkippedSource struct {
	ID     string
	Reason string
}

// Selection is the reconciled output for one (year, level).
type Selection struct {
	Year  int
	Level internal.Level
	// Offices maps each covered office to the ID of the source it came from.
	Offices     map[string]string
	Expected    []string
	Records     []internal.DistrictRecord
	Documents   []internal.SourceDocument
	Unavailable []*internal.UnavailableError
	Skipped     []SkippedSource
	Benchmarks  []BenchmarkResult
	Stats       internal.ExtractionStats
}

type Reconciler struct {
	catalog *plans.Catalog
	loader  Loader
	flags   FlagStore
	logger  *zap.Logger
}

func NewReconciler(catalog *plans.Catalog, loader Loader, flags FlagStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{catalog: catalog, loader: loader, flags: flags, logger: logger}
}

// Reconcile walks the catalogued sources for (year, level) in preference
// order. Each office is taken whole from the first usable source that
// covers it; later sources only fill offices still missing. Sources marked
// incorrect in the catalog or flag store, and sources failing a benchmark,
// are never used.
func (r *Reconciler) Reconcile(ctx context.Context, year int, level internal.Level) (Selection, error) {
	sel := Selection{Year: year, Level: level, Offices: map[string]string{}}
	log := r.logger.With(zap.Int("year", year), zap.String("level", string(level)))

	flagged := map[string]string{}
	if r.flags != nil {
		var err error
		if flagged, err = r.flags.IncorrectSources(year, level); err != nil {
			return Selection{}, fmt.Errorf("load source flags: %w", err)
		}
	}

	candidates := r.catalog.Candidates(year, level)
	sel.Expected = expectedOffices(r.loader, candidates)
	benchmarks := r.catalog.Benchmarks(year, level)

	for _, src := range candidates {
		if err := ctx.Err(); err != nil {
			return Selection{}, err
		}
		id := src.ID()
		if covered(sel.Offices, sel.Expected) {
			break
		}
		if src.Incorrect {
			sel.skip(log, id, "catalogued as incorrect: "+src.Reason)
			continue
		}
		if reason, ok := flagged[id]; ok {
			sel.skip(log, id, "flagged as incorrect: "+reason)
			continue
		}

		res, err := r.loader.Load(ctx, src)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Selection{}, ctxErr
			}
			if errors.Is(err, fs.ErrNotExist) {
				sel.skip(log, id, "source file missing")
			} else {
				sel.skip(log, id, "load failed: "+err.Error())
			}
			continue
		}

		results, failed := Verify(res.Records, benchmarks)
		sel.Benchmarks = append(sel.Benchmarks, results...)
		if failed {
			reason := "benchmark mismatch"
			for _, b := range results {
				if b.Found && !b.Passed {
					reason = "benchmark mismatch: " + b.String()
					break
				}
			}
			if r.flags != nil {
				if err := r.flags.FlagSource(res.Document, reason); err != nil {
					return Selection{}, fmt.Errorf("flag source %s: %w", id, err)
				}
			}
			sel.skip(log, id, reason)
			continue
		}

		taken := sel.take(id, res.Records)
		if len(taken) == 0 {
			sel.skip(log, id, "no new offices")
			continue
		}
		sel.Documents = append(sel.Documents, res.Document)
		sel.Stats.Merge(res.Stats)
		log.Info("source selected", zap.String("source", id), zap.Strings("offices", taken))
	}

	for _, office := range sel.Expected {
		if _, ok := sel.Offices[office]; !ok {
			sel.Unavailable = append(sel.Unavailable, &internal.UnavailableError{Year: year, Level: level, Office: office, Reason: "no usable source"})
		}
	}
	if len(sel.Offices) == 0 && len(sel.Expected) == 0 {
		sel.Unavailable = append(sel.Unavailable, &internal.UnavailableError{Year: year, Level: level, Reason: "no usable source"})
	}
	for _, u := range sel.Unavailable {
		log.Warn("office unavailable", zap.Error(u))
	}
	SortRecords(sel.Records)
	return sel, nil
}

func (s *Selection) skip(log *zap.Logger, id, reason string) {
	s.Skipped = append(s.Skipped, SkippedSource{ID: id, Reason: reason})
	log.Info("source skipped", zap.String("source", id), zap.String("reason", reason))
}

// take adds the records of every office not yet covered and returns those
// offices in first-seen order.
func (s *Selection) take(id string, records []internal.DistrictRecord) []string {
	var taken []string
	fresh := map[string]bool{}
	for _, rec := range records {
		if _, have := s.Offices[rec.Office]; have && !fresh[rec.Office] {
			continue
		}
		if !fresh[rec.Office] {
			fresh[rec.Office] = true
			s.Offices[rec.Office] = id
			taken = append(taken, rec.Office)
		}
		s.Records = append(s.Records, rec)
	}
	return taken
}

func expectedOffices(loader Loader, sources []plans.Source) []string {
	var out []string
	seen := map[string]bool{}
	for _, src := range sources {
		for _, o := range loader.ExpectedOffices(src) {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	return out
}

func covered(have map[string]string, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	for _, o := range expected {
		if _, ok := have[o]; !ok {
			return false
		}
	}
	return true
}

// ReconciledDataset answers per-office queries across reconciled levels.
// Querying an office with no usable source is an error, never an empty set.
type ReconciledDataset struct {
	selections map[plans.YearLevel]*Selection
}

func NewReconciledDataset(selections ...Selection) *ReconciledDataset {
	d := &ReconciledDataset{selections: map[plans.YearLevel]*Selection{}}
	for i := range selections {
		s := selections[i]
		d.selections[plans.YearLevel{Year: s.Year, Level: s.Level}] = &s
	}
	return d
}

func (d *ReconciledDataset) Records(year int, level internal.Level, office string) ([]internal.DistrictRecord, error) {
	sel, ok := d.selections[plans.YearLevel{Year: year, Level: level}]
	if !ok {
		return nil, &internal.UnavailableError{Year: year, Level: level, Office: office, Reason: "not reconciled"}
	}
	for _, u := range sel.Unavailable {
		if u.Office == office || u.Office == "" {
			return nil, u
		}
	}
	if _, ok := sel.Offices[office]; !ok {
		return nil, &internal.UnavailableError{Year: year, Level: level, Office: office, Reason: "no source covers office"}
	}
	var out []internal.DistrictRecord
	for _, r := range sel.Records {
		if r.Office == office {
			out = append(out, r)
		}
	}
	return out, nil
}

// Offices lists the covered offices of a level in sorted order.
func (d *ReconciledDataset) Offices(year int, level internal.Level) []string {
	sel, ok := d.selections[plans.YearLevel{Year: year, Level: level}]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(sel.Offices))
	for o := range sel.Offices {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Selections returns the reconciled levels ordered by level then year.
func (d *ReconciledDataset) Selections() []Selection {
	out := make([]Selection, 0, len(d.selections))
	for _, s := range d.selections {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return levelRank(out[i].Level) < levelRank(out[j].Level)
		}
		return out[i].Year < out[j].Year
	})
	return out
}

func (d *ReconciledDataset) Unavailable() []*internal.UnavailableError {
	var out []*internal.UnavailableError
	for _, s := range d.Selections() {
		out = append(out, s.Unavailable...)
	}
	return out
}

func levelRank(l internal.Level) int {
	for i, v := range internal.Levels {
		if v == l {
			return i
		}
	}
	return len(internal.Levels)
}
