package pipeline

import (
	"fmt"
	"math"

	"districtvotes/internal"
	"districtvotes/internal/plans"
	"districtvotes/internal/util"
)

// BenchmarkResult compares one extracted percentage with a published figure.
type BenchmarkResult struct {
	Benchmark plans.Benchmark
	Found     bool
	Got       float64
	Deviation float64
	Passed    bool
}

func (r BenchmarkResult) String() string {
	b := r.Benchmark
	if !r.Found {
		return fmt.Sprintf("%s %s %s: not found", b.District, b.Office, b.Candidate)
	}
	return fmt.Sprintf("%s %s %s: got %.1f want %.1f (±%.1f)", b.District, b.Office, b.Candidate, r.Got, b.Percentage, b.Tolerance)
}

// Verify checks records against known published results. A benchmark whose
// race is absent from the records is reported but does not fail; a present
// race outside tolerance marks the source as structurally wrong.
func Verify(records []internal.DistrictRecord, benchmarks []plans.Benchmark) ([]BenchmarkResult, bool) {
	type key struct{ district, office, candidate string }
	byKey := make(map[key]internal.DistrictRecord, len(records))
	for _, r := range records {
		k := key{r.District, r.Office, util.NameKey(r.Candidate)}
		if _, ok := byKey[k]; !ok {
			byKey[k] = r
		}
	}

	failed := false
	out := make([]BenchmarkResult, 0, len(benchmarks))
	for _, b := range benchmarks {
		res := BenchmarkResult{Benchmark: b}
		rec, ok := byKey[key{b.District, b.Office, util.NameKey(b.Candidate)}]
		if ok && rec.Percentage != nil {
			res.Found = true
			res.Got = *rec.Percentage
			res.Deviation = math.Abs(res.Got - b.Percentage)
			res.Passed = res.Deviation <= b.Tolerance
			if !res.Passed {
				failed = true
			}
		}
		out = append(out, res)
	}
	return out, failed
}
