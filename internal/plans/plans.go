package plans

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"districtvotes/internal"
)

//go:embed default_plans.yaml
var defaultPlans []byte

type Source struct {
	Year          int                 `yaml:"year"`
	Level         internal.Level      `yaml:"level"`
	Plan          string              `yaml:"plan"`
	Kind          internal.SourceKind `yaml:"kind"`
	Path          string              `yaml:"path"`
	URL           string              `yaml:"url"`
	Authoritative bool                `yaml:"authoritative"`
	Priority      int                 `yaml:"priority"`
	Offices       []string            `yaml:"offices"`
	Incorrect     bool                `yaml:"incorrect"`
	Reason        string              `yaml:"reason"`
}

func (s Source) Document() internal.SourceDocument {
	return internal.SourceDocument{Year: s.Year, Level: s.Level, Plan: s.Plan, Kind: s.Kind, Path: s.Path, URL: s.URL}
}

func (s Source) ID() string {
	return s.Document().ID()
}

type Benchmark struct {
	Year       int            `yaml:"year"`
	Level      internal.Level `yaml:"level"`
	District   string         `yaml:"district"`
	Office     string         `yaml:"office"`
	Candidate  string         `yaml:"candidate"`
	Percentage float64        `yaml:"percentage"`
	Tolerance  float64        `yaml:"tolerance"`
}

type YearLevel struct {
	Year  int
	Level internal.Level
}

type file struct {
	Sources    []Source    `yaml:"sources"`
	Benchmarks []Benchmark `yaml:"benchmarks"`
}

type Catalog struct {
	sources    []Source
	benchmarks []Benchmark
}

func Default() *Catalog {
	c, err := Parse(defaultPlans)
	if err != nil {
		panic(fmt.Sprintf("embedded plan catalog: %v", err))
	}
	return c
}

func Load(path string) (*Catalog, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(blob)
	if err != nil {
		return nil, fmt.Errorf("plans %s: %w", path, err)
	}
	return c, nil
}

func Parse(blob []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(blob, &f); err != nil {
		return nil, err
	}

	c := &Catalog{}
	seen := map[string]struct{}{}
	for i, s := range f.Sources {
		level, err := internal.ParseLevel(string(s.Level))
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		s.Level = level
		s.Kind = internal.SourceKind(strings.ToLower(string(s.Kind)))
		switch s.Kind {
		case internal.KindRed206, internal.KindRed226, internal.KindVTD:
		case "":
			s.Kind = internal.KindRed206
		default:
			return nil, fmt.Errorf("source %d: unknown kind %q", i, s.Kind)
		}
		if s.Year <= 0 || strings.TrimSpace(s.Plan) == "" {
			return nil, fmt.Errorf("source %d: year and plan are required", i)
		}
		if strings.TrimSpace(s.Path) == "" {
			return nil, fmt.Errorf("source %s: path is required", s.ID())
		}
		if _, dup := seen[s.ID()]; dup {
			return nil, fmt.Errorf("duplicate source %s", s.ID())
		}
		seen[s.ID()] = struct{}{}
		s.Offices = append([]string(nil), s.Offices...)
		c.sources = append(c.sources, s)
	}

	for i, b := range f.Benchmarks {
		level, err := internal.ParseLevel(string(b.Level))
		if err != nil {
			return nil, fmt.Errorf("benchmark %d: %w", i, err)
		}
		b.Level = level
		if b.Tolerance <= 0 {
			b.Tolerance = 1
		}
		c.benchmarks = append(c.benchmarks, b)
	}
	return c, nil
}

// Candidates returns every source configured for the year and level, in the
// order the reconciler should try them. Incorrect sources are included so the
// caller can report why they were skipped.
func (c *Catalog) Candidates(year int, level internal.Level) []Source {
	var out []Source
	for _, s := range c.sources {
		if s.Year == year && s.Level == level {
			s.Offices = append([]string(nil), s.Offices...)
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Authoritative != out[j].Authoritative {
			return out[i].Authoritative
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}

func (c *Catalog) Sources() []Source {
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out
}

func (c *Catalog) Benchmarks(year int, level internal.Level) []Benchmark {
	var out []Benchmark
	for _, b := range c.benchmarks {
		if b.Year == year && b.Level == level {
			out = append(out, b)
		}
	}
	return out
}

// Pairs lists the distinct (year, level) combinations in the catalog.
func (c *Catalog) Pairs() []YearLevel {
	seen := map[YearLevel]struct{}{}
	var out []YearLevel
	for _, s := range c.sources {
		k := YearLevel{Year: s.Year, Level: s.Level}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Level < out[j].Level
	})
	return out
}
