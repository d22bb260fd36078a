package roster

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"districtvotes/internal"
	"districtvotes/internal/util"
)

//go:embed default_roster.yaml
var defaultRoster []byte

type Office struct {
	Name       string   `yaml:"name"`
	Candidates []string `yaml:"candidates"`
}

type Election struct {
	Year     int      `yaml:"year"`
	Keywords []string `yaml:"keywords"`
	Offices  []Office `yaml:"offices"`
}

type file struct {
	DefaultKeywords []string   `yaml:"default_keywords"`
	Elections       []Election `yaml:"elections"`
}

// Roster holds the known-candidate tables for every configured election. It is
// never modified after Parse returns.
type Roster struct {
	elections map[int]Election
}

func Default() *Roster {
	r, err := Parse(defaultRoster)
	if err != nil {
		panic(fmt.Sprintf("embedded roster: %v", err))
	}
	return r
}

func Load(path string) (*Roster, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(blob)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

func Parse(blob []byte) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(blob, &f); err != nil {
		return nil, err
	}

	r := &Roster{elections: map[int]Election{}}
	for _, e := range f.Elections {
		if e.Year <= 0 {
			return nil, fmt.Errorf("election with invalid year %d", e.Year)
		}
		if _, dup := r.elections[e.Year]; dup {
			return nil, fmt.Errorf("duplicate election year %d", e.Year)
		}
		if len(e.Keywords) == 0 {
			e.Keywords = f.DefaultKeywords
		}
		for _, o := range e.Offices {
			if strings.TrimSpace(o.Name) == "" {
				return nil, fmt.Errorf("election %d: office without name", e.Year)
			}
		}
		r.elections[e.Year] = cloneElection(e)
	}
	return r, nil
}

func (r *Roster) Election(year int) (Election, error) {
	e, ok := r.elections[year]
	if !ok {
		return Election{}, fmt.Errorf("%w: %d", internal.ErrNoRoster, year)
	}
	return cloneElection(e), nil
}

func (r *Roster) Years() []int {
	out := make([]int, 0, len(r.elections))
	for y := range r.elections {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func cloneElection(e Election) Election {
	out := Election{Year: e.Year, Keywords: append([]string(nil), e.Keywords...)}
	for _, o := range e.Offices {
		out.Offices = append(out.Offices, Office{Name: o.Name, Candidates: append([]string(nil), o.Candidates...)})
	}
	return out
}

// Index maps candidate surnames to the first office listing them.
type Index struct {
	year     int
	byName   map[string]string
	offices  []string
	keywords []string
}

func BuildIndex(e Election) *Index {
	idx := &Index{year: e.Year, byName: map[string]string{}, keywords: append([]string(nil), e.Keywords...)}
	for _, o := range e.Offices {
		idx.offices = append(idx.offices, o.Name)
		for _, c := range o.Candidates {
			key := util.NameKey(c)
			if key == "" {
				continue
			}
			if _, taken := idx.byName[key]; taken {
				continue
			}
			idx.byName[key] = o.Name
		}
	}
	return idx
}

func (i *Index) Year() int { return i.year }

func (i *Index) Lookup(candidate string) (string, bool) {
	office, ok := i.byName[util.NameKey(candidate)]
	return office, ok
}

func (i *Index) Offices() []string {
	return append([]string(nil), i.offices...)
}

func (i *Index) Keywords() []string {
	return append([]string(nil), i.keywords...)
}
