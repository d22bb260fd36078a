package pipeline

import (
	"sort"

	"districtvotes/internal"
	"districtvotes/internal/plans"
	"districtvotes/internal/storage"
)

// StoredDataset rebuilds the reconciled view from persisted records. Each
// office maps back to the catalogued source of its plan; a plan the catalog
// no longer lists keeps the plan name as its source.
func StoredDataset(db *storage.DB, catalog *plans.Catalog) (*ReconciledDataset, []internal.CoverageReport, error) {
	var (
		selections []Selection
		reports    []internal.CoverageReport
	)
	for _, level := range internal.Levels {
		records, err := db.ListRecords(0, level)
		if err != nil {
			return nil, nil, err
		}
		byYear := map[int][]internal.DistrictRecord{}
		for _, r := range records {
			byYear[r.Year] = append(byYear[r.Year], r)
		}
		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)

		for _, y := range years {
			sourceOf := map[string]string{}
			if catalog != nil {
				for _, src := range catalog.Candidates(y, level) {
					if _, ok := sourceOf[src.Plan]; !ok {
						sourceOf[src.Plan] = src.ID()
					}
				}
			}
			sel := Selection{Year: y, Level: level, Offices: map[string]string{}, Records: byYear[y]}
			for _, r := range sel.Records {
				id, ok := sourceOf[r.Plan]
				if !ok {
					id = r.Plan
				}
				sel.Offices[r.Office] = id
			}
			selections = append(selections, sel)
			reports = append(reports, ValidateSelection(sel))
		}
	}
	return NewReconciledDataset(selections...), reports, nil
}
