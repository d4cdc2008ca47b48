package kpi

import (
	"fmt"
	"sort"
)

// Aggregate orders, groups, and packages validated results into the final
// report model. Within a group, KPIs appear in registry (configuration)
// order. Exactly one result survives per (KPI, group/period): when the
// pipeline produced duplicates — duplicate raw records, typically — the
// later one wins and carries a FlagDuplicateSuppressed flag recording the
// drop. Aggregation is idempotent: aggregating an already aggregated
// result set yields identical output.
func Aggregate(results []Result, reg *Registry) (*Report, error) {
	type slot struct {
		result     Result
		suppressed int
	}

	// Later results overwrite earlier ones per (KPI, key).
	slots := make(map[GroupKey]map[string]*slot)
	for _, r := range results {
		if _, err := reg.Get(r.KPI); err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
		byID := slots[r.Key]
		if byID == nil {
			byID = make(map[string]*slot)
			slots[r.Key] = byID
		}
		if existing, ok := byID[r.KPI]; ok {
			suppressed := existing.suppressed + 1
			byID[r.KPI] = &slot{result: r, suppressed: suppressed}
			continue
		}
		byID[r.KPI] = &slot{result: r}
	}

	keys := make([]GroupKey, 0, len(slots))
	for key := range slots {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Group != keys[j].Group {
			return keys[i].Group < keys[j].Group
		}
		return PeriodBefore(keys[i].Period, keys[j].Period)
	})

	report := &Report{
		Summary: Summary{
			TierCounts:     make(map[string]int),
			SeverityCounts: make(map[Severity]int),
		},
	}

	for _, key := range keys {
		group := GroupReport{Key: key}
		for _, def := range reg.All() {
			s, ok := slots[key][def.ID]
			if !ok {
				continue
			}
			r := s.result
			if s.suppressed > 0 && !r.HasFlag(FlagDuplicateSuppressed) {
				r.Flags = append(r.Flags, Flag{
					Kind:     FlagDuplicateSuppressed,
					Severity: SeverityWarning,
					Detail:   fmt.Sprintf("%d earlier duplicate result(s) dropped, later record wins", s.suppressed),
				})
			}
			group.Results = append(group.Results, r)

			if r.Tier != "" {
				report.Summary.TierCounts[r.Tier]++
			}
			for _, f := range r.Flags {
				report.Summary.SeverityCounts[f.Severity]++
			}
		}
		report.Groups = append(report.Groups, group)
		report.Summary.Groups = append(report.Summary.Groups, key)
	}

	return report, nil
}
