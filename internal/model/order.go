package model

import "sort"

// SortGatherings orders gatherings by relevance, highest first.
func SortGatherings(gs []Gathering) {
	sort.SliceStable(gs, func(i, j int) bool {
		return gs[i].RelevanceScore > gs[j].RelevanceScore
	})
}

// SortCompanies orders exceptional and high-priority leads first, then
// qualified, then the rest, by qualification score within each bucket.
func SortCompanies(cs []Company) {
	sort.SliceStable(cs, func(i, j int) bool {
		if bi, bj := cs[i].LeadPriority.Bucket(), cs[j].LeadPriority.Bucket(); bi != bj {
			return bi < bj
		}
		return cs[i].QualificationScore > cs[j].QualificationScore
	})
}

// SortStakeholders orders by priority tier, then decision-maker score.
func SortStakeholders(ss []Stakeholder) {
	sort.SliceStable(ss, func(i, j int) bool {
		if ri, rj := ss[i].Priority.Rank(), ss[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return ss[i].DecisionMakerScore > ss[j].DecisionMakerScore
	})
}
