package plan

import (
	"slices"

	"siteplan/internal/model"
)

// ExpandGroups extends a site -> consultant assignment to every site sharing a
// site group with an assigned site. Explicit entries always win; when two
// assigned sites of one group disagree the lower site id decides for the
// rest of the group.
func ExpandGroups(sites []model.Site, assignments map[int64]int64) map[int64]int64 {
	out := make(map[int64]int64, len(assignments))
	for id, to := range assignments {
		out[id] = to
	}
	groupOf := make(map[int64]string, len(sites))
	members := map[string][]int64{}
	for _, s := range sites {
		if s.SiteGroupID == "" {
			continue
		}
		groupOf[s.ID] = s.SiteGroupID
		members[s.SiteGroupID] = append(members[s.SiteGroupID], s.ID)
	}

	ids := make([]int64, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	done := map[string]bool{}
	for _, id := range ids {
		g, ok := groupOf[id]
		if !ok || done[g] {
			continue
		}
		done[g] = true
		for _, mate := range members[g] {
			if _, explicit := assignments[mate]; !explicit {
				out[mate] = assignments[id]
			}
		}
	}
	return out
}
