package plan

import (
	"slices"
	"strings"
	"time"

	"siteplan/internal/model"
)

// FilterAll disables the city or frequency filter of a draft request.
const FilterAll = "all"

// DraftRequest selects which sites are distributed and to whom.
type DraftRequest struct {
	ConsultantIDs         []int64 `json:"consultantIds"`
	IncludeUnassigned     bool    `json:"includeUnassigned"`
	City                  string  `json:"city,omitempty"`
	Frequency             string  `json:"frequency,omitempty"`
	MaxSitesPerConsultant int     `json:"maxSitesPerConsultant,omitempty"` // <= 0 means no cap
}

// DraftResult is a generated draft plus the bookkeeping shown to the reviewer.
type DraftResult struct {
	Plans    model.WeeklyPlanState `json:"plans"`
	Eligible int                   `json:"eligible"`
	Placed   int                   `json:"placed"`
	Unplaced []int64               `json:"unplaced"`
}

// DuePredicate reports whether a site needs a visit on the given day.
type DuePredicate func(site model.Site, today time.Time) bool

// GenerateDraft distributes the eligible sites across the requested
// consultants. A site owned by a target stays with that owner or is dropped
// when the owner is at cap. Pool sites go to the least loaded target under
// cap, first in request order on ties, except that a pool site whose group is
// already placed follows its group.
func GenerateDraft(sites []model.Site, req DraftRequest, today time.Time, isDue DuePredicate) DraftResult {
	targets := dedupe(req.ConsultantIDs)
	res := DraftResult{Plans: make(model.WeeklyPlanState, len(targets)), Unplaced: []int64{}}
	isTarget := make(map[int64]bool, len(targets))
	for _, id := range targets {
		res.Plans[id] = New()
		isTarget[id] = true
	}
	if len(targets) == 0 {
		return res
	}

	var owned, pool []model.Site
	for _, s := range sites {
		if !eligible(s, req, today, isDue) {
			continue
		}
		switch {
		case isTarget[s.AssignedConsultantID]:
			owned = append(owned, s)
		case s.AssignedConsultantID == 0 && req.IncludeUnassigned:
			pool = append(pool, s)
		}
	}
	res.Eligible = len(owned) + len(pool)

	load := make(map[int64]int, len(targets))
	groupOwner := map[string]int64{}
	atCap := func(id int64) bool {
		return req.MaxSitesPerConsultant > 0 && load[id] >= req.MaxSitesPerConsultant
	}
	assign := func(s model.Site, to int64) {
		p := res.Plans[to]
		p.Todo = append(p.Todo, s.ID)
		res.Plans[to] = p
		load[to]++
		res.Placed++
		if s.SiteGroupID != "" {
			if _, ok := groupOwner[s.SiteGroupID]; !ok {
				groupOwner[s.SiteGroupID] = to
			}
		}
	}

	for _, s := range owned {
		if atCap(s.AssignedConsultantID) {
			res.Unplaced = append(res.Unplaced, s.ID)
			continue
		}
		assign(s, s.AssignedConsultantID)
	}
	for _, s := range pool {
		if owner, ok := groupOwner[s.SiteGroupID]; ok && s.SiteGroupID != "" {
			if atCap(owner) {
				res.Unplaced = append(res.Unplaced, s.ID)
				continue
			}
			assign(s, owner)
			continue
		}
		best, found := int64(0), false
		for _, id := range targets {
			if atCap(id) {
				continue
			}
			if !found || load[id] < load[best] {
				best, found = id, true
			}
		}
		if !found {
			res.Unplaced = append(res.Unplaced, s.ID)
			continue
		}
		assign(s, best)
	}
	return res
}

// Owners maps every site referenced by the plans to the consultant whose plan
// holds it. A site present in several plans belongs to the lowest consultant id.
func Owners(plans model.WeeklyPlanState) map[int64]int64 {
	ids := make([]int64, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := map[int64]int64{}
	for _, cid := range ids {
		for _, sid := range SiteIDs(plans[cid]) {
			if _, ok := out[sid]; !ok {
				out[sid] = cid
			}
		}
	}
	return out
}

func eligible(s model.Site, req DraftRequest, today time.Time, isDue DuePredicate) bool {
	if s.Status != model.SiteActive {
		return false
	}
	if req.City != "" && !strings.EqualFold(req.City, FilterAll) && !strings.EqualFold(strings.TrimSpace(s.City), strings.TrimSpace(req.City)) {
		return false
	}
	if req.Frequency != "" && !strings.EqualFold(req.Frequency, FilterAll) && !strings.EqualFold(string(s.Frequency), req.Frequency) {
		return false
	}
	return isDue == nil || isDue(s, today)
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
