package plan

import (
	"slices"
	"strings"
	"time"

	"siteplan/internal/model"
	"siteplan/internal/schedule"
)

// CompletedSite is a site closed this week together with the report that closed it.
type CompletedSite struct {
	model.Site
	Report model.Report `json:"report"`
}

// Derived is the effective weekly view of one consultant's plan.
type Derived struct {
	ConsultantID int64                      `json:"consultantId"`
	WeekStart    time.Time                  `json:"weekStart"`
	Todo         []model.Site               `json:"todo"`
	Planned      map[model.Day][]model.Site `json:"planned"`
	OnHold       []model.Site               `json:"onHold"`
	Completed    []CompletedSite            `json:"completed"`
	Revisits     []model.Site               `json:"revisits"`
	RevisitsSet  map[int64]bool             `json:"revisitsSet"`
}

// Derive classifies every site referenced by the raw plan using the current
// site records and this week's reports for the consultant:
//
//  1. a completing report this week        -> Completed
//  2. site status Completed                -> dropped
//  3. a Site Not Active report this week   -> Revisits
//  4. site status On Hold                  -> OnHold
//  5. otherwise                            -> the raw bucket
//
// Ids with no matching site are stale and dropped. Todo and Revisits are sorted
// by frequency weight then client name; weekday lists keep plan order.
func Derive(consultantID int64, raw model.WeeklyPlan, sites []model.Site, reports []model.Report, now time.Time) Derived {
	week := schedule.WeekOf(now)
	out := Derived{
		ConsultantID: consultantID,
		WeekStart:    week.Start,
		Todo:         []model.Site{},
		Planned:      make(map[model.Day][]model.Site, len(model.Weekdays)),
		OnHold:       []model.Site{},
		Completed:    []CompletedSite{},
		Revisits:     []model.Site{},
		RevisitsSet:  map[int64]bool{},
	}
	for _, d := range model.Weekdays {
		out.Planned[d] = []model.Site{}
	}

	byID := make(map[int64]model.Site, len(sites))
	for _, s := range sites {
		byID[s.ID] = s
	}
	completing, notActive := weekReports(consultantID, reports, week)

	seen := map[int64]bool{}
	place := func(id int64, bucket Bucket) {
		if seen[id] {
			return
		}
		seen[id] = true
		site, ok := byID[id]
		if !ok {
			return
		}
		if r, ok := completing[id]; ok {
			out.Completed = append(out.Completed, CompletedSite{Site: site, Report: r})
			return
		}
		if site.Status == model.SiteCompleted {
			return
		}
		if notActive[id] {
			out.Revisits = append(out.Revisits, site)
			out.RevisitsSet[id] = true
			return
		}
		if site.Status == model.SiteOnHold {
			out.OnHold = append(out.OnHold, site)
			return
		}
		if d, ok := bucket.Day(); ok {
			out.Planned[d] = append(out.Planned[d], site)
			return
		}
		out.Todo = append(out.Todo, site)
	}
	for _, id := range raw.Todo {
		place(id, BucketTodo)
	}
	for _, d := range model.Weekdays {
		for _, id := range raw.Planned[d] {
			place(id, DayBucket(d))
		}
	}
	SortByUrgency(out.Todo)
	SortByUrgency(out.Revisits)
	return out
}

// CompletedThisWeek returns the ids of sites with a completing report by the
// consultant during the week containing now.
func CompletedThisWeek(consultantID int64, reports []model.Report, now time.Time) map[int64]bool {
	completing, _ := weekReports(consultantID, reports, schedule.WeekOf(now))
	out := make(map[int64]bool, len(completing))
	for id := range completing {
		out[id] = true
	}
	return out
}

// SortByUrgency orders sites by frequency weight, then client name.
func SortByUrgency(sites []model.Site) {
	slices.SortStableFunc(sites, func(a, b model.Site) int {
		wa, wb := schedule.FrequencyWeight(a.Frequency), schedule.FrequencyWeight(b.Frequency)
		if wa != wb {
			return wa - wb
		}
		return strings.Compare(strings.ToLower(a.ClientName), strings.ToLower(b.ClientName))
	})
}

// weekReports indexes the consultant's reports inside the week. For each site
// it keeps the latest completing report; Site Not Active reports only mark the
// site as a revisit candidate.
func weekReports(consultantID int64, reports []model.Report, week schedule.Week) (map[int64]model.Report, map[int64]bool) {
	completing := map[int64]model.Report{}
	notActive := map[int64]bool{}
	for _, r := range reports {
		if r.ConsultantID != consultantID || !week.Contains(r.VisitDate) {
			continue
		}
		switch {
		case r.Status.Completes():
			if prev, ok := completing[r.SiteID]; !ok || !r.VisitDate.Before(prev.VisitDate) {
				completing[r.SiteID] = r
			}
		case r.Status == model.ReportSiteNotActive:
			notActive[r.SiteID] = true
		}
	}
	return completing, notActive
}
