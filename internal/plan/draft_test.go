package plan

import (
	"reflect"
	"testing"
	"time"

	"siteplan/internal/model"
)

func alwaysDue(model.Site, time.Time) bool { return true }

func active(id, owner int64, city string, f model.Frequency) model.Site {
	return model.Site{ID: id, ClientName: "c", City: city, AssignedConsultantID: owner, Status: model.SiteActive, Frequency: f}
}

func TestGenerateDraftCapDropsOwnedOverflow(t *testing.T) {
	sites := []model.Site{
		active(1, 10, "Leeds", model.FrequencyWeekly),
		active(2, 10, "Leeds", model.FrequencyWeekly),
	}
	res := GenerateDraft(sites, DraftRequest{ConsultantIDs: []int64{10, 20}, MaxSitesPerConsultant: 1}, wednesday, alwaysDue)
	if got := res.Plans[10].Todo; !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("consultant 10 todo = %v", got)
	}
	if got := res.Plans[20].Todo; len(got) != 0 {
		t.Fatalf("overflow was redistributed to 20: %v", got)
	}
	if res.Eligible != 2 || res.Placed != 1 || !reflect.DeepEqual(res.Unplaced, []int64{2}) {
		t.Fatalf("result = %+v", res)
	}
}

func TestGenerateDraftBalancesPool(t *testing.T) {
	sites := []model.Site{
		active(1, 10, "", model.FrequencyWeekly),
		active(2, 0, "", model.FrequencyWeekly),
		active(3, 0, "", model.FrequencyWeekly),
		active(4, 0, "", model.FrequencyWeekly),
		active(5, 99, "", model.FrequencyWeekly), // owned by a non-target
	}
	res := GenerateDraft(sites, DraftRequest{ConsultantIDs: []int64{10, 20}, IncludeUnassigned: true}, wednesday, alwaysDue)
	if got := res.Plans[10].Todo; !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Fatalf("10 todo = %v", got)
	}
	if got := res.Plans[20].Todo; !reflect.DeepEqual(got, []int64{2, 4}) {
		t.Fatalf("20 todo = %v", got)
	}
	if res.Eligible != 4 {
		t.Fatalf("eligible = %d", res.Eligible)
	}
}

func TestGenerateDraftPoolIgnoredWithoutFlag(t *testing.T) {
	sites := []model.Site{active(1, 0, "", model.FrequencyWeekly)}
	res := GenerateDraft(sites, DraftRequest{ConsultantIDs: []int64{10}}, wednesday, alwaysDue)
	if res.Eligible != 0 || len(res.Plans[10].Todo) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestGenerateDraftFilters(t *testing.T) {
	held := active(4, 10, "Leeds", model.FrequencyWeekly)
	held.Status = model.SiteOnHold
	sites := []model.Site{
		active(1, 10, "Leeds", model.FrequencyWeekly),
		active(2, 10, "York", model.FrequencyWeekly),
		active(3, 10, "leeds", model.FrequencyMonthly),
		held,
		active(5, 10, "Leeds", model.FrequencyWeekly),
	}
	notFive := func(s model.Site, _ time.Time) bool { return s.ID != 5 }

	res := GenerateDraft(sites, DraftRequest{ConsultantIDs: []int64{10}, City: "Leeds", Frequency: "Weekly"}, wednesday, notFive)
	if got := res.Plans[10].Todo; !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("filtered todo = %v", got)
	}
	res = GenerateDraft(sites, DraftRequest{ConsultantIDs: []int64{10}, City: FilterAll, Frequency: FilterAll}, wednesday, notFive)
	if got := res.Plans[10].Todo; !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Fatalf("unfiltered todo = %v", got)
	}
}

func TestGenerateDraftEmpty(t *testing.T) {
	res := GenerateDraft(nil, DraftRequest{ConsultantIDs: []int64{10, 20}}, wednesday, alwaysDue)
	if len(res.Plans) != 2 || res.Eligible != 0 || res.Placed != 0 {
		t.Fatalf("result = %+v", res)
	}
	for id, p := range res.Plans {
		if len(p.Todo) != 0 || len(p.Planned) != len(model.Weekdays) {
			t.Fatalf("plan %d = %+v", id, p)
		}
	}
}

func TestGenerateDraftGroupsStayTogether(t *testing.T) {
	a := active(1, 20, "", model.FrequencyWeekly)
	a.SiteGroupID = "g1"
	b := active(2, 0, "", model.FrequencyWeekly)
	b.SiteGroupID = "g1"
	c := active(3, 0, "", model.FrequencyWeekly)
	res := GenerateDraft([]model.Site{a, b, c}, DraftRequest{ConsultantIDs: []int64{10, 20}, IncludeUnassigned: true}, wednesday, alwaysDue)
	if got := res.Plans[20].Todo; !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("20 todo = %v, want grouped [1 2]", got)
	}
	if got := res.Plans[10].Todo; !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("10 todo = %v", got)
	}
}

func TestOwners(t *testing.T) {
	p1 := New()
	p1.Todo = []int64{1}
	p1.Planned[model.Monday] = []int64{2}
	p2 := New()
	p2.Todo = []int64{2, 3}
	got := Owners(model.WeeklyPlanState{20: p2, 10: p1})
	want := map[int64]int64{1: 10, 2: 10, 3: 20}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("owners = %v, want %v", got, want)
	}
}

func TestGenerateDraftPoolOverflowIsUnplaced(t *testing.T) {
	grouped := func(s model.Site, group string) model.Site {
		s.SiteGroupID = group
		return s
	}
	tests := []struct {
		name     string
		sites    []model.Site
		want10   []int64
		want20   []int64
		unplaced []int64
	}{
		{
			name: "every target at cap",
			sites: []model.Site{
				active(1, 0, "", model.FrequencyWeekly),
				active(2, 0, "", model.FrequencyWeekly),
				active(3, 0, "", model.FrequencyWeekly),
			},
			want10:   []int64{1},
			want20:   []int64{2},
			unplaced: []int64{3},
		},
		{
			name: "group mate of a capped owner",
			sites: []model.Site{
				grouped(active(1, 10, "", model.FrequencyWeekly), "mall"),
				grouped(active(2, 0, "", model.FrequencyWeekly), "mall"),
				active(3, 0, "", model.FrequencyWeekly),
			},
			want10:   []int64{1},
			want20:   []int64{3},
			unplaced: []int64{2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := DraftRequest{ConsultantIDs: []int64{10, 20}, IncludeUnassigned: true, MaxSitesPerConsultant: 1}
			res := GenerateDraft(tc.sites, req, wednesday, alwaysDue)
			if got := res.Plans[10].Todo; !reflect.DeepEqual(got, tc.want10) {
				t.Fatalf("10 todo = %v, want %v", got, tc.want10)
			}
			if got := res.Plans[20].Todo; !reflect.DeepEqual(got, tc.want20) {
				t.Fatalf("20 todo = %v, want %v", got, tc.want20)
			}
			if !reflect.DeepEqual(res.Unplaced, tc.unplaced) {
				t.Fatalf("unplaced = %v, want %v", res.Unplaced, tc.unplaced)
			}
			if res.Eligible != 3 || res.Placed != 2 {
				t.Fatalf("eligible=%d placed=%d", res.Eligible, res.Placed)
			}
		})
	}
}
