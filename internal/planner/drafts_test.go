package planner

import (
	"context"
	"errors"
	"testing"

	"siteplan/internal/model"
	"siteplan/internal/notify"
	"siteplan/internal/plan"
)

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, m, b := newTestService(t)
	all := b.Subscribe(notify.TopicAll)
	mustUser(t, m, model.User{ID: 1, Name: "Ana"})
	mustUser(t, m, model.User{ID: 2, Name: "Ben"})
	mustSite(t, m, model.Site{ID: 10, ClientName: "A", AssignedConsultantID: 1})
	mustSite(t, m, model.Site{ID: 11, ClientName: "B", AssignedConsultantID: 1})
	mustSite(t, m, model.Site{ID: 20, ClientName: "Pool 1", SiteGroupID: "mall"})
	mustSite(t, m, model.Site{ID: 21, ClientName: "Pool 2"})
	// inactive group mate still follows the group on confirm
	mustSite(t, m, model.Site{ID: 22, ClientName: "Pool 3", SiteGroupID: "mall", Status: model.SiteNotActive})

	if _, err := svc.GetDraft(); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("err = %v, want ErrNoDraft", err)
	}
	d, err := svc.GenerateDraft(ctx, plan.DraftRequest{ConsultantIDs: []int64{1, 2}, IncludeUnassigned: true, MaxSitesPerConsultant: 2})
	if err != nil {
		t.Fatal(err)
	}
	if d.Eligible != 4 || d.Placed != 4 || len(d.Unplaced) != 0 {
		t.Fatalf("draft = %+v", d)
	}
	if got := d.Plans[2].Todo; len(got) != 2 {
		t.Fatalf("consultant 2 todo = %v", got)
	}

	// the returned draft is a copy
	d.Plans[1] = plan.New()
	again, _ := svc.GetDraft()
	if len(again.Plans[1].Todo) != 2 {
		t.Fatalf("draft mutated through returned copy: %+v", again.Plans[1])
	}

	if _, err := svc.UpdateDraftPlan(3, plan.New()); !errors.Is(err, ErrUnknownConsultant) {
		t.Fatalf("err = %v, want ErrUnknownConsultant", err)
	}
	edited := plan.Clone(again.Plans[1])
	edited.Todo = []int64{10}
	edited.Planned[model.Thursday] = []int64{11}
	if _, err := svc.UpdateDraftPlan(1, edited); err != nil {
		t.Fatal(err)
	}

	confirmed, err := svc.ConfirmDraft(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.ID != d.ID {
		t.Fatalf("confirmed %s, generated %s", confirmed.ID, d.ID)
	}
	live, _ := m.GetPlan(ctx, 1)
	if len(live.Planned[model.Thursday]) != 1 || live.Planned[model.Thursday][0] != 11 {
		t.Fatalf("live plan 1 = %+v", live)
	}
	for _, id := range []int64{20, 21, 22} {
		site, _ := m.GetSite(ctx, id)
		if site.AssignedConsultantID != 2 {
			t.Fatalf("site %d owner = %d, want 2", id, site.AssignedConsultantID)
		}
	}
	if _, err := svc.GetDraft(); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("draft still pending after confirm: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("no events published on confirm")
	}
	notes, _ := m.ListNotifications(ctx, 2, 10)
	if len(notes) != 1 {
		t.Fatalf("notifications for 2 = %+v", notes)
	}
}

func TestGenerateDraftOverwritesAndDiscard(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestService(t)
	mustUser(t, m, model.User{ID: 1, Name: "Ana"})

	first, err := svc.GenerateDraft(ctx, plan.DraftRequest{ConsultantIDs: []int64{1}})
	if err != nil {
		t.Fatal(err)
	}
	if first.Eligible != 0 || len(first.Plans) != 1 {
		t.Fatalf("empty draft = %+v", first)
	}
	second, _ := svc.GenerateDraft(ctx, plan.DraftRequest{ConsultantIDs: []int64{1}})
	cur, _ := svc.GetDraft()
	if cur.ID != second.ID || cur.ID == first.ID {
		t.Fatalf("pending draft = %s, want %s", cur.ID, second.ID)
	}
	if err := svc.DiscardDraft(); err != nil {
		t.Fatal(err)
	}
	if err := svc.DiscardDraft(); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("err = %v, want ErrNoDraft", err)
	}
	if _, err := svc.ConfirmDraft(ctx); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("err = %v, want ErrNoDraft", err)
	}
	if _, err := svc.GenerateDraft(ctx, plan.DraftRequest{ConsultantIDs: []int64{7}}); !errors.Is(err, ErrUnknownConsultant) {
		t.Fatalf("err = %v, want ErrUnknownConsultant", err)
	}
}

func TestReassignSitesPropagatesGroupAndPlans(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestService(t)
	mustUser(t, m, model.User{ID: 1, Name: "Ana"})
	mustUser(t, m, model.User{ID: 2, Name: "Ben"})
	mustSite(t, m, model.Site{ID: 10, ClientName: "Tower A", AssignedConsultantID: 1, SiteGroupID: "tower"})
	mustSite(t, m, model.Site{ID: 11, ClientName: "Tower B", AssignedConsultantID: 1, SiteGroupID: "tower"})
	mustSite(t, m, model.Site{ID: 12, ClientName: "Bakery", AssignedConsultantID: 1})
	mustSite(t, m, model.Site{ID: 13, ClientName: "Cafe", AssignedConsultantID: 2})

	if _, err := svc.EnsurePlan(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EnsurePlan(ctx, 2); err != nil {
		t.Fatal(err)
	}
	changed, err := svc.ReassignSites(ctx, []int64{10}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 2 || changed[10] != 2 || changed[11] != 2 {
		t.Fatalf("changed = %v", changed)
	}
	p1, _ := m.GetPlan(ctx, 1)
	if len(plan.SiteIDs(p1)) != 1 {
		t.Fatalf("plan 1 = %+v", p1)
	}
	p2, _ := m.GetPlan(ctx, 2)
	if len(p2.Todo) != 3 {
		t.Fatalf("plan 2 = %+v", p2)
	}
	if err := plan.Validate(p2); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ReassignSites(ctx, []int64{404}, 2); err == nil {
		t.Fatal("expected error for unknown site")
	}
	if _, err := svc.ReassignSites(ctx, []int64{12}, 9); !errors.Is(err, ErrUnknownConsultant) {
		t.Fatalf("err = %v, want ErrUnknownConsultant", err)
	}
}

func TestUpdateSitePatchAndOwnership(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestService(t)
	mustUser(t, m, model.User{ID: 1, Name: "Ana"})
	mustUser(t, m, model.User{ID: 2, Name: "Ben"})
	mustSite(t, m, model.Site{ID: 10, ClientName: "Tower A", AssignedConsultantID: 1, SiteGroupID: "tower"})
	mustSite(t, m, model.Site{ID: 11, ClientName: "Tower B", AssignedConsultantID: 1, SiteGroupID: "tower"})

	hold := model.SiteOnHold
	site, changed, err := svc.UpdateSite(ctx, 10, SitePatch{Status: &hold})
	if err != nil || site.Status != model.SiteOnHold || len(changed) != 0 {
		t.Fatalf("status patch = %+v, %v, %v", site, changed, err)
	}

	owner := int64(2)
	site, changed, err = svc.UpdateSite(ctx, 11, SitePatch{AssignedConsultantID: &owner})
	if err != nil {
		t.Fatal(err)
	}
	if site.AssignedConsultantID != 2 || len(changed) != 2 {
		t.Fatalf("owner patch = %+v, %v", site, changed)
	}
	mate, _ := m.GetSite(ctx, 10)
	if mate.AssignedConsultantID != 2 || mate.Status != model.SiteOnHold {
		t.Fatalf("group mate = %+v", mate)
	}
}

func TestConfirmDraftPullsGroupMateOutOfLivePlan(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestService(t)
	mustUser(t, m, model.User{ID: 1, Name: "Ana"})
	mustUser(t, m, model.User{ID: 2, Name: "Ben"})
	mustSite(t, m, model.Site{ID: 10, ClientName: "Tower lobby", SiteGroupID: "tower"})
	mustSite(t, m, model.Site{ID: 11, ClientName: "Tower cafe", SiteGroupID: "tower", AssignedConsultantID: 2})
	if _, err := svc.EnsurePlan(ctx, 2); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GenerateDraft(ctx, plan.DraftRequest{ConsultantIDs: []int64{1}, IncludeUnassigned: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ConfirmDraft(ctx); err != nil {
		t.Fatal(err)
	}

	site, _ := m.GetSite(ctx, 11)
	if site.AssignedConsultantID != 1 {
		t.Fatalf("site 11 owner = %d, want 1", site.AssignedConsultantID)
	}
	old, _ := m.GetPlan(ctx, 2)
	if _, ok := plan.Locate(old, 11); ok {
		t.Fatalf("site 11 still in previous owner's plan: %+v", old)
	}
	live, _ := m.GetPlan(ctx, 1)
	for _, id := range []int64{10, 11} {
		if _, ok := plan.Locate(live, id); !ok {
			t.Fatalf("site %d missing from new owner's plan: %+v", id, live)
		}
	}
}
