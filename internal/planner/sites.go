package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"siteplan/internal/metrics"
	"siteplan/internal/model"
	"siteplan/internal/plan"
	"siteplan/internal/store"
	"siteplan/internal/webhooks"
)

// SitePatch holds the fields of a site update; nil fields are left unchanged.
type SitePatch struct {
	ClientName           *string           `json:"clientName"`
	Address              *string           `json:"address"`
	City                 *string           `json:"city"`
	AssignedConsultantID *int64            `json:"assignedConsultantId"`
	Status               *model.SiteStatus `json:"status"`
	Frequency            *model.Frequency  `json:"frequency"`
	LastVisited          *time.Time        `json:"lastVisited"`
	Location             *model.GeoPoint   `json:"location"`
	Hold                 *model.HoldInfo   `json:"hold"`
	Priority             *bool             `json:"priority"`
	PriorityNote         *string           `json:"priorityNote"`
	SiteGroupID          *string           `json:"siteGroupId"`
}

func (p SitePatch) apply(s model.Site) model.Site {
	if p.ClientName != nil {
		s.ClientName = *p.ClientName
	}
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.City != nil {
		s.City = *p.City
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Frequency != nil {
		s.Frequency = *p.Frequency
	}
	if p.LastVisited != nil {
		t := *p.LastVisited
		s.LastVisited = &t
	}
	if p.Location != nil {
		loc := *p.Location
		s.Location = &loc
	}
	if p.Hold != nil {
		h := *p.Hold
		s.Hold = &h
	}
	if p.Priority != nil {
		s.Priority = *p.Priority
	}
	if p.PriorityNote != nil {
		s.PriorityNote = *p.PriorityNote
	}
	if p.SiteGroupID != nil {
		s.SiteGroupID = *p.SiteGroupID
	}
	return s
}

// UpdateSite applies patch to the site. An ownership change is propagated to
// the whole site group. The returned map lists every ownership change made.
func (s *Service) UpdateSite(ctx context.Context, id int64, patch SitePatch) (model.Site, map[int64]int64, error) {
	if patch.AssignedConsultantID != nil && *patch.AssignedConsultantID != 0 {
		if err := s.requireConsultant(ctx, *patch.AssignedConsultantID); err != nil {
			return model.Site{}, nil, err
		}
	}
	s.mu.Lock()
	cur, err := s.store.GetSite(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return model.Site{}, nil, err
	}
	next := patch.apply(cur)
	// ownership goes through reassignLocked so the group follows
	next.AssignedConsultantID = cur.AssignedConsultantID
	updated, err := s.store.UpdateSite(ctx, next)
	if err != nil {
		s.mu.Unlock()
		return model.Site{}, nil, err
	}
	var changed map[int64]int64
	if patch.AssignedConsultantID != nil {
		changed, err = s.reassignLocked(ctx, []int64{id}, *patch.AssignedConsultantID)
		if err == nil {
			updated, err = s.store.GetSite(ctx, id)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return model.Site{}, nil, err
	}
	s.log.Info("site updated", zap.Int64("site", id), zap.Int("reassigned", len(changed)))
	s.announceReassignment(ctx, changed)
	return updated, changed, nil
}

// ReassignSites gives siteIDs, and every site sharing a group with them, to
// consultantID. Zero returns the sites to the unassigned pool.
func (s *Service) ReassignSites(ctx context.Context, siteIDs []int64, consultantID int64) (map[int64]int64, error) {
	if consultantID != 0 {
		if err := s.requireConsultant(ctx, consultantID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	changed, err := s.reassignLocked(ctx, siteIDs, consultantID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.log.Info("sites reassigned", zap.Int64("consultant", consultantID), zap.Int("requested", len(siteIDs)), zap.Int("changed", len(changed)))
	s.announceReassignment(ctx, changed)
	return changed, nil
}

// reassignLocked moves ownership and keeps live plans in step: a site leaves
// the previous owner's plan and lands in the new owner's todo when that
// consultant already has a plan.
func (s *Service) reassignLocked(ctx context.Context, siteIDs []int64, consultantID int64) (map[int64]int64, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[int64]model.Site, len(sites))
	for _, site := range sites {
		known[site.ID] = site
	}
	want := map[int64]int64{}
	for _, id := range siteIDs {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("site %d: %w", id, store.ErrNotFound)
		}
		want[id] = consultantID
	}
	changed := ownerChanges(sites, plan.ExpandGroups(sites, want))
	if len(changed) == 0 {
		return changed, nil
	}
	if err := s.store.AssignSites(ctx, changed); err != nil {
		return nil, fmt.Errorf("assign sites: %w", err)
	}

	if err := s.syncPlansLocked(ctx, known, changed); err != nil {
		return nil, err
	}
	metrics.SitesReassigned.Add(float64(len(changed)))
	return changed, nil
}

// syncPlansLocked moves every site in changed out of its previous owner's
// live plan and onto the front of the new owner's todo. Consultants without a
// stored plan are left alone; their plan is seeded from ownership later.
func (s *Service) syncPlansLocked(ctx context.Context, known map[int64]model.Site, changed map[int64]int64) error {
	touched := model.WeeklyPlanState{}
	get := func(cid int64) (model.WeeklyPlan, bool, error) {
		if p, ok := touched[cid]; ok {
			return p, true, nil
		}
		p, err := s.store.GetPlan(ctx, cid)
		if errors.Is(err, store.ErrNotFound) {
			return model.WeeklyPlan{}, false, nil
		}
		return p, err == nil, err
	}
	for _, sid := range sortedKeys(changed) {
		if prev := known[sid].AssignedConsultantID; prev != 0 {
			p, ok, err := get(prev)
			if err != nil {
				return err
			}
			if ok {
				if next, removed := plan.Remove(p, sid); removed {
					touched[prev] = next
				}
			}
		}
		if to := changed[sid]; to != 0 {
			p, ok, err := get(to)
			if err != nil {
				return err
			}
			if _, present := plan.Locate(p, sid); ok && !present {
				p = plan.Clone(p)
				p.Todo = append([]int64{sid}, p.Todo...)
				touched[to] = p
			}
		}
	}
	if len(touched) > 0 {
		if err := s.store.SavePlans(ctx, touched); err != nil {
			return fmt.Errorf("save plans: %w", err)
		}
	}
	return nil
}

func (s *Service) announceReassignment(ctx context.Context, changed map[int64]int64) {
	if len(changed) == 0 {
		return
	}
	perOwner := map[int64][]int64{}
	for sid, to := range changed {
		perOwner[to] = append(perOwner[to], sid)
	}
	for _, to := range sortedKeys(perOwner) {
		ids := perOwner[to]
		slices.Sort(ids)
		msg := ""
		if to != 0 {
			msg = fmt.Sprintf("%d site(s) were assigned to you", len(ids))
		}
		s.notify(ctx, to, msg, webhooks.EventSitesReassigned, map[string]any{
			"consultantId": to,
			"siteIds":      ids,
		})
	}
}
