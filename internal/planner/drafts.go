package planner

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"siteplan/internal/metrics"
	"siteplan/internal/model"
	"siteplan/internal/plan"
	"siteplan/internal/schedule"
	"siteplan/internal/webhooks"
)

// Draft is the single pending bulk plan awaiting review.
type Draft struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Request   plan.DraftRequest `json:"request"`
	plan.DraftResult
}

func (d *Draft) clone() Draft {
	out := *d
	out.Request.ConsultantIDs = slices.Clone(d.Request.ConsultantIDs)
	out.Unplaced = slices.Clone(d.Unplaced)
	out.Plans = make(model.WeeklyPlanState, len(d.Plans))
	for id, p := range d.Plans {
		out.Plans[id] = plan.Clone(p)
	}
	return out
}

// GenerateDraft distributes the due Active sites matching req across the
// requested consultants and keeps the result as the pending draft,
// replacing any earlier one.
func (s *Service) GenerateDraft(ctx context.Context, req plan.DraftRequest) (Draft, error) {
	for _, id := range req.ConsultantIDs {
		if err := s.requireConsultant(ctx, id); err != nil {
			return Draft{}, err
		}
	}
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return Draft{}, err
	}
	now := s.now()
	res := plan.GenerateDraft(sites, req, now, schedule.IsSiteDue)

	d := &Draft{ID: uuid.New().String(), CreatedAt: now, Request: req, DraftResult: res}
	s.mu.Lock()
	replaced := s.draft != nil
	s.draft = d
	out := d.clone()
	s.mu.Unlock()

	metrics.DraftsGenerated.Inc()
	metrics.DraftSitesUnplaced.Add(float64(len(res.Unplaced)))
	s.log.Info("draft generated",
		zap.String("draft", d.ID),
		zap.Int("consultants", len(res.Plans)),
		zap.Int("eligible", res.Eligible),
		zap.Int("placed", res.Placed),
		zap.Int("unplaced", len(res.Unplaced)),
		zap.Bool("replaced", replaced),
	)
	return out, nil
}

func (s *Service) GetDraft() (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, ErrNoDraft
	}
	return s.draft.clone(), nil
}

// UpdateDraftPlan replaces one consultant's plan inside the pending draft.
func (s *Service) UpdateDraftPlan(consultantID int64, p model.WeeklyPlan) (Draft, error) {
	if err := plan.Validate(p); err != nil {
		return Draft{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, ErrNoDraft
	}
	if _, ok := s.draft.Plans[consultantID]; !ok {
		return Draft{}, fmt.Errorf("%w: %d is not part of the draft", ErrUnknownConsultant, consultantID)
	}
	s.draft.Plans[consultantID] = plan.Clone(p)
	return s.draft.clone(), nil
}

// ConfirmDraft makes the pending draft live: every drafted consultant's plan
// is replaced and each drafted site, together with its group, is assigned to
// the consultant whose draft holds it.
func (s *Service) ConfirmDraft(ctx context.Context) (Draft, error) {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return Draft{}, ErrNoDraft
	}
	d := s.draft.clone()
	changed, err := s.confirmLocked(ctx, d)
	if err == nil {
		s.draft = nil
	}
	s.mu.Unlock()
	if err != nil {
		return Draft{}, err
	}

	metrics.SitesReassigned.Add(float64(len(changed)))
	s.log.Info("draft confirmed", zap.String("draft", d.ID), zap.Int("consultants", len(d.Plans)), zap.Int("reassigned", len(changed)))
	for _, id := range sortedKeys(d.Plans) {
		n := len(plan.SiteIDs(d.Plans[id]))
		s.notify(ctx, id, fmt.Sprintf("A new weekly plan with %d sites was assigned to you", n), webhooks.EventPlanUpdated, map[string]any{
			"consultantId": id,
			"draftId":      d.ID,
		})
	}
	s.notify(ctx, 0, "", webhooks.EventDraftConfirmed, map[string]any{
		"draftId":     d.ID,
		"consultants": sortedKeys(d.Plans),
		"placed":      d.Placed,
		"unplaced":    d.Unplaced,
		"reassigned":  changed,
	})
	return d, nil
}

func (s *Service) confirmLocked(ctx context.Context, d Draft) (map[int64]int64, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePlans(ctx, d.Plans); err != nil {
		return nil, fmt.Errorf("save drafted plans: %w", err)
	}
	changed := ownerChanges(sites, plan.ExpandGroups(sites, plan.Owners(d.Plans)))
	if len(changed) == 0 {
		return changed, nil
	}
	if err := s.store.AssignSites(ctx, changed); err != nil {
		return nil, fmt.Errorf("assign drafted sites: %w", err)
	}
	known := make(map[int64]model.Site, len(sites))
	for _, site := range sites {
		known[site.ID] = site
	}
	if err := s.syncPlansLocked(ctx, known, changed); err != nil {
		return nil, err
	}
	return changed, nil
}

func (s *Service) DiscardDraft() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return ErrNoDraft
	}
	s.log.Info("draft discarded", zap.String("draft", s.draft.ID))
	s.draft = nil
	return nil
}

// ownerChanges keeps the assignments that differ from the current owner.
func ownerChanges(sites []model.Site, assignments map[int64]int64) map[int64]int64 {
	out := map[int64]int64{}
	for _, site := range sites {
		to, ok := assignments[site.ID]
		if ok && site.AssignedConsultantID != to {
			out[site.ID] = to
		}
	}
	return out
}

func sortedKeys[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
