package planner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"siteplan/internal/metrics"
	"siteplan/internal/model"
	"siteplan/internal/plan"
	"siteplan/internal/schedule"
	"siteplan/internal/store"
	"siteplan/internal/webhooks"
)

// MoveRequest asks for one site to change bucket.
type MoveRequest struct {
	SiteID    int64       `json:"siteId"`
	From      plan.Bucket `json:"from"`
	To        plan.Bucket `json:"to"`
	Confirmed bool        `json:"confirm"`
}

type MoveResult struct {
	Moved   bool             `json:"moved"`
	Outcome plan.MoveOutcome `json:"outcome"`
	Plan    model.WeeklyPlan `json:"plan"`
}

// EnsurePlan returns the consultant's plan, creating it on first use from
// their Active sites that are not already completed this week. A consultant
// without Active sites gets an empty plan that is not stored.
func (s *Service) EnsurePlan(ctx context.Context, consultantID int64) (model.WeeklyPlan, error) {
	if err := s.requireConsultant(ctx, consultantID); err != nil {
		return model.WeeklyPlan{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx, consultantID)
}

func (s *Service) ensureLocked(ctx context.Context, consultantID int64) (model.WeeklyPlan, error) {
	p, err := s.store.GetPlan(ctx, consultantID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.WeeklyPlan{}, err
	}

	now := s.now()
	week := schedule.WeekOf(now)
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return model.WeeklyPlan{}, err
	}
	reports, err := s.store.ListReports(ctx, week.Start, week.End)
	if err != nil {
		return model.WeeklyPlan{}, err
	}
	done := plan.CompletedThisWeek(consultantID, reports, now)
	var seed []model.Site
	for _, site := range sites {
		if site.AssignedConsultantID == consultantID && site.Status == model.SiteActive && !done[site.ID] {
			seed = append(seed, site)
		}
	}
	if len(seed) == 0 {
		return plan.New(), nil
	}
	plan.SortByUrgency(seed)
	cur, created, err := s.store.InitPlan(ctx, consultantID, plan.Seed(seed))
	if err != nil {
		return model.WeeklyPlan{}, fmt.Errorf("init plan: %w", err)
	}
	if created {
		s.log.Info("weekly plan initialised", zap.Int64("consultant", consultantID), zap.Int("sites", len(seed)))
	}
	return cur, nil
}

// Plan returns the consultant's effective weekly view.
func (s *Service) Plan(ctx context.Context, consultantID int64) (plan.Derived, error) {
	d, _, err := s.derive(ctx, consultantID)
	return d, err
}

func (s *Service) derive(ctx context.Context, consultantID int64) (plan.Derived, snapshot, error) {
	now := s.now()
	snap, err := s.load(ctx, consultantID, schedule.WeekOf(now))
	if err != nil {
		return plan.Derived{}, snapshot{}, err
	}
	s.mu.Lock()
	raw, err := s.ensureLocked(ctx, consultantID)
	s.mu.Unlock()
	if err != nil {
		return plan.Derived{}, snapshot{}, err
	}
	// a plan created just now may reference sites the snapshot missed; Derive drops them
	d := plan.Derive(consultantID, raw, snap.sites, snap.reports, now)
	metrics.PlanDerivations.Inc()
	return d, snap, nil
}

// ReplacePlan overwrites the consultant's plan. The plan must keep every
// site id in a single bucket.
func (s *Service) ReplacePlan(ctx context.Context, consultantID int64, p model.WeeklyPlan) (model.WeeklyPlan, error) {
	if err := plan.Validate(p); err != nil {
		return model.WeeklyPlan{}, err
	}
	if err := s.requireConsultant(ctx, consultantID); err != nil {
		return model.WeeklyPlan{}, err
	}
	next := plan.Clone(p)
	s.mu.Lock()
	err := s.store.SavePlan(ctx, consultantID, next)
	s.mu.Unlock()
	if err != nil {
		return model.WeeklyPlan{}, fmt.Errorf("save plan: %w", err)
	}
	s.log.Info("weekly plan replaced", zap.Int64("consultant", consultantID), zap.Int("sites", len(plan.SiteIDs(next))))
	s.notify(ctx, consultantID, "Your weekly plan was updated", webhooks.EventPlanUpdated, map[string]any{
		"consultantId": consultantID,
	})
	return next, nil
}

// ProposeMove runs the early-visit guard without touching the plan.
func (s *Service) ProposeMove(ctx context.Context, consultantID, siteID int64, to plan.Bucket) (plan.MoveOutcome, error) {
	if err := s.requireConsultant(ctx, consultantID); err != nil {
		return plan.MoveOutcome{}, err
	}
	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return plan.MoveOutcome{}, err
	}
	return plan.CheckMove(site, to, s.now()), nil
}

// MoveSite applies a move. When the early-visit guard objects and the request
// is not confirmed the plan is left alone and ErrConfirmationRequired is
// returned together with the outcome. A site missing from the source bucket
// is a no-op, not an error.
func (s *Service) MoveSite(ctx context.Context, consultantID int64, req MoveRequest) (MoveResult, error) {
	if err := s.requireConsultant(ctx, consultantID); err != nil {
		return MoveResult{}, err
	}
	site, err := s.store.GetSite(ctx, req.SiteID)
	if err != nil {
		return MoveResult{}, err
	}
	s.mu.Lock()
	cur, err := s.ensureLocked(ctx, consultantID)
	if err != nil {
		s.mu.Unlock()
		return MoveResult{}, err
	}
	if req.From == req.To || !plan.Contains(cur, req.From, req.SiteID) {
		s.mu.Unlock()
		metrics.PlanMoves.WithLabelValues("noop").Inc()
		return MoveResult{Plan: cur, Outcome: plan.MoveOutcome{Status: plan.MoveAllowed}}, nil
	}
	outcome := plan.CheckMove(site, req.To, s.now())
	if !outcome.Allowed() && !req.Confirmed {
		s.mu.Unlock()
		metrics.PlanMoves.WithLabelValues("needs_confirmation").Inc()
		return MoveResult{Outcome: outcome, Plan: cur}, fmt.Errorf("%w: %s", ErrConfirmationRequired, outcome.Reason)
	}
	next, moved := plan.MoveSite(cur, req.SiteID, req.From, req.To)
	if moved {
		err = s.store.SavePlan(ctx, consultantID, next)
	}
	s.mu.Unlock()
	if err != nil {
		return MoveResult{}, fmt.Errorf("save plan: %w", err)
	}

	res := MoveResult{Moved: moved, Outcome: outcome, Plan: next}
	if !moved {
		metrics.PlanMoves.WithLabelValues("noop").Inc()
		return res, nil
	}
	metrics.PlanMoves.WithLabelValues("moved").Inc()
	s.log.Info("site moved",
		zap.Int64("consultant", consultantID),
		zap.Int64("site", req.SiteID),
		zap.String("from", string(req.From)),
		zap.String("to", string(req.To)),
		zap.Bool("confirmed", req.Confirmed),
	)
	s.notify(ctx, consultantID, fmt.Sprintf("%s moved to %s", site.ClientName, bucketLabel(req.To)), webhooks.EventPlanMove, map[string]any{
		"consultantId": consultantID,
		"siteId":       req.SiteID,
		"from":         req.From,
		"to":           req.To,
	})
	return res, nil
}

// CommitMove is the second phase after ProposeMove asked for confirmation.
func (s *Service) CommitMove(ctx context.Context, consultantID, siteID int64, from, to plan.Bucket) (MoveResult, error) {
	return s.MoveSite(ctx, consultantID, MoveRequest{SiteID: siteID, From: from, To: to, Confirmed: true})
}

// RecordReport stores a visit report. A completing report also advances the
// site's last visit date.
func (s *Service) RecordReport(ctx context.Context, r model.Report) (model.Report, error) {
	site, err := s.store.GetSite(ctx, r.SiteID)
	if err != nil {
		return model.Report{}, err
	}
	if r.ConsultantID == 0 {
		r.ConsultantID = site.AssignedConsultantID
	}
	if r.ConsultantID != 0 {
		if err := s.requireConsultant(ctx, r.ConsultantID); err != nil {
			return model.Report{}, err
		}
	}
	if r.VisitDate.IsZero() {
		r.VisitDate = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.store.CreateReport(ctx, r)
	if err != nil {
		return model.Report{}, err
	}
	if out.Status.Completes() {
		if err := s.store.TouchLastVisited(ctx, out.SiteID, out.VisitDate); err != nil {
			return out, fmt.Errorf("update last visit: %w", err)
		}
	}
	s.notify(ctx, out.ConsultantID, "", webhooks.EventPlanUpdated, map[string]any{
		"consultantId": out.ConsultantID,
		"siteId":       out.SiteID,
		"report":       out.Status,
	})
	return out, nil
}

func bucketLabel(b plan.Bucket) string {
	if d, ok := b.Day(); ok {
		return string(d)
	}
	return "To-Do"
}
