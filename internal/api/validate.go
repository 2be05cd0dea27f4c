package api

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"siteplan/internal/model"
	"siteplan/internal/plan"
	"siteplan/internal/planner"
	"siteplan/internal/webhooks"
)

var (
	siteStatuses = []model.SiteStatus{model.SiteActive, model.SiteNotActive, model.SiteOnHold, model.SiteCompleted}
	frequencies  = []model.Frequency{model.FrequencyWeekly, model.FrequencyBiWeekly, model.FrequencyMonthly, model.FrequencyShopAudit}
	reportStates = []model.ReportStatus{
		model.ReportVisitComplete, model.ReportSiteNotActive, model.ReportClientCancelled,
		model.ReportProjectFinished, model.ReportOnHold, model.ReportRevisitWaived,
	}
	roles = []model.Role{model.RoleConsultant, model.RoleManagement, model.RoleAdmin}
)

func validateSite(s model.Site) error {
	if strings.TrimSpace(s.ClientName) == "" {
		return errors.New("clientName is required")
	}
	if s.Status != "" && !slices.Contains(siteStatuses, s.Status) {
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	if s.Frequency != "" && !slices.Contains(frequencies, s.Frequency) {
		return fmt.Errorf("invalid frequency: %s", s.Frequency)
	}
	if s.AssignedConsultantID < 0 {
		return errors.New("assignedConsultantId must be >= 0")
	}
	return validatePoint("location", s.Location)
}

func validateSitePatch(p planner.SitePatch) error {
	if p.ClientName != nil && strings.TrimSpace(*p.ClientName) == "" {
		return errors.New("clientName must not be empty")
	}
	if p.Status != nil && !slices.Contains(siteStatuses, *p.Status) {
		return fmt.Errorf("invalid status: %s", *p.Status)
	}
	if p.Frequency != nil && !slices.Contains(frequencies, *p.Frequency) {
		return fmt.Errorf("invalid frequency: %s", *p.Frequency)
	}
	if p.AssignedConsultantID != nil && *p.AssignedConsultantID < 0 {
		return errors.New("assignedConsultantId must be >= 0")
	}
	return validatePoint("location", p.Location)
}

func validateReport(r model.Report) error {
	if r.SiteID <= 0 {
		return errors.New("siteId is required")
	}
	if !slices.Contains(reportStates, r.Status) {
		return fmt.Errorf("invalid status: %q", r.Status)
	}
	for item, n := range r.DeliveredItems {
		if n < 0 {
			return fmt.Errorf("deliveredItems[%s] must be >= 0", item)
		}
	}
	return nil
}

func validateUser(u model.User) error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("name is required")
	}
	if !slices.Contains(roles, u.Role) {
		return fmt.Errorf("invalid role: %q", u.Role)
	}
	return validatePoint("homeBase", u.HomeBase)
}

func validateDraftRequest(req plan.DraftRequest) error {
	if len(req.ConsultantIDs) == 0 {
		return errors.New("consultantIds must not be empty")
	}
	if req.MaxSitesPerConsultant < 0 {
		return errors.New("maxSitesPerConsultant must be >= 0")
	}
	if f := req.Frequency; f != "" && !strings.EqualFold(f, plan.FilterAll) &&
		!slices.ContainsFunc(frequencies, func(v model.Frequency) bool { return strings.EqualFold(string(v), f) }) {
		return fmt.Errorf("invalid frequency: %s", f)
	}
	return nil
}

func validateSubscription(req model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url: %q", req.URL)
	}
	if len(req.Events) == 0 {
		return errors.New("events must not be empty")
	}
	for _, e := range req.Events {
		if !slices.Contains(webhooks.Events, e) {
			return fmt.Errorf("unknown event: %s (allowed: %s)", e, strings.Join(webhooks.Events, ","))
		}
	}
	return nil
}

func validatePoint(field string, p *model.GeoPoint) error {
	if p == nil {
		return nil
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%s out of range: %v,%v", field, p.Lat, p.Lng)
	}
	return nil
}
