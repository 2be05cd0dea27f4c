package model

import "time"

// Core domain types shared by the planner, store and API layers.

type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type SiteStatus string

const (
	SiteActive    SiteStatus = "Active"
	SiteNotActive SiteStatus = "Not Active"
	SiteOnHold    SiteStatus = "On Hold"
	SiteCompleted SiteStatus = "Completed"
)

type Frequency string

const (
	FrequencyWeekly    Frequency = "Weekly"
	FrequencyBiWeekly  Frequency = "Bi-Weekly"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyShopAudit Frequency = "Shop Audit"
)

// HoldInfo carries the metadata of a site placed on hold.
type HoldInfo struct {
	Reason   string     `json:"reason,omitempty" yaml:"reason"`
	Start    *time.Time `json:"start,omitempty" yaml:"start"`
	End      *time.Time `json:"end,omitempty" yaml:"end"`
	Approval string     `json:"approval,omitempty" yaml:"approval"` // Pending, Approved, Rejected
}

// Site is a client location that requires periodic visits.
// AssignedConsultantID == 0 means the site sits in the unassigned pool.
type Site struct {
	ID                   int64      `json:"id" yaml:"id"`
	ClientName           string     `json:"clientName" yaml:"clientName"`
	Address              string     `json:"address,omitempty" yaml:"address"`
	City                 string     `json:"city,omitempty" yaml:"city"`
	AssignedConsultantID int64      `json:"assignedConsultantId" yaml:"assignedConsultantId"`
	Status               SiteStatus `json:"status" yaml:"status"`
	Frequency            Frequency  `json:"frequency" yaml:"frequency"`
	LastVisited          *time.Time `json:"lastVisited,omitempty" yaml:"lastVisited"`
	Location             *GeoPoint  `json:"location,omitempty" yaml:"location"`
	Hold                 *HoldInfo  `json:"hold,omitempty" yaml:"hold"`
	Priority             bool       `json:"priority,omitempty" yaml:"priority"`
	PriorityNote         string     `json:"priorityNote,omitempty" yaml:"priorityNote"`
	SiteGroupID          string     `json:"siteGroupId,omitempty" yaml:"siteGroupId"`
}

type ReportStatus string

const (
	ReportVisitComplete   ReportStatus = "Visit Complete"
	ReportSiteNotActive   ReportStatus = "Site Not Active"
	ReportClientCancelled ReportStatus = "Client Cancelled"
	ReportProjectFinished ReportStatus = "Project Finished"
	ReportOnHold          ReportStatus = "On Hold"
	ReportRevisitWaived   ReportStatus = "Revisit Waived"
)

// Completes reports whether a report with this status closes the site for the week.
func (s ReportStatus) Completes() bool {
	switch s {
	case ReportVisitComplete, ReportRevisitWaived, ReportProjectFinished, ReportClientCancelled:
		return true
	}
	return false
}

// Report is the immutable outcome of a single visit.
type Report struct {
	ID             int64          `json:"id" yaml:"id"`
	SiteID         int64          `json:"siteId" yaml:"siteId"`
	ConsultantID   int64          `json:"consultantId" yaml:"consultantId"`
	VisitDate      time.Time      `json:"visitDate" yaml:"visitDate"`
	Status         ReportStatus   `json:"status" yaml:"status"`
	Notes          string         `json:"notes,omitempty" yaml:"notes"`
	DeliveredItems map[string]int `json:"deliveredItems,omitempty" yaml:"deliveredItems"`
	Documents      []string       `json:"documents,omitempty" yaml:"documents"`
}

type Role string

const (
	RoleConsultant Role = "consultant"
	RoleManagement Role = "management"
	RoleAdmin      Role = "admin"
)

type User struct {
	ID       int64     `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Email    string    `json:"email,omitempty" yaml:"email"`
	Role     Role      `json:"role" yaml:"role"`
	HomeBase *GeoPoint `json:"homeBase,omitempty" yaml:"homeBase"`
}

// Day is a plannable weekday.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
)

// Weekdays lists the plannable days in calendar order.
var Weekdays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// WeeklyPlan is the scheduling intent for one consultant. Every site id lives
// in exactly one bucket: Todo or one of the weekday lists.
type WeeklyPlan struct {
	Todo    []int64         `json:"todo"`
	Planned map[Day][]int64 `json:"planned"`
}

// WeeklyPlanState maps consultant id to that consultant's plan.
type WeeklyPlanState map[int64]WeeklyPlan

// RouteOptimizationConfig holds the global pay/time/distance rules.
type RouteOptimizationConfig struct {
	TravelTimeRate    float64 `json:"travelTimeRate" yaml:"travelTimeRate"`       // $/hr
	DistanceRate      float64 `json:"distanceRate" yaml:"distanceRate"`           // $/km
	PerSiteRate       float64 `json:"perSiteRate" yaml:"perSiteRate"`             // $/visit
	AvgSpeedKmh       float64 `json:"avgSpeedKmh" yaml:"avgSpeedKmh"`
	MaxDailyDriveTime float64 `json:"maxDailyDriveTime" yaml:"maxDailyDriveTime"` // hours
	MaxDailyDistance  float64 `json:"maxDailyDistance" yaml:"maxDailyDistance"`   // km
}

type PayBreakdown struct {
	TimePay     float64 `json:"timePay"`
	DistancePay float64 `json:"distancePay"`
	SitePay     float64 `json:"sitePay"`
	Total       float64 `json:"total"`
}

type RouteMode string

const (
	ModeFastest  RouteMode = "fastest"
	ModeBalanced RouteMode = "balanced"
)

// RouteSuggestion is an ephemeral, recomputed-on-demand visiting order.
type RouteSuggestion struct {
	ConsultantID    int64        `json:"consultantId,omitempty"`
	Day             Day          `json:"day,omitempty"`
	Mode            RouteMode    `json:"mode"`
	OrderedSites    []Site       `json:"orderedSites"`
	TotalDistanceKm float64      `json:"totalDistanceKm"`
	TotalTimeHours  float64      `json:"totalTimeHours"`
	Pay             PayBreakdown `json:"pay"`
	CostPerSite     float64      `json:"costPerSite"`
	Warnings        []string     `json:"warnings"`
}

// Notification is a user-facing message describing a plan or assignment change.
type Notification struct {
	ID           string    `json:"id"`
	ConsultantID int64     `json:"consultantId"`
	Message      string    `json:"message"`
	Target       string    `json:"target,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
