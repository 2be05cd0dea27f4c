package plan

import (
	"fmt"
	"time"

	"siteplan/internal/model"
	"siteplan/internal/schedule"
)

type MoveStatus string

const (
	MoveAllowed              MoveStatus = "allowed"
	MoveRequiresConfirmation MoveStatus = "requires_confirmation"
)

// MoveOutcome is the answer to a proposed move.
type MoveOutcome struct {
	Status MoveStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Allowed reports whether the move may proceed without a human confirmation.
func (o MoveOutcome) Allowed() bool { return o.Status == MoveAllowed }

// CheckMove applies the early-visit guard: a non-priority Weekly site whose
// last visit was the most recent Friday needs confirmation before it is
// planned for Monday.
func CheckMove(site model.Site, dst Bucket, now time.Time) MoveOutcome {
	if dst != DayBucket(model.Monday) || site.Frequency != model.FrequencyWeekly || site.Priority {
		return MoveOutcome{Status: MoveAllowed}
	}
	if site.LastVisited == nil {
		return MoveOutcome{Status: MoveAllowed}
	}
	friday := schedule.MostRecentFriday(now)
	if !schedule.SameDay(friday, *site.LastVisited) {
		return MoveOutcome{Status: MoveAllowed}
	}
	return MoveOutcome{
		Status: MoveRequiresConfirmation,
		Reason: fmt.Sprintf("%s is a weekly site last visited on Friday %s; a Monday visit would be early", site.ClientName, friday.Format("2006-01-02")),
	}
}
