// Package plan implements the pure weekly-plan operations: bucket moves, the
// early-visit guard, effective-state derivation and draft generation. Nothing
// here performs I/O or holds state; callers pass snapshots in and persist what
// comes out.
package plan

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"siteplan/internal/model"
)

// ErrInvalidBucket is returned when a bucket name is neither todo nor a weekday.
var ErrInvalidBucket = errors.New("invalid bucket")

// ErrDuplicateSite is returned by Validate when a site id appears in more than one bucket.
var ErrDuplicateSite = errors.New("site appears in more than one bucket")

// Bucket names either the todo list or one weekday.
type Bucket string

const BucketTodo Bucket = "todo"

// DayBucket returns the bucket for a weekday.
func DayBucket(d model.Day) Bucket { return Bucket(d) }

// ParseBucket accepts "todo" or a weekday name, case-insensitively.
func ParseBucket(s string) (Bucket, error) {
	v := strings.TrimSpace(s)
	if strings.EqualFold(v, string(BucketTodo)) {
		return BucketTodo, nil
	}
	for _, d := range model.Weekdays {
		if strings.EqualFold(v, string(d)) {
			return DayBucket(d), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBucket, s)
}

// Day returns the weekday of a day bucket; ok is false for todo.
func (b Bucket) Day() (model.Day, bool) {
	for _, d := range model.Weekdays {
		if Bucket(d) == b {
			return d, true
		}
	}
	return "", false
}

// New returns an empty plan with every weekday present.
func New() model.WeeklyPlan {
	p := model.WeeklyPlan{Todo: []int64{}, Planned: make(map[model.Day][]int64, len(model.Weekdays))}
	for _, d := range model.Weekdays {
		p.Planned[d] = []int64{}
	}
	return p
}

// Seed builds a fresh plan with every given site in todo, in input order.
func Seed(sites []model.Site) model.WeeklyPlan {
	p := New()
	seen := make(map[int64]bool, len(sites))
	for _, s := range sites {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		p.Todo = append(p.Todo, s.ID)
	}
	return p
}

// Clone deep-copies a plan and fills in missing weekdays.
func Clone(p model.WeeklyPlan) model.WeeklyPlan {
	out := New()
	out.Todo = append(out.Todo, p.Todo...)
	for _, d := range model.Weekdays {
		out.Planned[d] = append(out.Planned[d], p.Planned[d]...)
	}
	return out
}

// Locate returns the bucket holding siteID.
func Locate(p model.WeeklyPlan, siteID int64) (Bucket, bool) {
	if slices.Contains(p.Todo, siteID) {
		return BucketTodo, true
	}
	for _, d := range model.Weekdays {
		if slices.Contains(p.Planned[d], siteID) {
			return DayBucket(d), true
		}
	}
	return "", false
}

// Contains reports whether siteID sits in bucket b.
func Contains(p model.WeeklyPlan, b Bucket, siteID int64) bool {
	return slices.Contains(ids(p, b), siteID)
}

// SiteIDs lists every site id referenced by the plan: todo first, then Monday to Friday.
func SiteIDs(p model.WeeklyPlan) []int64 {
	out := append([]int64(nil), p.Todo...)
	for _, d := range model.Weekdays {
		out = append(out, p.Planned[d]...)
	}
	return out
}

// MoveSite moves siteID from src to dst and returns the new plan.
// moved is false, and p is returned unchanged, when src == dst or the site is
// not in src. A todo insert goes to the front, a weekday insert to the end.
func MoveSite(p model.WeeklyPlan, siteID int64, src, dst Bucket) (next model.WeeklyPlan, moved bool) {
	if src == dst || !Contains(p, src, siteID) {
		return p, false
	}
	if _, ok := dst.Day(); !ok && dst != BucketTodo {
		return p, false
	}
	next = Clone(p)
	// strip the id everywhere so a malformed input cannot leave a duplicate behind
	next.Todo = without(next.Todo, siteID)
	for _, d := range model.Weekdays {
		next.Planned[d] = without(next.Planned[d], siteID)
	}
	if dst == BucketTodo {
		next.Todo = append([]int64{siteID}, next.Todo...)
	} else {
		d, _ := dst.Day()
		next.Planned[d] = append(next.Planned[d], siteID)
	}
	return next, true
}

// Validate checks that the plan only uses weekday keys and that no site id is
// present in more than one bucket.
func Validate(p model.WeeklyPlan) error {
	for d := range p.Planned {
		if _, ok := DayBucket(d).Day(); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidBucket, d)
		}
	}
	seen := map[int64]bool{}
	for _, id := range SiteIDs(p) {
		if seen[id] {
			return fmt.Errorf("%w: site %d", ErrDuplicateSite, id)
		}
		seen[id] = true
	}
	return nil
}

func ids(p model.WeeklyPlan, b Bucket) []int64 {
	if b == BucketTodo {
		return p.Todo
	}
	if d, ok := b.Day(); ok {
		return p.Planned[d]
	}
	return nil
}

func without(list []int64, id int64) []int64 {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Remove drops siteID from every bucket. removed is false when the plan did
// not reference it.
func Remove(p model.WeeklyPlan, siteID int64) (next model.WeeklyPlan, removed bool) {
	if _, ok := Locate(p, siteID); !ok {
		return p, false
	}
	next = Clone(p)
	next.Todo = without(next.Todo, siteID)
	for _, d := range model.Weekdays {
		next.Planned[d] = without(next.Planned[d], siteID)
	}
	return next, true
}
