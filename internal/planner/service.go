// Package planner owns the mutable planning state: weekly plans, the pending
// draft and site ownership. Every mutation goes through one Service so that
// concurrent requests cannot interleave read-modify-write cycles on a plan.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"siteplan/internal/model"
	"siteplan/internal/notify"
	"siteplan/internal/schedule"
	"siteplan/internal/store"
)

var (
	ErrNoDraft              = errors.New("no pending draft")
	ErrNoHomeBase           = errors.New("consultant has no home base")
	ErrUnknownConsultant    = errors.New("unknown consultant")
	ErrConfirmationRequired = errors.New("move requires confirmation")
	ErrInvalidRouteConfig   = errors.New("invalid route config")
)

type Service struct {
	store    store.Store
	notifier *notify.Notifier
	log      *zap.Logger
	defaults model.RouteOptimizationConfig
	loc      *time.Location

	// Now is the clock; tests pin it.
	Now func() time.Time

	mu    sync.Mutex
	draft *Draft
}

// New builds a Service. notifier may be nil, in which case changes are not
// announced. defaults is the route configuration used until one is stored.
func New(s store.Store, notifier *notify.Notifier, log *zap.Logger, defaults model.RouteOptimizationConfig, loc *time.Location) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: s, notifier: notifier, log: log, defaults: defaults, loc: loc, Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().In(s.loc) }

// snapshot is a consistent-enough read of what derivation needs.
type snapshot struct {
	user    model.User
	sites   []model.Site
	reports []model.Report
}

func (s *Service) load(ctx context.Context, consultantID int64, week schedule.Week) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetUser(gctx, consultantID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownConsultant, consultantID)
		}
		snap.user = u
		return err
	})
	g.Go(func() error {
		sites, err := s.store.ListSites(gctx)
		snap.sites = sites
		return err
	})
	g.Go(func() error {
		reports, err := s.store.ListReports(gctx, week.Start, week.End)
		snap.reports = reports
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (s *Service) requireConsultant(ctx context.Context, consultantID int64) error {
	if _, err := s.store.GetUser(ctx, consultantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownConsultant, consultantID)
		}
		return err
	}
	return nil
}

func (s *Service) notify(ctx context.Context, consultantID int64, message, eventType string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	target := ""
	if consultantID != 0 {
		target = fmt.Sprintf("/v1/plans/%d", consultantID)
	}
	s.notifier.Notify(ctx, consultantID, message, target, eventType, data)
}
