package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"siteplan/internal/config"
	"siteplan/internal/metrics"
	"siteplan/internal/model"
	"siteplan/internal/opt"
	"siteplan/internal/plan"
)

// SuggestRoute orders the sites the consultant still has to visit on day.
// It returns nil when nothing is planned for that day.
func (s *Service) SuggestRoute(ctx context.Context, consultantID int64, day model.Day, mode model.RouteMode) (*model.RouteSuggestion, error) {
	strategy, err := opt.StrategyFor(mode)
	if err != nil {
		return nil, err
	}
	if _, ok := plan.DayBucket(day).Day(); !ok {
		return nil, fmt.Errorf("%w: %q", plan.ErrInvalidBucket, day)
	}
	d, snap, err := s.derive(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	sites := d.Planned[day]
	if len(sites) == 0 {
		return nil, nil
	}
	if snap.user.HomeBase == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoHomeBase, consultantID)
	}
	cfg, err := s.RouteConfig(ctx)
	if err != nil {
		return nil, err
	}

	sug := strategy.Plan(sites, *snap.user.HomeBase, cfg)
	sug.ConsultantID = consultantID
	sug.Day = day
	metrics.RouteSuggestions.WithLabelValues(string(sug.Mode)).Inc()
	metrics.RouteDistance.Observe(sug.TotalDistanceKm)
	s.log.Debug("route suggested",
		zap.Int64("consultant", consultantID),
		zap.String("day", string(day)),
		zap.String("mode", string(sug.Mode)),
		zap.Int("sites", len(sug.OrderedSites)),
		zap.Float64("km", sug.TotalDistanceKm),
	)
	return &sug, nil
}

// RouteConfig returns the stored configuration, or the defaults when none is stored.
func (s *Service) RouteConfig(ctx context.Context) (model.RouteOptimizationConfig, error) {
	cfg, ok, err := s.store.GetRouteConfig(ctx)
	if err != nil {
		return model.RouteOptimizationConfig{}, err
	}
	if !ok {
		return s.defaults, nil
	}
	return cfg, nil
}

func (s *Service) SaveRouteConfig(ctx context.Context, cfg model.RouteOptimizationConfig) error {
	if err := config.ValidateRouteConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRouteConfig, err)
	}
	if err := s.store.SaveRouteConfig(ctx, cfg); err != nil {
		return err
	}
	s.log.Info("route config updated",
		zap.Float64("travelTimeRate", cfg.TravelTimeRate),
		zap.Float64("distanceRate", cfg.DistanceRate),
		zap.Float64("perSiteRate", cfg.PerSiteRate),
		zap.Float64("avgSpeedKmh", cfg.AvgSpeedKmh),
	)
	return nil
}
