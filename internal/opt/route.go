package opt

import (
	"errors"
	"fmt"
	"math"

	"siteplan/internal/model"
)

// ErrUnknownMode is returned by StrategyFor for an unsupported route mode.
var ErrUnknownMode = errors.New("unknown route mode")

// RouteStrategy turns an unordered set of sites into an ordered, costed route.
// Implementations must not mutate the input slice.
type RouteStrategy interface {
	Mode() model.RouteMode
	Plan(sites []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) model.RouteSuggestion
}

// StrategyFor returns the strategy registered for mode. An empty mode selects fastest.
func StrategyFor(mode model.RouteMode) (RouteStrategy, error) {
	switch mode {
	case "", model.ModeFastest:
		return Fastest{}, nil
	case model.ModeBalanced:
		return Balanced{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Fastest orders sites by greedy nearest neighbour from the start point.
type Fastest struct{}

func (Fastest) Mode() model.RouteMode { return model.ModeFastest }

func (Fastest) Plan(sites []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) model.RouteSuggestion {
	return FindFastestRoute(sites, start, cfg)
}

// Balanced currently shares the nearest-neighbour ordering and flags routes
// that are too short to be worth a day.
type Balanced struct{}

func (Balanced) Mode() model.RouteMode { return model.ModeBalanced }

func (Balanced) Plan(sites []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) model.RouteSuggestion {
	return FindBalancedRoute(sites, start, cfg)
}

// FindFastestRoute repeatedly visits the closest unvisited site.
// Ties go to the site encountered first in input order.
func FindFastestRoute(sites []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) model.RouteSuggestion {
	ordered := nearestNeighbor(sites, start)
	return suggestion(model.ModeFastest, ordered, start, cfg)
}

// FindBalancedRoute uses the fastest ordering and adds a short-route warning
// when fewer than three sites fill less than two hours of driving.
func FindBalancedRoute(sites []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) model.RouteSuggestion {
	fastest := FindFastestRoute(sites, start, cfg)
	out := suggestion(model.ModeBalanced, fastest.OrderedSites, start, cfg)
	if n := len(out.OrderedSites); n > 0 && n < 3 && out.TotalTimeHours < 2 {
		out.Warnings = append(out.Warnings, "Route is very short; consider adding more sites")
	}
	return out
}

func suggestion(mode model.RouteMode, ordered []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) model.RouteSuggestion {
	m := CalculateRouteMetrics(ordered, start, cfg)
	return model.RouteSuggestion{
		Mode:            mode,
		OrderedSites:    ordered,
		TotalDistanceKm: m.TotalDistanceKm,
		TotalTimeHours:  m.TotalTimeHours,
		Pay:             m.Pay,
		CostPerSite:     m.CostPerSite,
		Warnings:        m.Warnings,
	}
}

func nearestNeighbor(sites []model.Site, start model.GeoPoint) []model.Site {
	remaining := append([]model.Site(nil), sites...)
	ordered := make([]model.Site, 0, len(remaining))
	cur := start
	for len(remaining) > 0 {
		best := 0
		bestDist := math.MaxFloat64
		for i, s := range remaining {
			d := math.MaxFloat64
			if s.Location != nil {
				d = HaversineKm(cur, *s.Location)
			}
			// strict comparison keeps the first site on ties
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		next := remaining[best]
		ordered = append(ordered, next)
		remaining = append(remaining[:best], remaining[best+1:]...)
		if next.Location != nil {
			cur = *next.Location
		}
	}
	return ordered
}
