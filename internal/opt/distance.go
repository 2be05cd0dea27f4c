package opt

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"siteplan/internal/model"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(p1, p2 model.GeoPoint) float64 {
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180
	dLon := (p2.Lng - p1.Lng) * math.Pi / 180
	lat1 := p1.Lat * math.Pi / 180
	lat2 := p2.Lat * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// RouteMetrics is the cost estimate for one ordered route.
type RouteMetrics struct {
	TotalDistanceKm float64
	TotalTimeHours  float64
	Pay             model.PayBreakdown
	CostPerSite     float64
	Warnings        []string
}

// CalculateRouteMetrics estimates a closed loop start -> sites... -> start.
// Sites without a location contribute no distance.
func CalculateRouteMetrics(ordered []model.Site, start model.GeoPoint, cfg model.RouteOptimizationConfig) RouteMetrics {
	return EstimateCost(loopDistanceKm(ordered, start), len(ordered), cfg)
}

// EstimateCost derives time, pay and warnings from a raw distance and site count.
func EstimateCost(distanceKm float64, siteCount int, cfg model.RouteOptimizationConfig) RouteMetrics {
	hours := 0.0
	if cfg.AvgSpeedKmh > 0 {
		hours = distanceKm / cfg.AvgSpeedKmh
	}
	// pay is computed from the displayed (rounded) time and distance
	dispDistance := round(distanceKm, 1)
	dispHours := round(hours, 2)

	timePay := decimal.NewFromFloat(dispHours).Mul(decimal.NewFromFloat(cfg.TravelTimeRate)).Round(2)
	distancePay := decimal.NewFromFloat(dispDistance).Mul(decimal.NewFromFloat(cfg.DistanceRate)).Round(2)
	sitePay := decimal.NewFromInt(int64(siteCount)).Mul(decimal.NewFromFloat(cfg.PerSiteRate)).Round(2)
	total := timePay.Add(distancePay).Add(sitePay).Round(2)

	m := RouteMetrics{
		TotalDistanceKm: dispDistance,
		TotalTimeHours:  dispHours,
		Pay: model.PayBreakdown{
			TimePay:     timePay.InexactFloat64(),
			DistancePay: distancePay.InexactFloat64(),
			SitePay:     sitePay.InexactFloat64(),
			Total:       total.InexactFloat64(),
		},
		Warnings: []string{},
	}
	if siteCount > 0 {
		m.CostPerSite = total.Div(decimal.NewFromInt(int64(siteCount))).Round(2).InexactFloat64()
	}
	if cfg.MaxDailyDriveTime > 0 && hours > cfg.MaxDailyDriveTime {
		m.Warnings = append(m.Warnings, fmt.Sprintf("Estimated drive time %.2fh exceeds the daily maximum of %.2fh", dispHours, cfg.MaxDailyDriveTime))
	}
	if cfg.MaxDailyDistance > 0 && distanceKm > cfg.MaxDailyDistance {
		m.Warnings = append(m.Warnings, fmt.Sprintf("Total distance %.1fkm exceeds the daily maximum of %.1fkm", dispDistance, cfg.MaxDailyDistance))
	}
	return m
}

func loopDistanceKm(ordered []model.Site, start model.GeoPoint) float64 {
	if len(ordered) == 0 {
		return 0
	}
	total := 0.0
	cur := start
	for _, s := range ordered {
		if s.Location == nil {
			continue
		}
		total += HaversineKm(cur, *s.Location)
		cur = *s.Location
	}
	return total + HaversineKm(cur, start)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
