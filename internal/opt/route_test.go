package opt

import (
	"errors"
	"math"
	"testing"

	"siteplan/internal/model"
)

var testCfg = model.RouteOptimizationConfig{
	TravelTimeRate:    25,
	DistanceRate:      0.55,
	PerSiteRate:       50,
	AvgSpeedKmh:       60,
	MaxDailyDriveTime: 8,
	MaxDailyDistance:  400,
}

func siteAt(id int64, lat, lng float64) model.Site {
	return model.Site{ID: id, ClientName: "client", Status: model.SiteActive, Location: &model.GeoPoint{Lat: lat, Lng: lng}}
}

func TestHaversineSymmetryAndIdentity(t *testing.T) {
	pts := []model.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 51.5, Lng: -0.12}, {Lat: -33.86, Lng: 151.2}, {Lat: 40.7, Lng: -74}}
	for _, a := range pts {
		if d := HaversineKm(a, a); d != 0 {
			t.Fatalf("distance(%v,%v) = %v, want 0", a, a, d)
		}
		for _, b := range pts {
			if math.Abs(HaversineKm(a, b)-HaversineKm(b, a)) > 1e-9 {
				t.Fatalf("asymmetric distance between %v and %v", a, b)
			}
		}
	}
	// one degree of longitude on the equator
	if d := HaversineKm(model.GeoPoint{}, model.GeoPoint{Lng: 1}); math.Abs(d-111.19) > 0.01 {
		t.Fatalf("1 degree = %v km", d)
	}
}

func TestEstimateCostPayMath(t *testing.T) {
	m := EstimateCost(60, 2, testCfg)
	if m.TotalTimeHours != 1.0 {
		t.Fatalf("time = %v, want 1.0", m.TotalTimeHours)
	}
	if m.Pay.TimePay != 25 || m.Pay.DistancePay != 33 || m.Pay.SitePay != 100 {
		t.Fatalf("pay = %+v", m.Pay)
	}
	if m.Pay.Total != m.Pay.TimePay+m.Pay.DistancePay+m.Pay.SitePay {
		t.Fatalf("total %v is not the sum of its parts", m.Pay.Total)
	}
	if m.CostPerSite != 79 {
		t.Fatalf("costPerSite = %v, want 79", m.CostPerSite)
	}
	if len(m.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", m.Warnings)
	}
}

func TestEstimateCostWarnings(t *testing.T) {
	cfg := testCfg
	cfg.MaxDailyDriveTime = 1
	cfg.MaxDailyDistance = 50
	m := EstimateCost(90, 3, cfg)
	if len(m.Warnings) != 2 {
		t.Fatalf("want both warnings, got %v", m.Warnings)
	}
	cfg.MaxDailyDistance = 100
	m = EstimateCost(90, 3, cfg)
	if len(m.Warnings) != 1 {
		t.Fatalf("want drive time warning only, got %v", m.Warnings)
	}
}

func TestCalculateRouteMetricsClosedLoop(t *testing.T) {
	start := model.GeoPoint{}
	sites := []model.Site{siteAt(1, 0, 1)}
	m := CalculateRouteMetrics(sites, start, testCfg)
	want := round(2*HaversineKm(start, *sites[0].Location), 1)
	if m.TotalDistanceKm != want {
		t.Fatalf("distance = %v, want round trip %v", m.TotalDistanceKm, want)
	}
	empty := CalculateRouteMetrics(nil, start, testCfg)
	if empty.TotalDistanceKm != 0 || empty.Pay.Total != 0 || empty.CostPerSite != 0 {
		t.Fatalf("empty route metrics = %+v", empty)
	}
}

func TestFindFastestRouteNearestNeighbor(t *testing.T) {
	sites := []model.Site{siteAt(3, 0, 5), siteAt(1, 0, 0), siteAt(2, 0, 1)}
	got := FindFastestRoute(sites, model.GeoPoint{}, testCfg)
	ids := []int64{}
	for _, s := range got.OrderedSites {
		ids = append(ids, s.ID)
	}
	want := []int64{1, 2, 3}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
	if got.Mode != model.ModeFastest {
		t.Fatalf("mode = %s", got.Mode)
	}
	// input untouched
	if sites[0].ID != 3 || sites[1].ID != 1 || sites[2].ID != 2 {
		t.Fatalf("input mutated: %+v", sites)
	}
}

func TestFindFastestRouteIsPermutation(t *testing.T) {
	sites := []model.Site{siteAt(1, 1, 1), siteAt(2, 1, 1), siteAt(3, -2, 4), siteAt(4, 3, -1), {ID: 5, ClientName: "no coords"}}
	got := FindFastestRoute(sites, model.GeoPoint{}, testCfg)
	if len(got.OrderedSites) != len(sites) {
		t.Fatalf("len = %d, want %d", len(got.OrderedSites), len(sites))
	}
	seen := map[int64]bool{}
	for _, s := range got.OrderedSites {
		if seen[s.ID] {
			t.Fatalf("duplicate site %d", s.ID)
		}
		seen[s.ID] = true
	}
	// equal coordinates tie-break on input order
	if got.OrderedSites[0].ID != 1 || got.OrderedSites[1].ID != 2 {
		t.Fatalf("tie-break not stable: %d, %d", got.OrderedSites[0].ID, got.OrderedSites[1].ID)
	}
	again := FindFastestRoute(sites, model.GeoPoint{}, testCfg)
	for i := range got.OrderedSites {
		if got.OrderedSites[i].ID != again.OrderedSites[i].ID {
			t.Fatal("route is not deterministic")
		}
	}
}

func TestFindRouteEmpty(t *testing.T) {
	for _, s := range []RouteStrategy{Fastest{}, Balanced{}} {
		got := s.Plan(nil, model.GeoPoint{}, testCfg)
		if len(got.OrderedSites) != 0 || got.TotalDistanceKm != 0 || got.TotalTimeHours != 0 || got.Pay.Total != 0 {
			t.Fatalf("%s: non-zero empty route %+v", s.Mode(), got)
		}
		if len(got.Warnings) != 0 {
			t.Fatalf("%s: warnings on empty route: %v", s.Mode(), got.Warnings)
		}
	}
}

func TestFindBalancedRouteShortWarning(t *testing.T) {
	sites := []model.Site{siteAt(1, 0, 0.1), siteAt(2, 0, 0.2)}
	got := FindBalancedRoute(sites, model.GeoPoint{}, testCfg)
	if got.Mode != model.ModeBalanced {
		t.Fatalf("mode = %s", got.Mode)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("want short-route warning, got %v", got.Warnings)
	}
	fast := FindFastestRoute(sites, model.GeoPoint{}, testCfg)
	for i := range fast.OrderedSites {
		if fast.OrderedSites[i].ID != got.OrderedSites[i].ID {
			t.Fatal("balanced ordering diverged from fastest")
		}
	}
	three := append(sites, siteAt(3, 0, 0.3))
	if w := FindBalancedRoute(three, model.GeoPoint{}, testCfg).Warnings; len(w) != 0 {
		t.Fatalf("three sites should not warn: %v", w)
	}
}

func TestStrategyFor(t *testing.T) {
	s, err := StrategyFor("")
	if err != nil || s.Mode() != model.ModeFastest {
		t.Fatalf("default strategy = %v, %v", s, err)
	}
	if _, err := StrategyFor("scenic"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}
