package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"siteplan/internal/model"
)

// Seed is the YAML document accepted by LoadSeed.
type Seed struct {
	Users       []model.User                   `yaml:"users"`
	Sites       []model.Site                   `yaml:"sites"`
	Reports     []model.Report                 `yaml:"reports"`
	RouteConfig *model.RouteOptimizationConfig `yaml:"routeConfig"`
}

// ReadSeed parses a seed file and checks the references between its records.
func ReadSeed(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("seed: read %q: %w", path, err)
	}
	var s Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("seed: parse yaml: %w", err)
	}
	users := map[int64]bool{}
	for i, u := range s.Users {
		if u.ID <= 0 {
			return Seed{}, fmt.Errorf("seed: user at index %d: id must be positive", i)
		}
		if strings.TrimSpace(u.Name) == "" {
			return Seed{}, fmt.Errorf("seed: user %d: name cannot be empty", u.ID)
		}
		users[u.ID] = true
	}
	sites := map[int64]bool{}
	for i, site := range s.Sites {
		if site.ID <= 0 {
			return Seed{}, fmt.Errorf("seed: site at index %d: id must be positive", i)
		}
		if site.AssignedConsultantID != 0 && !users[site.AssignedConsultantID] {
			return Seed{}, fmt.Errorf("seed: site %d: unknown consultant %d", site.ID, site.AssignedConsultantID)
		}
		if site.Status == "" {
			s.Sites[i].Status = model.SiteActive
		}
		sites[site.ID] = true
	}
	for i, r := range s.Reports {
		if !sites[r.SiteID] {
			return Seed{}, fmt.Errorf("seed: report at index %d: unknown site %d", i, r.SiteID)
		}
	}
	return s, nil
}

// LoadSeed reads path and inserts its records into st.
func LoadSeed(ctx context.Context, st Store, path string) (Seed, error) {
	s, err := ReadSeed(path)
	if err != nil {
		return Seed{}, err
	}
	for _, u := range s.Users {
		if _, err := st.CreateUser(ctx, u); err != nil {
			return Seed{}, fmt.Errorf("seed: user %d: %w", u.ID, err)
		}
	}
	for _, site := range s.Sites {
		if _, err := st.CreateSite(ctx, site); err != nil {
			return Seed{}, fmt.Errorf("seed: site %d: %w", site.ID, err)
		}
	}
	for _, r := range s.Reports {
		if _, err := st.CreateReport(ctx, r); err != nil {
			return Seed{}, fmt.Errorf("seed: report for site %d: %w", r.SiteID, err)
		}
	}
	if s.RouteConfig != nil {
		if err := st.SaveRouteConfig(ctx, *s.RouteConfig); err != nil {
			return Seed{}, fmt.Errorf("seed: route config: %w", err)
		}
	}
	return s, nil
}
