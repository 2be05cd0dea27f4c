// Package config loads service configuration from the environment, an
// optional .env file and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"siteplan/internal/model"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMigrate     bool   `mapstructure:"DB_MIGRATE"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	SeedFile      string `mapstructure:"SEED_FILE"`

	RateRPS            float64 `mapstructure:"RATE_RPS"`
	RateBurst          int     `mapstructure:"RATE_BURST"`
	WebhookMaxAttempts int     `mapstructure:"WEBHOOK_MAX_ATTEMPTS"`
	Timezone           string  `mapstructure:"TIMEZONE"`

	RouteTravelTimeRate    float64 `mapstructure:"ROUTE_TRAVEL_TIME_RATE"`
	RouteDistanceRate      float64 `mapstructure:"ROUTE_DISTANCE_RATE"`
	RoutePerSiteRate       float64 `mapstructure:"ROUTE_PER_SITE_RATE"`
	RouteAvgSpeedKmh       float64 `mapstructure:"ROUTE_AVG_SPEED_KMH"`
	RouteMaxDailyDriveTime float64 `mapstructure:"ROUTE_MAX_DAILY_DRIVE_TIME"`
	RouteMaxDailyDistance  float64 `mapstructure:"ROUTE_MAX_DAILY_DISTANCE"`
}

var defaults = map[string]any{
	"PORT":                       "8080",
	"ENV":                        "development",
	"LOG_LEVEL":                  "info",
	"DATABASE_URL":               "",
	"DB_MIGRATE":                 true,
	"MIGRATIONS_DIR":             "db/migrations",
	"REDIS_URL":                  "",
	"SEED_FILE":                  "",
	"RATE_RPS":                   20.0,
	"RATE_BURST":                 40,
	"WEBHOOK_MAX_ATTEMPTS":       10,
	"TIMEZONE":                   "Local",
	"ROUTE_TRAVEL_TIME_RATE":     25.0,
	"ROUTE_DISTANCE_RATE":        0.55,
	"ROUTE_PER_SITE_RATE":        50.0,
	"ROUTE_AVG_SPEED_KMH":        60.0,
	"ROUTE_MAX_DAILY_DRIVE_TIME": 8.0,
	"ROUTE_MAX_DAILY_DISTANCE":   400.0,
}

// Load reads .env (if present) into the process environment, then resolves
// every key from the environment, config.yaml or its default, in that order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	for k, val := range defaults {
		v.SetDefault(k, val)
		_ = v.BindEnv(k)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Port), ":")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("RATE_RPS and RATE_BURST must be positive (got %v, %d)", c.RateRPS, c.RateBurst))
	}
	if c.WebhookMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be positive (got %d)", c.WebhookMaxAttempts))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateRouteConfig(c.RouteDefaults()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Location resolves TIMEZONE; it decides where weeks start and what "today" is.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RouteDefaults is the route configuration used until management stores one.
func (c *Config) RouteDefaults() model.RouteOptimizationConfig {
	return model.RouteOptimizationConfig{
		TravelTimeRate:    c.RouteTravelTimeRate,
		DistanceRate:      c.RouteDistanceRate,
		PerSiteRate:       c.RoutePerSiteRate,
		AvgSpeedKmh:       c.RouteAvgSpeedKmh,
		MaxDailyDriveTime: c.RouteMaxDailyDriveTime,
		MaxDailyDistance:  c.RouteMaxDailyDistance,
	}
}

// ValidateRouteConfig rejects a non-positive speed and negative rates or limits.
// A zero limit disables the matching warning.
func ValidateRouteConfig(rc model.RouteOptimizationConfig) error {
	if rc.AvgSpeedKmh <= 0 {
		return fmt.Errorf("avgSpeedKmh must be positive (got %v)", rc.AvgSpeedKmh)
	}
	for name, v := range map[string]float64{
		"travelTimeRate":    rc.TravelTimeRate,
		"distanceRate":      rc.DistanceRate,
		"perSiteRate":       rc.PerSiteRate,
		"maxDailyDriveTime": rc.MaxDailyDriveTime,
		"maxDailyDistance":  rc.MaxDailyDistance,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative (got %v)", name, v)
		}
	}
	return nil
}
