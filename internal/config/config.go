package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	OracleORS      = "ors"
	OracleGeodesic = "geodesic"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Oracle           string
	ORSAPIKey        string
	ORSBaseURL       string
	ORSProfile       string
	ORSRateLimit     float64
	ORSRateBurst     int
	GeodesicSpeedKPH float64

	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	BatchSize       int
	MaxInFlight     int
	FailureDebounce time.Duration

	StartTemperature float64
	EndTemperature   float64
	CoolingFactor    float64
	Runs             int
	Parallelism      int
	Seed             uint64
	CostMetric       string
	MaxSteps         int64

	PlanTimeout   time.Duration
	PlanRetention time.Duration
	MaxWaypoints  int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("oracle", OracleORS)
	v.SetDefault("ors_api_key", "")
	v.SetDefault("ors_base_url", "https://api.openrouteservice.org")
	v.SetDefault("ors_profile", "driving-car")
	v.SetDefault("ors_rate_limit", 5.0)
	v.SetDefault("ors_rate_burst", 5)
	v.SetDefault("geodesic_speed_kph", 50.0)

	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 168*time.Hour)

	v.SetDefault("batch_size", 40)
	v.SetDefault("max_in_flight", 0)
	v.SetDefault("failure_debounce", 5*time.Second)

	v.SetDefault("annealing_start_temperature", 1e10)
	v.SetDefault("annealing_end_temperature", 1e-5)
	v.SetDefault("annealing_cooling_factor", 0.99)
	v.SetDefault("annealing_runs", 15)
	v.SetDefault("annealing_parallelism", 0)
	v.SetDefault("annealing_seed", 0)
	v.SetDefault("annealing_cost_metric", "length")
	v.SetDefault("annealing_max_steps", 10_000_000)

	v.SetDefault("plan_timeout", 2*time.Minute)
	v.SetDefault("plan_retention", time.Hour)
	v.SetDefault("max_waypoints", 200)
}

// Load reads configuration from the environment (after an optional .env file)
// and an optional config.yaml in . or ./data. Environment variables win.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./data")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config: read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		Oracle:           strings.ToLower(strings.TrimSpace(v.GetString("oracle"))),
		ORSAPIKey:        strings.TrimSpace(v.GetString("ors_api_key")),
		ORSBaseURL:       v.GetString("ors_base_url"),
		ORSProfile:       v.GetString("ors_profile"),
		ORSRateLimit:     v.GetFloat64("ors_rate_limit"),
		ORSRateBurst:     v.GetInt("ors_rate_burst"),
		GeodesicSpeedKPH: v.GetFloat64("geodesic_speed_kph"),

		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),
		RedisURL:    strings.TrimSpace(v.GetString("redis_url")),
		CacheTTL:    v.GetDuration("cache_ttl"),

		BatchSize:       v.GetInt("batch_size"),
		MaxInFlight:     v.GetInt("max_in_flight"),
		FailureDebounce: v.GetDuration("failure_debounce"),

		StartTemperature: v.GetFloat64("annealing_start_temperature"),
		EndTemperature:   v.GetFloat64("annealing_end_temperature"),
		CoolingFactor:    v.GetFloat64("annealing_cooling_factor"),
		Runs:             v.GetInt("annealing_runs"),
		Parallelism:      v.GetInt("annealing_parallelism"),
		Seed:             v.GetUint64("annealing_seed"),
		CostMetric:       strings.ToLower(v.GetString("annealing_cost_metric")),
		MaxSteps:         v.GetInt64("annealing_max_steps"),

		PlanTimeout:   v.GetDuration("plan_timeout"),
		PlanRetention: v.GetDuration("plan_retention"),
		MaxWaypoints:  v.GetInt("max_waypoints"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Oracle {
	case OracleORS:
		if c.ORSAPIKey == "" {
			return errors.New("ORS_API_KEY is required when ORACLE=ors")
		}
	case OracleGeodesic:
		if c.GeodesicSpeedKPH <= 0 {
			return errors.New("GEODESIC_SPEED_KPH must be positive")
		}
	default:
		return fmt.Errorf("unknown ORACLE %q (want %q or %q)", c.Oracle, OracleORS, OracleGeodesic)
	}

	if c.BatchSize < 3 {
		return fmt.Errorf("BATCH_SIZE must be at least 3, got %d", c.BatchSize)
	}
	if c.MaxInFlight < 0 {
		return errors.New("MAX_IN_FLIGHT must not be negative")
	}
	if c.FailureDebounce <= 0 {
		return errors.New("FAILURE_DEBOUNCE must be positive")
	}
	if c.MaxWaypoints < 1 {
		return errors.New("MAX_WAYPOINTS must be at least 1")
	}

	switch {
	case c.StartTemperature <= 0 || c.EndTemperature <= 0:
		return errors.New("ANNEALING_START_TEMPERATURE and ANNEALING_END_TEMPERATURE must be positive")
	case c.EndTemperature >= c.StartTemperature:
		return fmt.Errorf("ANNEALING_END_TEMPERATURE %g must be below ANNEALING_START_TEMPERATURE %g", c.EndTemperature, c.StartTemperature)
	case c.CoolingFactor <= 0 || c.CoolingFactor >= 1:
		return fmt.Errorf("ANNEALING_COOLING_FACTOR must be in (0, 1), got %g", c.CoolingFactor)
	case c.Runs < 1:
		return fmt.Errorf("ANNEALING_RUNS must be at least 1, got %d", c.Runs)
	case c.Parallelism < 0:
		return errors.New("ANNEALING_PARALLELISM must not be negative")
	case c.MaxSteps < 0:
		return errors.New("ANNEALING_MAX_STEPS must not be negative")
	case c.CostMetric != "length" && c.CostMetric != "time":
		return fmt.Errorf("unknown ANNEALING_COST_METRIC %q (want \"length\" or \"time\")", c.CostMetric)
	}
	return nil
}
