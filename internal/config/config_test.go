package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORS_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, OracleORS, cfg.Oracle)
	require.Equal(t, 40, cfg.BatchSize)
	require.Equal(t, 5*time.Second, cfg.FailureDebounce)
	require.Equal(t, 168*time.Hour, cfg.CacheTTL)
	require.Equal(t, 15, cfg.Runs)
	require.Equal(t, 1e-5, cfg.EndTemperature)
	require.Equal(t, "length", cfg.CostMetric)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORACLE", "Geodesic")
	t.Setenv("GEODESIC_SPEED_KPH", "80")
	t.Setenv("BATCH_SIZE", "7")
	t.Setenv("FAILURE_DEBOUNCE", "250ms")
	t.Setenv("ANNEALING_SEED", "99")
	t.Setenv("ANNEALING_COOLING_FACTOR", "0.95")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, OracleGeodesic, cfg.Oracle)
	require.Equal(t, 80.0, cfg.GeodesicSpeedKPH)
	require.Equal(t, 7, cfg.BatchSize)
	require.Equal(t, 250*time.Millisecond, cfg.FailureDebounce)
	require.Equal(t, uint64(99), cfg.Seed)
	require.Equal(t, 0.95, cfg.CoolingFactor)
}

func TestLoadValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ORS_API_KEY", "")
	_, err := Load()
	require.ErrorContains(t, err, "ORS_API_KEY")

	t.Setenv("ORACLE", "carrier-pigeon")
	_, err = Load()
	require.ErrorContains(t, err, "ORACLE")

	t.Setenv("ORACLE", "geodesic")
	t.Setenv("BATCH_SIZE", "2")
	_, err = Load()
	require.ErrorContains(t, err, "BATCH_SIZE")
}

func TestLoadValidatesAnnealing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORS_API_KEY", "key")

	cases := []struct {
		key, value string
	}{
		{"ANNEALING_RUNS", "0"},
		{"ANNEALING_COOLING_FACTOR", "1.2"},
		{"ANNEALING_END_TEMPERATURE", "1e11"},
		{"ANNEALING_START_TEMPERATURE", "-1"},
		{"ANNEALING_COST_METRIC", "fuel"},
		{"ANNEALING_MAX_STEPS", "-5"},
	}

	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			t.Setenv(c.key, c.value)
			_, err := Load()
			require.ErrorContains(t, err, c.key)
		})
	}
}
