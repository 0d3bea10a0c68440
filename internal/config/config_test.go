package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlab/internal/domain"
)

func validSweep() SweepConfig {
	return SweepConfig{
		NFactors:   []int{10, 20},
		Lambdas:    []float64{0.1, 1.0},
		Seed:       42,
		Workers:    2,
		Convention: "overall",
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FACTORLAB_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []int{10, 20, 50, 100, 150, 200}, cfg.Sweep.NFactors)
	assert.Equal(t, []float64{1e-5, 1e-3, 1e-1, 1.0, 10.0}, cfg.Sweep.Lambdas)
	assert.Equal(t, int64(42), cfg.Sweep.Seed)
	assert.Equal(t, "overall", cfg.Sweep.Convention)
	assert.False(t, cfg.Sweep.UsePLS)
	assert.False(t, cfg.BackupEnabled)
}

func TestLoad_GridOverrides(t *testing.T) {
	t.Setenv("FACTORLAB_DATA_DIR", t.TempDir())
	t.Setenv("SWEEP_N_FACTORS", "5, 15")
	t.Setenv("SWEEP_LAMBDAS", "0.01,0.1")
	t.Setenv("SWEEP_SEED", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{5, 15}, cfg.Sweep.NFactors)
	assert.Equal(t, []float64{0.01, 0.1}, cfg.Sweep.Lambdas)
	assert.Equal(t, int64(7), cfg.Sweep.Seed)
}

func TestLoad_BadGridValue(t *testing.T) {
	t.Setenv("FACTORLAB_DATA_DIR", t.TempDir())
	t.Setenv("SWEEP_N_FACTORS", "10,banana")

	_, err := Load()
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSweepConfig_Validate(t *testing.T) {
	require.NoError(t, func() error { s := validSweep(); return s.Validate() }())

	cases := []struct {
		name   string
		mutate func(*SweepConfig)
	}{
		{"empty n_factors", func(s *SweepConfig) { s.NFactors = nil }},
		{"zero n_factors", func(s *SweepConfig) { s.NFactors = []int{0} }},
		{"empty lambdas", func(s *SweepConfig) { s.Lambdas = nil }},
		{"negative lambda", func(s *SweepConfig) { s.Lambdas = []float64{-1} }},
		{"zero workers", func(s *SweepConfig) { s.Workers = 0 }},
		{"pls without components", func(s *SweepConfig) { s.UsePLS = true; s.PLSComponents = 0 }},
		{"unknown convention", func(s *SweepConfig) { s.Convention = "weekly" }},
		{"trailing window too small", func(s *SweepConfig) { s.Convention = "trailing"; s.TrailingWindow = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSweep()
			tc.mutate(&s)
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, s.Validate(), &cfgErr)
		})
	}
}

func TestConfig_ValidateBackup(t *testing.T) {
	cfg := &Config{Sweep: validSweep(), BackupEnabled: true}

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)

	cfg.BackupS3Bucket = "research-backups"
	require.NoError(t, cfg.Validate())
}

func TestSweepConfig_ZeroLambdaAllowed(t *testing.T) {
	s := validSweep()
	s.Lambdas = []float64{0}
	require.NoError(t, s.Validate())
}
