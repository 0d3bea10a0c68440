// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/aristath/factorlab/internal/domain"
)

// SweepConfig is the configuration surface consumed by the sweep core:
// the hyperparameter grid, the RFF seed, the optional reducer and the
// Sharpe convention (fixed for the whole sweep).
type SweepConfig struct {
	NFactors       []int     // grid of RFF basis counts
	Lambdas        []float64 // grid of ridge penalties
	Seed           int64     // shared RFF seed across the whole sweep
	Workers        int       // bounded worker pool size
	UsePLS         bool      // enable the supervised reducer
	PLSComponents  int       // latent dimension k when UsePLS is set
	Convention     string    // "overall" or "trailing"
	TrailingWindow int       // rolling volatility window for "trailing"
}

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and exports
	LogLevel string
	Port     int
	DevMode  bool

	Sweep         SweepConfig
	SweepSchedule string // cron expression for recurring sweeps ("" disables)

	// S3 backup of the results database after completed runs
	BackupEnabled   bool
	BackupS3Bucket  string
	BackupS3Region  string
	AWSAccessKey    string
	AWSSecretKey    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FACTORLAB_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	nFactors, err := getEnvAsInts("SWEEP_N_FACTORS", []int{10, 20, 50, 100, 150, 200})
	if err != nil {
		return nil, err
	}
	lambdas, err := getEnvAsFloats("SWEEP_LAMBDAS", []float64{1e-5, 1e-3, 1e-1, 1.0, 10.0})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sweep: SweepConfig{
			NFactors:       nFactors,
			Lambdas:        lambdas,
			Seed:           int64(getEnvAsInt("SWEEP_SEED", 42)),
			Workers:        getEnvAsInt("SWEEP_WORKERS", 4),
			UsePLS:         getEnvAsBool("SWEEP_USE_PLS", false),
			PLSComponents:  getEnvAsInt("SWEEP_PLS_COMPONENTS", 10),
			Convention:     getEnv("SHARPE_CONVENTION", "overall"),
			TrailingWindow: getEnvAsInt("SHARPE_TRAILING_WINDOW", 20),
		},
		SweepSchedule:  getEnv("SWEEP_SCHEDULE", ""),
		BackupEnabled:  getEnvAsBool("BACKUP_ENABLED", false),
		BackupS3Bucket: getEnv("BACKUP_S3_BUCKET", ""),
		BackupS3Region: getEnv("BACKUP_S3_REGION", "eu-central-1"),
		AWSAccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration. Grid-level problems are fatal and must
// abort before any computation starts.
func (c *Config) Validate() error {
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	if c.BackupEnabled && c.BackupS3Bucket == "" {
		return &domain.ConfigurationError{Field: "BACKUP_S3_BUCKET", Reason: "required when backup is enabled"}
	}
	return nil
}

// Validate checks grid and reducer values.
func (s *SweepConfig) Validate() error {
	if len(s.NFactors) == 0 {
		return &domain.ConfigurationError{Field: "n_factors", Reason: "grid is empty"}
	}
	for _, n := range s.NFactors {
		if n <= 0 {
			return &domain.ConfigurationError{Field: "n_factors", Reason: fmt.Sprintf("must be positive, got %d", n)}
		}
	}
	if len(s.Lambdas) == 0 {
		return &domain.ConfigurationError{Field: "lambdas", Reason: "grid is empty"}
	}
	for _, l := range s.Lambdas {
		if l < 0 {
			return &domain.ConfigurationError{Field: "lambdas", Reason: fmt.Sprintf("must be non-negative, got %g", l)}
		}
	}
	if s.Workers < 1 {
		return &domain.ConfigurationError{Field: "workers", Reason: "must be at least 1"}
	}
	if s.UsePLS && s.PLSComponents < 1 {
		return &domain.ConfigurationError{Field: "pls_components", Reason: "must be at least 1"}
	}
	switch s.Convention {
	case "overall", "trailing":
	default:
		return &domain.ConfigurationError{Field: "convention", Reason: fmt.Sprintf("unknown Sharpe convention %q", s.Convention)}
	}
	if s.Convention == "trailing" && s.TrailingWindow < 2 {
		return &domain.ConfigurationError{Field: "trailing_window", Reason: "must be at least 2"}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsInts(key string, defaultValue []int) ([]int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, &domain.ConfigurationError{Field: key, Reason: fmt.Sprintf("bad integer %q", p)}
		}
		out = append(out, v)
	}
	return out, nil
}

func getEnvAsFloats(key string, defaultValue []float64) ([]float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: key, Reason: fmt.Sprintf("bad float %q", p)}
		}
		out = append(out, v)
	}
	return out, nil
}
