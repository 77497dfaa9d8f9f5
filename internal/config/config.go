// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package config loads and validates application configuration.
//
// Configuration is loaded via Koanf v2 with layered sources
// (highest priority wins):
//   - Environment variables (SERVER_PORT, DATA_WORKBOOK_PATH, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Data      DataConfig      `koanf:"data"`
	Training  TrainingConfig  `koanf:"training"`
	Recommend RecommendConfig `koanf:"recommend"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0.
	Host string `koanf:"host"`

	// Port is the listen port. Default: 8480.
	Port int `koanf:"port"`

	// ReadTimeout bounds request reads. Default: 15s.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds response writes. Default: 30s.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitPerMinute is the per-IP request budget. Default: 600.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// CORSOrigins lists allowed CORS origins. Default: ["*"].
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level. Default: info.
	Level string `koanf:"level"`

	// Format is json or console. Default: json.
	Format string `koanf:"format"`

	// Caller includes caller file/line in log events. Default: false.
	Caller bool `koanf:"caller"`
}

// DataConfig locates the raw workbook and the artifact store.
type DataConfig struct {
	// WorkbookPath is the path to the order workbook (xlsx with
	// Orders and Returns sheets).
	WorkbookPath string `koanf:"workbook_path"`

	// OrdersSheet is the orders sheet name. Default: "Orders".
	OrdersSheet string `koanf:"orders_sheet"`

	// ReturnsSheet is the returns sheet name. Default: "Returns".
	ReturnsSheet string `koanf:"returns_sheet"`

	// ArtifactsDir is where trained artifact bundles are stored.
	// Default: ./artifacts.
	ArtifactsDir string `koanf:"artifacts_dir"`
}

// TrainingConfig contains offline training parameters.
type TrainingConfig struct {
	// NClusters is the k-means cluster count. Default: 3.
	NClusters int `koanf:"n_clusters"`

	// QuantileBins is the number of RFM score levels. Default: 5.
	// Duplicate quantile edges collapse to fewer effective levels.
	QuantileBins int `koanf:"quantile_bins"`

	// Epochs is the autoencoder training epoch count. Default: 50.
	Epochs int `koanf:"epochs"`

	// BatchSize is the autoencoder mini-batch size. Default: 32.
	BatchSize int `koanf:"batch_size"`

	// LearningRate is the Adam step size. Default: 0.001.
	LearningRate float64 `koanf:"learning_rate"`

	// Restarts is the number of k-means initializations. Default: 10.
	Restarts int `koanf:"restarts"`

	// Seed fixes all random state for reproducible training. Default: 42.
	Seed int64 `koanf:"seed"`
}

// RecommendConfig contains serving-time recommendation parameters.
type RecommendConfig struct {
	// TopNCluster is the default cluster-based recommendation count.
	// Default: 5.
	TopNCluster int `koanf:"top_n_cluster"`

	// TopNOverall is the default popularity recommendation count.
	// Default: 5.
	TopNOverall int `koanf:"top_n_overall"`

	// ClusterTopSize is how many products are retained per cluster
	// in the popularity table. Default: 20.
	ClusterTopSize int `koanf:"cluster_top_size"`

	// OverallTopSize is how many products are retained in the global
	// popularity table. Default: 15.
	OverallTopSize int `koanf:"overall_top_size"`
}

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8480,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			RateLimitPerMinute: 600,
			CORSOrigins:        []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Data: DataConfig{
			WorkbookPath: "data/raw/global-superstore.xlsx",
			OrdersSheet:  "Orders",
			ReturnsSheet: "Returns",
			ArtifactsDir: "artifacts",
		},
		Training: TrainingConfig{
			NClusters:    3,
			QuantileBins: 5,
			Epochs:       50,
			BatchSize:    32,
			LearningRate: 0.001,
			Restarts:     10,
			Seed:         42,
		},
		Recommend: RecommendConfig{
			TopNCluster:    5,
			TopNOverall:    5,
			ClusterTopSize: 20,
			OverallTopSize: 15,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimitPerMinute < 1 {
		return fmt.Errorf("server.rate_limit_per_minute must be positive, got %d", c.Server.RateLimitPerMinute)
	}

	if c.Data.WorkbookPath == "" {
		return fmt.Errorf("data.workbook_path must not be empty")
	}
	if c.Data.OrdersSheet == "" || c.Data.ReturnsSheet == "" {
		return fmt.Errorf("data sheet names must not be empty")
	}
	if c.Data.ArtifactsDir == "" {
		return fmt.Errorf("data.artifacts_dir must not be empty")
	}

	if c.Training.NClusters < 1 {
		return fmt.Errorf("training.n_clusters must be positive, got %d", c.Training.NClusters)
	}
	if c.Training.QuantileBins < 2 {
		return fmt.Errorf("training.quantile_bins must be at least 2, got %d", c.Training.QuantileBins)
	}
	if c.Training.Epochs < 1 {
		return fmt.Errorf("training.epochs must be positive, got %d", c.Training.Epochs)
	}
	if c.Training.BatchSize < 1 {
		return fmt.Errorf("training.batch_size must be positive, got %d", c.Training.BatchSize)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training.learning_rate must be positive, got %f", c.Training.LearningRate)
	}
	if c.Training.Restarts < 1 {
		return fmt.Errorf("training.restarts must be positive, got %d", c.Training.Restarts)
	}

	if c.Recommend.TopNCluster < 0 {
		return fmt.Errorf("recommend.top_n_cluster must be non-negative, got %d", c.Recommend.TopNCluster)
	}
	if c.Recommend.TopNOverall < 0 {
		return fmt.Errorf("recommend.top_n_overall must be non-negative, got %d", c.Recommend.TopNOverall)
	}
	if c.Recommend.ClusterTopSize < 1 {
		return fmt.Errorf("recommend.cluster_top_size must be positive, got %d", c.Recommend.ClusterTopSize)
	}
	if c.Recommend.OverallTopSize < 1 {
		return fmt.Errorf("recommend.overall_top_size must be positive, got %d", c.Recommend.OverallTopSize)
	}

	return nil
}
