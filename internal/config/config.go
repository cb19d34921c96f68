// Package config provides viper-backed configuration for the fragment
// storage engine: R-tree fan-out, worker-pool sizing, and per-category
// memory-tracker budgets.
package config

import (
	"runtime"

	"github.com/spf13/viper"
)

// EngineConfig is the complete tunable configuration for one engine instance.
type EngineConfig struct {
	RTree   RTreeConfig   `mapstructure:"rtree"`
	Domain  DomainConfig  `mapstructure:"domain"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Memory  MemoryConfig  `mapstructure:"memory"`
}

// RTreeConfig configures the sparse-fragment R-tree.
type RTreeConfig struct {
	// FanOut is the maximum number of children per internal node.
	FanOut int `mapstructure:"fan_out"`
}

// DomainConfig configures domain-level geometry defaults.
type DomainConfig struct {
	// HilbertBits is the per-dimension bit budget used by the Hilbert cell
	// layout's map_to_uint64 normalization.
	HilbertBits int `mapstructure:"hilbert_bits"`
}

// WorkerConfig configures the bounded parallel_for pool.
type WorkerConfig struct {
	// PoolSize is the number of goroutines available to parallel_for. A
	// value <= 0 means "use GOMAXPROCS".
	PoolSize int `mapstructure:"pool_size"`
}

// MemoryConfig configures per-category budgets for the memory tracker, in
// bytes. A budget of 0 means "unbounded".
type MemoryConfig struct {
	RTreeBudget               int64 `mapstructure:"rtree_budget"`
	TileOffsetsBudget         int64 `mapstructure:"tile_offsets_budget"`
	MinMaxSumNullCountBudget  int64 `mapstructure:"min_max_sum_null_count_budget"`
	FooterBudget              int64 `mapstructure:"footer_budget"`
}

// Default returns the engine's default configuration.
func Default() EngineConfig {
	return EngineConfig{
		RTree:  RTreeConfig{FanOut: 16},
		Domain: DomainConfig{HilbertBits: 32},
		Worker: WorkerConfig{PoolSize: runtime.GOMAXPROCS(0)},
		Memory: MemoryConfig{
			RTreeBudget:              0,
			TileOffsetsBudget:        0,
			MinMaxSumNullCountBudget: 0,
			FooterBudget:             0,
		},
	}
}

// Load reads engine configuration from the named file (any format viper
// supports: yaml, json, toml) layered over Default(), and from environment
// variables prefixed FRAGSTORE_.
func Load(path string) (EngineConfig, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("FRAGSTORE")
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg EngineConfig) {
	v.SetDefault("rtree.fan_out", cfg.RTree.FanOut)
	v.SetDefault("domain.hilbert_bits", cfg.Domain.HilbertBits)
	v.SetDefault("worker.pool_size", cfg.Worker.PoolSize)
	v.SetDefault("memory.rtree_budget", cfg.Memory.RTreeBudget)
	v.SetDefault("memory.tile_offsets_budget", cfg.Memory.TileOffsetsBudget)
	v.SetDefault("memory.min_max_sum_null_count_budget", cfg.Memory.MinMaxSumNullCountBudget)
	v.SetDefault("memory.footer_budget", cfg.Memory.FooterBudget)
}
