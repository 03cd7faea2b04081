// Package config loads the scheduler harness's YAML configuration and
// dispatches to the scheduler factory the configuration selects.
package config

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"

	"procsched/internal/sched"
	"procsched/internal/sched/cfs"
	"procsched/internal/sched/priority"
	"procsched/internal/sched/roundrobin"
)

// Policy names recognized by New.
const (
	PolicyRoundRobin    = "rr"
	PolicyPriorityQueue = "pq"
	PolicyCFS           = "cfs"
)

// Config mirrors config.yml. Field names follow the harness's recognized
// options (TIMESLICE, REMAINING, CPU_SLICES, WRITE_OUTPUT).
type Config struct {
	Policy      string `yaml:"policy"`
	Timeslice   int    `yaml:"timeslice"`   // RR/PQ timeslice (default 3)
	Remaining   int    `yaml:"remaining"`   // minimum remaining timeslice (default 1)
	CPUSlices   int    `yaml:"cpu_slices"`  // CFS cpu_time (default 10)
	WriteOutput bool   `yaml:"write_output"`
}

// defaultConfig returns the harness's documented defaults.
func defaultConfig() Config {
	return Config{
		Policy:    PolicyRoundRobin,
		Timeslice: 3,
		Remaining: 1,
		CPUSlices: 10,
	}
}

// Load reads YAML and overrides defaults; an empty path returns defaults only.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	if cfg.Timeslice <= 0 {
		cfg.Timeslice = 3
	}
	if cfg.Remaining < 0 {
		cfg.Remaining = 1
	}
	if cfg.CPUSlices <= 0 {
		cfg.CPUSlices = 10
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyRoundRobin
	}

	return cfg
}

// New builds the Scheduler selected by cfg.Policy.
func New(cfg Config) (sched.Scheduler, error) {
	switch cfg.Policy {
	case PolicyRoundRobin:
		return roundrobin.New(cfg.Timeslice, cfg.Remaining), nil
	case PolicyPriorityQueue:
		return priority.New(cfg.Timeslice, cfg.Remaining), nil
	case PolicyCFS:
		return cfs.New(cfg.CPUSlices, cfg.Remaining), nil
	default:
		return nil, fmt.Errorf("config: unknown policy %q", cfg.Policy)
	}
}
