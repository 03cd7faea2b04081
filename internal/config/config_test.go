package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsched/internal/sched/cfs"
	"procsched/internal/sched/priority"
	"procsched/internal/sched/roundrobin"
)

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg := Load("")
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadWithMissingFileReturnsDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadReadsYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yaml := "policy: pq\ntimeslice: 5\nremaining: 2\ncpu_slices: 20\nwrite_output: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := Load(path)
	assert.Equal(t, PolicyPriorityQueue, cfg.Policy)
	assert.Equal(t, 5, cfg.Timeslice)
	assert.Equal(t, 2, cfg.Remaining)
	assert.Equal(t, 20, cfg.CPUSlices)
	assert.True(t, cfg.WriteOutput)
}

func TestLoadClampsInvalidValuesBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yaml := "timeslice: -1\nremaining: -5\ncpu_slices: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := Load(path)
	assert.Equal(t, 3, cfg.Timeslice)
	assert.Equal(t, 1, cfg.Remaining)
	assert.Equal(t, 10, cfg.CPUSlices)
}

func TestNewDispatchesToEachPolicy(t *testing.T) {
	cases := []struct {
		policy string
		want   interface{}
	}{
		{PolicyRoundRobin, &roundrobin.RoundRobin{}},
		{PolicyPriorityQueue, &priority.PriorityQueue{}},
		{PolicyCFS, &cfs.CFS{}},
	}

	for _, c := range cases {
		t.Run(c.policy, func(t *testing.T) {
			scheduler, err := New(Config{Policy: c.policy, Timeslice: 3, Remaining: 1, CPUSlices: 10})
			require.NoError(t, err)
			assert.IsType(t, c.want, scheduler)
		})
	}
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	_, err := New(Config{Policy: "bogus"})
	assert.Error(t, err)
}
